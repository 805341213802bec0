package repository

import (
	"context"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"
)

// PatientsRepository 患者记录存储
//
// Each call is one full read-modify-write cycle against the backing store. Nothing is cached
// between calls.
type PatientsRepository interface {
	// ListPatients returns every record in creation order. An absent or empty store yields an empty slice.
	ListPatients(ctx context.Context) ([]domain.Patient, error)

	// AppendPatient assigns the next RefID (p.ID is ignored), persists the record and returns the id.
	AppendPatient(ctx context.Context, p domain.Patient) (string, error)

	// UpdatePatientStatus sets the status of the first record with refID.
	// An unknown refID is not an error: nothing changes and updated is false.
	UpdatePatientStatus(ctx context.Context, refID, status string) (updated bool, err error)
}

const (
	BackendExcel    = "excel"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)
