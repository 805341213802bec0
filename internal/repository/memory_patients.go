package repository

import (
	"context"
	"sync"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"
)

// MemoryPatientsRepo supports local runs and handler tests without a spreadsheet on disk.
// NOTE: contents are lost on restart.
type MemoryPatientsRepo struct {
	mu       sync.RWMutex
	patients []domain.Patient
}

func NewMemoryPatientsRepo() *MemoryPatientsRepo {
	return &MemoryPatientsRepo{}
}

func (r *MemoryPatientsRepo) ListPatients(ctx context.Context) (out []domain.Patient, err error) {
	defer func() { observeOp(BackendMemory, "list", err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out = make([]domain.Patient, len(r.patients))
	copy(out, r.patients)
	return out, nil
}

func (r *MemoryPatientsRepo) AppendPatient(ctx context.Context, p domain.Patient) (refID string, err error) {
	defer func() { observeOp(BackendMemory, "append", err) }()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = domain.NextRefID(r.patients)
	r.patients = append(r.patients, p)
	return p.ID, nil
}

func (r *MemoryPatientsRepo) UpdatePatientStatus(ctx context.Context, refID, status string) (updated bool, err error) {
	defer func() { observeOp(BackendMemory, "update_status", err) }()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.patients {
		if r.patients[i].ID == refID {
			r.patients[i].Status = status
			return true, nil
		}
	}
	return false, nil
}
