package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresPatientsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresPatientsRepository(db, zap.NewNop())
	return db, mock, repo
}

var allColumns = []string{
	"ref_id", "name", "mobile", "referred", "reftype", "drname",
	"status", "sponsor", "created_by", "comment", "created_at",
}

func TestPostgresRepo_ListPatients(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(allColumns).
		AddRow("Ref001", "Asha", "9876543210", "Self", "", "", "New", "", "desk", "", "2024-03-01 10:00:00").
		AddRow("Ref002", "Ravi", "9876543211", "Doctor", "OPD", "Dr. Rao", "Cleared", "TPA", "desk", "ok", "2024-03-01 11:00:00")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM patients ORDER BY seq`)).WillReturnRows(rows)

	patients, err := repo.ListPatients(context.Background())
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "Ref001", patients[0].ID)
	assert.Equal(t, "Dr. Rao", patients[1].DrName)
	assert.Equal(t, "Cleared", patients[1].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListPatients_Empty(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows(allColumns))

	patients, err := repo.ListPatients(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, patients)
	assert.Empty(t, patients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_AppendPatient(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	p := domain.Patient{
		Name: "Meera", Mobile: "9123456780", Referred: "Self", Status: "New",
		CreatedBy: "desk", CreatedAt: "2024-03-02 09:00:00",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`LOCK TABLE patients IN EXCLUSIVE MODE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ref_id FROM patients ORDER BY seq`)).
		WillReturnRows(sqlmock.NewRows([]string{"ref_id"}).AddRow("Ref001").AddRow("Ref002"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO patients`)).
		WithArgs("Ref003", "Meera", "9123456780", "Self", "", "", "New", "", "desk", "", "2024-03-02 09:00:00").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	id, err := repo.AppendPatient(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "Ref003", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_AppendPatient_RollsBackOnInsertError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`LOCK TABLE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT ref_id`).WillReturnRows(sqlmock.NewRows([]string{"ref_id"}))
	mock.ExpectExec(`INSERT INTO patients`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.AppendPatient(context.Background(), domain.Patient{Name: "A", Mobile: "9876543210"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdatePatientStatus(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE patients SET status = $1 WHERE ref_id = $2`)).
		WithArgs("Verified", "Ref001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.UpdatePatientStatus(context.Background(), "Ref001", "Verified")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdatePatientStatus_UnknownID(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE patients`).
		WithArgs("Cleared", "Ref404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdatePatientStatus(context.Background(), "Ref404", "Cleared")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
