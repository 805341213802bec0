package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"

	"go.uber.org/zap"
)

// PostgresPatientsRepository stores records in the patients table (see database/migrations).
// seq keeps creation order; ref_id is assigned under a table lock so ids stay unique across
// processes.
type PostgresPatientsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresPatientsRepository(db *sql.DB, logger *zap.Logger) *PostgresPatientsRepository {
	return &PostgresPatientsRepository{db: db, logger: logger}
}

const patientColumns = `ref_id, name, mobile, referred, reftype, drname, status, sponsor, created_by, comment, created_at`

func (r *PostgresPatientsRepository) ListPatients(ctx context.Context) (patients []domain.Patient, err error) {
	defer func() { observeOp(BackendPostgres, "list", err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	patients = []domain.Patient{}
	for rows.Next() {
		var p domain.Patient
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Mobile, &p.Referred, &p.RefType, &p.DrName,
			&p.Status, &p.Sponsor, &p.CreatedBy, &p.Comment, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}
	return patients, nil
}

func (r *PostgresPatientsRepository) AppendPatient(ctx context.Context, p domain.Patient) (refID string, err error) {
	defer func() { observeOp(BackendPostgres, "append", err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// readers are not blocked; concurrent appends wait here
	if _, err = tx.ExecContext(ctx, `LOCK TABLE patients IN EXCLUSIVE MODE`); err != nil {
		return "", fmt.Errorf("failed to lock patients: %w", err)
	}

	existing, err := r.listIDs(ctx, tx)
	if err != nil {
		return "", err
	}
	p.ID = domain.NextRefID(existing)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO patients (`+patientColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Mobile, p.Referred, p.RefType, p.DrName,
		p.Status, p.Sponsor, p.CreatedBy, p.Comment, p.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert patient: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("Appended patient", zap.String("ref_id", p.ID))
	return p.ID, nil
}

func (r *PostgresPatientsRepository) UpdatePatientStatus(ctx context.Context, refID, status string) (updated bool, err error) {
	defer func() { observeOp(BackendPostgres, "update_status", err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE patients SET status = $1 WHERE ref_id = $2`, status, refID)
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresPatientsRepository) listIDs(ctx context.Context, tx *sql.Tx) ([]domain.Patient, error) {
	rows, err := tx.QueryContext(ctx, `SELECT ref_id FROM patients ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ref ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.Patient
	for rows.Next() {
		var p domain.Patient
		if err := rows.Scan(&p.ID); err != nil {
			return nil, fmt.Errorf("failed to scan ref id: %w", err)
		}
		ids = append(ids, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ref ids: %w", err)
	}
	return ids, nil
}
