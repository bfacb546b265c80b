package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-readmission/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// pqErrorCode returns the SQLSTATE of a lib/pq error, "" otherwise
func pqErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// storeError marks err as a store failure
func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// PostgresPatientRepository PatientRepository over the patients and admissions tables
type PostgresPatientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresPatientRepository 创建患者Repository
func NewPostgresPatientRepository(db *sql.DB, logger *zap.Logger) *PostgresPatientRepository {
	return &PostgresPatientRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ PatientRepository = (*PostgresPatientRepository)(nil)

func (r *PostgresPatientRepository) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	var p domain.Patient
	err := r.db.QueryRowContext(ctx,
		`SELECT id, age FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.Age)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", domain.ErrPatientNotFound, id)
		}
		return nil, storeError("failed to query patient", err)
	}
	return &p, nil
}

func (r *PostgresPatientRepository) List(ctx context.Context, offset, limit int) ([]domain.Patient, int, error) {
	offset, limit = normalizePage(offset, limit)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count patients", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, age FROM patients ORDER BY id OFFSET $1 LIMIT $2`, offset, limit,
	)
	if err != nil {
		return nil, 0, storeError("failed to list patients", err)
	}
	defer rows.Close()

	out := []domain.Patient{}
	for rows.Next() {
		var p domain.Patient
		if err := rows.Scan(&p.ID, &p.Age); err != nil {
			return nil, 0, storeError("failed to scan patient", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("failed to iterate patients", err)
	}
	return out, total, nil
}

func (r *PostgresPatientRepository) Save(ctx context.Context, p domain.Patient) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO patients (id, age) VALUES ($1, $2)`, p.ID, p.Age,
	)
	if err != nil {
		if pqErrorCode(err) == pqUniqueViolation {
			return fmt.Errorf("%w: %d", domain.ErrPatientAlreadyExists, p.ID)
		}
		return storeError("failed to insert patient", err)
	}

	r.logger.Debug("Saved patient", zap.Int64("patient_id", p.ID))
	return nil
}

func (r *PostgresPatientRepository) SaveAdmission(ctx context.Context, a domain.Admission) error {
	var discharge sql.NullTime
	if a.DateDischarge != nil {
		discharge = sql.NullTime{Time: *a.DateDischarge, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admissions (patient_id, date_admission, date_discharge) VALUES ($1, $2, $3)`,
		a.PatientID, a.DateAdmission, discharge,
	)
	if err != nil {
		if pqErrorCode(err) == pqForeignKeyViolation {
			return fmt.Errorf("%w: %d", domain.ErrPatientNotFound, a.PatientID)
		}
		return storeError("failed to insert admission", err)
	}
	return nil
}

func (r *PostgresPatientRepository) ListAdmissions(ctx context.Context, patientID int64, offset, limit int) ([]domain.Admission, int, error) {
	offset, limit = normalizePage(offset, limit)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admissions WHERE patient_id = $1`, patientID,
	).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count admissions", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT patient_id, date_admission, date_discharge
		FROM admissions
		WHERE patient_id = $1
		ORDER BY date_admission DESC, id DESC
		OFFSET $2 LIMIT $3
	`, patientID, offset, limit)
	if err != nil {
		return nil, 0, storeError("failed to list admissions", err)
	}
	defer rows.Close()

	out := []domain.Admission{}
	for rows.Next() {
		var a domain.Admission
		var discharge sql.NullTime
		if err := rows.Scan(&a.PatientID, &a.DateAdmission, &discharge); err != nil {
			return nil, 0, storeError("failed to scan admission", err)
		}
		if discharge.Valid {
			d := discharge.Time
			a.DateDischarge = &d
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("failed to iterate admissions", err)
	}
	return out, total, nil
}
