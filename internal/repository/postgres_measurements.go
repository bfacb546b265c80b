package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-readmission/internal/domain"

	"go.uber.org/zap"
)

// PostgresMeasurementRepository MeasurementRepository over the measurements and
// readmission_predictions tables
type PostgresMeasurementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresMeasurementRepository 创建测量Repository
func NewPostgresMeasurementRepository(db *sql.DB, logger *zap.Logger) *PostgresMeasurementRepository {
	return &PostgresMeasurementRepository{db: db, logger: logger}
}

var _ MeasurementRepository = (*PostgresMeasurementRepository)(nil)

func (r *PostgresMeasurementRepository) SaveMeasurement(ctx context.Context, m domain.Measurement) (*domain.Measurement, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO measurements (patient_id, type, value, time_created)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.PatientID, string(m.Type), m.Value, m.TimeCreated).Scan(&m.ID)
	if err != nil {
		if pqErrorCode(err) == pqForeignKeyViolation {
			return nil, fmt.Errorf("%w: %d", domain.ErrPatientNotFound, m.PatientID)
		}
		return nil, storeError("failed to insert measurement", err)
	}

	r.logger.Debug("Saved measurement",
		zap.Int64("measurement_id", m.ID),
		zap.Int64("patient_id", m.PatientID),
		zap.String("type", string(m.Type)),
	)
	return &m, nil
}

// ListMeasurements an empty t lists every type
func (r *PostgresMeasurementRepository) ListMeasurements(ctx context.Context, patientID int64, t domain.MeasurementType, offset, limit int) ([]domain.Measurement, error) {
	offset, limit = normalizePage(offset, limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_id, type, value, time_created
		FROM measurements
		WHERE patient_id = $1 AND ($2::text = '' OR type = $2)
		ORDER BY time_created DESC, id DESC
		OFFSET $3 LIMIT $4
	`, patientID, string(t), offset, limit)
	if err != nil {
		return nil, storeError("failed to list measurements", err)
	}
	defer rows.Close()

	out := []domain.Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate measurements", err)
	}
	return out, nil
}

func (r *PostgresMeasurementRepository) CountMeasurements(ctx context.Context, patientID int64, t domain.MeasurementType) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM measurements
		WHERE patient_id = $1 AND ($2::text = '' OR type = $2)
	`, patientID, string(t)).Scan(&total)
	if err != nil {
		return 0, storeError("failed to count measurements", err)
	}
	return total, nil
}

func (r *PostgresMeasurementRepository) LastMeasurement(ctx context.Context, patientID int64, t domain.MeasurementType) (*domain.Measurement, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, patient_id, type, value, time_created
		FROM measurements
		WHERE patient_id = $1 AND ($2::text = '' OR type = $2)
		ORDER BY time_created DESC, id DESC
		LIMIT 1
	`, patientID, string(t))

	m, err := scanMeasurement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (*domain.Measurement, error) {
	var m domain.Measurement
	var typ string
	if err := row.Scan(&m.ID, &m.PatientID, &typ, &m.Value, &m.TimeCreated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, storeError("failed to scan measurement", err)
	}
	m.Type = domain.MeasurementType(typ)
	return &m, nil
}

func (r *PostgresMeasurementRepository) SavePrediction(ctx context.Context, p domain.ReadmissionPrediction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO readmission_predictions (patient_id, time_created, probability)
		VALUES ($1, $2, $3)
	`, p.PatientID, p.TimeCreated, p.Probability)
	if err != nil {
		return storeError("failed to insert readmission prediction", err)
	}
	return nil
}

func (r *PostgresMeasurementRepository) ListPredictions(ctx context.Context, patientID int64, offset, limit int) ([]domain.ReadmissionPrediction, int, error) {
	offset, limit = normalizePage(offset, limit)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM readmission_predictions WHERE patient_id = $1`, patientID,
	).Scan(&total); err != nil {
		return nil, 0, storeError("failed to count readmission predictions", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT patient_id, time_created, probability
		FROM readmission_predictions
		WHERE patient_id = $1
		ORDER BY time_created DESC, id DESC
		OFFSET $2 LIMIT $3
	`, patientID, offset, limit)
	if err != nil {
		return nil, 0, storeError("failed to list readmission predictions", err)
	}
	defer rows.Close()

	out := []domain.ReadmissionPrediction{}
	for rows.Next() {
		var p domain.ReadmissionPrediction
		if err := rows.Scan(&p.PatientID, &p.TimeCreated, &p.Probability); err != nil {
			return nil, 0, storeError("failed to scan readmission prediction", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("failed to iterate readmission predictions", err)
	}
	return out, total, nil
}
