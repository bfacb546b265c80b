package prediction

import (
	"context"
	"fmt"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/stats"

	"go.uber.org/zap"
)

// DefaultHistoryLimit cap on the measurements scanned per feature
const DefaultHistoryLimit = 1000

// MeasurementHistory read side of the measurement store used by SlowStrategy
// Results are ordered most recent first
type MeasurementHistory interface {
	ListMeasurements(ctx context.Context, patientID int64, t domain.MeasurementType, offset, limit int) ([]domain.Measurement, error)
	LastMeasurement(ctx context.Context, patientID int64, t domain.MeasurementType) (*domain.Measurement, error)
}

// SlowStrategy recomputes every feature from the stored history on each call.
// Cost is O(k) with k bounded by limit per feature.
type SlowStrategy struct {
	history MeasurementHistory
	limit   int
	logger  *zap.Logger
}

// NewSlowStrategy creates a history-scan strategy
func NewSlowStrategy(history MeasurementHistory, limit int, logger *zap.Logger) *SlowStrategy {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &SlowStrategy{history: history, limit: limit, logger: logger}
}

var _ Strategy = (*SlowStrategy)(nil)

// Calculate ignores m beyond its patient; m is expected to be persisted already
func (s *SlowStrategy) Calculate(ctx context.Context, patient domain.Patient, m domain.Measurement) (float64, error) {
	bp, err := s.lastBloodPressure(ctx, patient.ID)
	if err != nil {
		return 0, fmt.Errorf("slow strategy: last blood pressure: %w", err)
	}
	rr, err := s.meanRespiratoryRate(ctx, patient.ID)
	if err != nil {
		return 0, fmt.Errorf("slow strategy: mean respiratory rate: %w", err)
	}
	std, err := s.stdDevTemperature(ctx, patient.ID)
	if err != nil {
		return 0, fmt.Errorf("slow strategy: temperature deviation: %w", err)
	}

	p := stats.LogisticProbability(patient.Age, bp, rr, std)

	s.logger.Debug("Calculated readmission probability",
		zap.String("strategy", string(ModeSlow)),
		zap.Int64("patient_id", patient.ID),
		zap.String("measurement_type", string(m.Type)),
		zap.Float64("last_blood_pressure", bp),
		zap.Float64("mean_respiratory_rate", rr),
		zap.Float64("std_dev_temperature", std),
		zap.Float64("probability", p),
	)
	return p, nil
}

func (s *SlowStrategy) lastBloodPressure(ctx context.Context, patientID int64) (float64, error) {
	m, err := s.history.LastMeasurement(ctx, patientID, domain.MeasurementBloodPressure)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, nil
	}
	return m.Value, nil
}

func (s *SlowStrategy) meanRespiratoryRate(ctx context.Context, patientID int64) (float64, error) {
	values, err := s.values(ctx, patientID, domain.MeasurementRespirationRate)
	if err != nil {
		return 0, err
	}
	return stats.BatchMean(values), nil
}

func (s *SlowStrategy) stdDevTemperature(ctx context.Context, patientID int64) (float64, error) {
	values, err := s.values(ctx, patientID, domain.MeasurementTemperature)
	if err != nil {
		return 0, err
	}
	return stats.BatchStdDev(values), nil
}

func (s *SlowStrategy) values(ctx context.Context, patientID int64, t domain.MeasurementType) ([]float64, error) {
	ms, err := s.history.ListMeasurements(ctx, patientID, t, 0, s.limit)
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(ms))
	for _, m := range ms {
		values = append(values, m.Value)
	}
	return values, nil
}
