package prediction

import (
	"context"
	"fmt"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/stats"

	"go.uber.org/zap"
)

// FastStrategy updates cached sufficient statistics with the incoming
// measurement only, so each call is O(1) regardless of history size.
// Exactly one aggregate is written per call (the one matching m.Type);
// heart rate writes nothing.
type FastStrategy struct {
	cache  StatsCache
	logger *zap.Logger
}

// NewFastStrategy creates a cache-backed strategy
func NewFastStrategy(cache StatsCache, logger *zap.Logger) *FastStrategy {
	return &FastStrategy{cache: cache, logger: logger}
}

var _ Strategy = (*FastStrategy)(nil)

// Calculate folds m into the cache and returns the probability.
// A cache failure fails the call; no fallback happens here.
func (s *FastStrategy) Calculate(ctx context.Context, patient domain.Patient, m domain.Measurement) (float64, error) {
	bp, err := s.lastBloodPressure(ctx, patient.ID, m)
	if err != nil {
		return 0, fmt.Errorf("fast strategy: last blood pressure: %w", err)
	}
	rr, err := s.meanRespiratoryRate(ctx, patient.ID, m)
	if err != nil {
		return 0, fmt.Errorf("fast strategy: mean respiratory rate: %w", err)
	}
	std, err := s.stdDevTemperature(ctx, patient.ID, m)
	if err != nil {
		return 0, fmt.Errorf("fast strategy: temperature deviation: %w", err)
	}

	p := stats.LogisticProbability(patient.Age, bp, rr, std)

	s.logger.Debug("Calculated readmission probability",
		zap.String("strategy", string(ModeFast)),
		zap.Int64("patient_id", patient.ID),
		zap.String("measurement_type", string(m.Type)),
		zap.Float64("last_blood_pressure", bp),
		zap.Float64("mean_respiratory_rate", rr),
		zap.Float64("std_dev_temperature", std),
		zap.Float64("probability", p),
	)
	return p, nil
}

// lastBloodPressure applies last-write-wins by measurement timestamp.
// A cached entry strictly newer than m is kept; ties go to m.
func (s *FastStrategy) lastBloodPressure(ctx context.Context, patientID int64, m domain.Measurement) (float64, error) {
	cached, err := s.cache.LastBloodPressure(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if m.Type != domain.MeasurementBloodPressure {
		if cached == nil {
			return 0, nil
		}
		return cached.Value, nil
	}

	if cached != nil && cached.TimeCreated.After(m.TimeCreated) {
		s.logger.Debug("Ignoring out-of-order blood pressure",
			zap.Int64("patient_id", patientID),
			zap.Time("cached_time", cached.TimeCreated),
			zap.Time("measurement_time", m.TimeCreated),
		)
		return cached.Value, nil
	}

	if err := s.cache.SetLastBloodPressure(ctx, patientID, LastBloodPressure{
		Value:       m.Value,
		TimeCreated: m.TimeCreated,
	}); err != nil {
		return 0, err
	}
	return m.Value, nil
}

func (s *FastStrategy) meanRespiratoryRate(ctx context.Context, patientID int64, m domain.Measurement) (float64, error) {
	cur, err := s.cache.RespiratoryRunningMean(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if m.Type != domain.MeasurementRespirationRate {
		return cur.Mean, nil
	}

	mean, count := stats.OnlineMean(cur.Mean, cur.Count, m.Value)
	if err := s.cache.SetRespiratoryRunningMean(ctx, patientID, RespiratoryRunningMean{Mean: mean, Count: count}); err != nil {
		return 0, err
	}
	return mean, nil
}

// stdDevTemperature reports the sample form sqrt(M2/(n-1)).
// On a temperature update the deviation is reported only once the previous
// count exceeded one.
func (s *FastStrategy) stdDevTemperature(ctx context.Context, patientID int64, m domain.Measurement) (float64, error) {
	cur, err := s.cache.TemperatureRunningStats(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if m.Type != domain.MeasurementTemperature {
		return stats.SampleStdDev(cur.M2, cur.Count), nil
	}

	mean, m2, count := stats.OnlineMeanVariance(cur.Mean, cur.M2, cur.Count, m.Value)
	if err := s.cache.SetTemperatureRunningStats(ctx, patientID, TemperatureRunningStats{
		Mean:  mean,
		M2:    m2,
		Count: count,
	}); err != nil {
		return 0, err
	}
	if cur.Count <= 1 {
		return 0, nil
	}
	return stats.SampleStdDev(m2, count), nil
}
