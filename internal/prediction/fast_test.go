package prediction

import (
	"context"
	"math"
	"testing"
	"time"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func measurement(t domain.MeasurementType, v float64, at time.Time) domain.Measurement {
	return domain.Measurement{PatientID: 1, Type: t, Value: v, TimeCreated: at}
}

func TestFastStrategy_ReferenceScenario(t *testing.T) {
	ctx := context.Background()
	cache := newFakeStatsCache()
	s := NewFastStrategy(cache, zap.NewNop())
	patient := domain.Patient{ID: 1, Age: 50}
	now := time.Now()

	// heart rate feeds no feature
	p, err := s.Calculate(ctx, patient, measurement(domain.MeasurementHeartRate, 80, now))
	require.NoError(t, err)
	assert.InDelta(t, 0.007391541344281971, p, 1e-15)
	assert.Equal(t, 0, cache.writes)

	for i := 10; i <= 30; i++ {
		p, err = s.Calculate(ctx, patient, measurement(domain.MeasurementRespirationRate, float64(i), now))
		require.NoError(t, err)
	}
	rr, err := cache.RespiratoryRunningMean(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rr.Mean)
	assert.Equal(t, int64(21), rr.Count)
	assert.InDelta(t, 0.013386917827664766, p, 1e-15)

	for i := 0; i < 100; i++ {
		p, err = s.Calculate(ctx, patient, measurement(domain.MeasurementTemperature, 36+math.Mod(float64(i)/10, 4), now))
		require.NoError(t, err)
	}
	temp, err := cache.TemperatureRunningStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), temp.Count)
	assert.InDelta(t, 37.74999999999998, temp.Mean, 1e-9)
	assert.InDelta(t, 129.25000000000077, temp.M2, 1e-9)
	// the strategy reports the sample deviation sqrt(M2/(n-1))
	assert.InDelta(t, stats.LogisticProbability(50, 0, 20, math.Sqrt(temp.M2/99)), p, 1e-15)
	assert.InDelta(t, 0.013692123437114881, p, 1e-12)

	withLatest, err := s.Calculate(ctx, patient, measurement(domain.MeasurementBloodPressure, 120, now))
	require.NoError(t, err)
	bp1, err := cache.LastBloodPressure(ctx, 1)
	require.NoError(t, err)

	withOld, err := s.Calculate(ctx, patient, measurement(domain.MeasurementBloodPressure, 125, now.Add(-time.Minute)))
	require.NoError(t, err)
	bp2, err := cache.LastBloodPressure(ctx, 1)
	require.NoError(t, err)

	require.NotNil(t, bp1)
	require.NotNil(t, bp2)
	assert.Equal(t, 120.0, bp1.Value)
	assert.Equal(t, 120.0, bp2.Value)
	assert.Equal(t, withLatest, withOld)
}

func TestFastStrategy_BloodPressureTimestampRule(t *testing.T) {
	ctx := context.Background()
	patient := domain.Patient{ID: 1, Age: 40}
	t0 := time.Date(2021, 1, 1, 7, 0, 0, 0, time.UTC)

	t.Run("absent cache takes incoming", func(t *testing.T) {
		cache := newFakeStatsCache()
		s := NewFastStrategy(cache, zap.NewNop())
		p, err := s.Calculate(ctx, patient, measurement(domain.MeasurementBloodPressure, 130, t0))
		require.NoError(t, err)
		assert.InDelta(t, stats.LogisticProbability(40, 130, 0, 0), p, 1e-15)
		bp, _ := cache.LastBloodPressure(ctx, 1)
		require.NotNil(t, bp)
		assert.Equal(t, 130.0, bp.Value)
		assert.True(t, bp.TimeCreated.Equal(t0))
	})

	t.Run("newer incoming overwrites", func(t *testing.T) {
		cache := newFakeStatsCache()
		cache.bp[1] = LastBloodPressure{Value: 110, TimeCreated: t0}
		s := NewFastStrategy(cache, zap.NewNop())
		_, err := s.Calculate(ctx, patient, measurement(domain.MeasurementBloodPressure, 140, t0.Add(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, 140.0, cache.bp[1].Value)
	})

	t.Run("equal timestamp incoming wins", func(t *testing.T) {
		cache := newFakeStatsCache()
		cache.bp[1] = LastBloodPressure{Value: 110, TimeCreated: t0}
		s := NewFastStrategy(cache, zap.NewNop())
		p, err := s.Calculate(ctx, patient, measurement(domain.MeasurementBloodPressure, 150, t0))
		require.NoError(t, err)
		assert.Equal(t, 150.0, cache.bp[1].Value)
		assert.InDelta(t, stats.LogisticProbability(40, 150, 0, 0), p, 1e-15)
	})

	t.Run("older incoming is discarded and idempotent", func(t *testing.T) {
		cache := newFakeStatsCache()
		cache.bp[1] = LastBloodPressure{Value: 110, TimeCreated: t0}
		s := NewFastStrategy(cache, zap.NewNop())
		for i := 0; i < 3; i++ {
			p, err := s.Calculate(ctx, patient, measurement(domain.MeasurementBloodPressure, 200, t0.Add(-time.Hour)))
			require.NoError(t, err)
			assert.InDelta(t, stats.LogisticProbability(40, 110, 0, 0), p, 1e-15)
		}
		assert.Equal(t, 110.0, cache.bp[1].Value)
		assert.Equal(t, 0, cache.writes)
	})
}

func TestFastStrategy_OnlyMatchingAggregateIsWritten(t *testing.T) {
	ctx := context.Background()
	cache := newFakeStatsCache()
	s := NewFastStrategy(cache, zap.NewNop())
	patient := domain.Patient{ID: 1, Age: 60}
	now := time.Now()

	sequence := []domain.Measurement{
		measurement(domain.MeasurementRespirationRate, 12, now),
		measurement(domain.MeasurementTemperature, 36.5, now),
		measurement(domain.MeasurementHeartRate, 70, now),
		measurement(domain.MeasurementRespirationRate, 16, now),
		measurement(domain.MeasurementBloodPressure, 120, now),
		measurement(domain.MeasurementTemperature, 37.5, now),
		measurement(domain.MeasurementTemperature, 38.5, now),
	}
	for _, m := range sequence {
		_, err := s.Calculate(ctx, patient, m)
		require.NoError(t, err)
	}

	// heart rate writes nothing: 7 measurements, 6 writes
	assert.Equal(t, 6, cache.writes)
	assert.Equal(t, int64(2), cache.rr[1].Count)
	assert.Equal(t, 14.0, cache.rr[1].Mean)
	assert.Equal(t, int64(3), cache.temp[1].Count)
	assert.InDelta(t, 37.5, cache.temp[1].Mean, 1e-12)
	assert.InDelta(t, 2.0, cache.temp[1].M2, 1e-12)
}

func TestFastStrategy_TemperatureDeviationGating(t *testing.T) {
	ctx := context.Background()
	cache := newFakeStatsCache()
	s := NewFastStrategy(cache, zap.NewNop())
	patient := domain.Patient{ID: 1, Age: 0}
	now := time.Now()
	base := stats.LogisticProbability(0, 0, 0, 0)

	// first and second temperatures: previous count <= 1, deviation reported as 0
	p, err := s.Calculate(ctx, patient, measurement(domain.MeasurementTemperature, 36, now))
	require.NoError(t, err)
	assert.InDelta(t, base, p, 1e-15)
	p, err = s.Calculate(ctx, patient, measurement(domain.MeasurementTemperature, 38, now))
	require.NoError(t, err)
	assert.InDelta(t, base, p, 1e-15)

	// a non-temperature measurement reads the current state: M2=2, n=2
	p, err = s.Calculate(ctx, patient, measurement(domain.MeasurementHeartRate, 90, now))
	require.NoError(t, err)
	assert.InDelta(t, stats.LogisticProbability(0, 0, 0, math.Sqrt(2)), p, 1e-15)

	// third temperature: previous count 2 > 1, deviation reported
	p, err = s.Calculate(ctx, patient, measurement(domain.MeasurementTemperature, 37, now))
	require.NoError(t, err)
	assert.InDelta(t, stats.LogisticProbability(0, 0, 0, 1), p, 1e-15)
}

func TestFastStrategy_CacheFailureIsHard(t *testing.T) {
	ctx := context.Background()
	cache := newFakeStatsCache()
	cache.failReads = true
	s := NewFastStrategy(cache, zap.NewNop())

	_, err := s.Calculate(ctx, domain.Patient{ID: 1, Age: 50}, measurement(domain.MeasurementHeartRate, 80, time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	cache.failReads = false
	cache.failWrites = true
	_, err = s.Calculate(ctx, domain.Patient{ID: 1, Age: 50}, measurement(domain.MeasurementRespirationRate, 18, time.Now()))
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestFastStrategy_PatientsAreIsolated(t *testing.T) {
	ctx := context.Background()
	cache := newFakeStatsCache()
	s := NewFastStrategy(cache, zap.NewNop())
	now := time.Now()

	_, err := s.Calculate(ctx, domain.Patient{ID: 1, Age: 30}, domain.Measurement{PatientID: 1, Type: domain.MeasurementRespirationRate, Value: 30, TimeCreated: now})
	require.NoError(t, err)
	p, err := s.Calculate(ctx, domain.Patient{ID: 2, Age: 30}, domain.Measurement{PatientID: 2, Type: domain.MeasurementHeartRate, Value: 60, TimeCreated: now})
	require.NoError(t, err)
	assert.InDelta(t, stats.LogisticProbability(30, 0, 0, 0), p, 1e-15)
}
