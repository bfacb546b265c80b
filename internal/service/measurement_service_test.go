package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-readmission/internal/cache"
	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/events"
	"wisefido-readmission/internal/metrics"
	"wisefido-readmission/internal/prediction"
	"wisefido-readmission/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	events []events.PredictionEvent
	err    error
}

func (p *recordingPublisher) PublishPrediction(_ context.Context, e events.PredictionEvent) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, e)
	return "1-0", nil
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

type ingestFixture struct {
	patients     *repository.MemoryPatientRepository
	measurements *repository.MemoryMeasurementRepository
	publisher    *recordingPublisher
	svc          *MeasurementService
}

func newIngestFixture(t *testing.T, kv cache.KVStore) *ingestFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &ingestFixture{
		patients:     repository.NewMemoryPatientRepository(),
		measurements: repository.NewMemoryMeasurementRepository(),
		publisher:    &recordingPublisher{},
	}
	statsCache := cache.NewStatsCache(kv, "", 0, logger)
	factory := prediction.NewFactory(statsCache, 0, false, logger)
	f.svc = NewMeasurementService(f.patients, f.measurements, factory, "", f.publisher, metrics.New(), logger)

	require.NoError(t, f.patients.Save(context.Background(), domain.Patient{ID: 1, Age: 50}))
	return f
}

func input(parameter domain.MeasurementType, value float64, hour int) domain.MeasurementInput {
	return domain.MeasurementInput{PatientID: 1, Day: "2021-01-01", Hour: hour, Parameter: parameter, Value: value}
}

func TestIngest_HeartRateScenario(t *testing.T) {
	f := newIngestFixture(t, cache.NewMemoryKVStore())
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, input(domain.MeasurementHeartRate, 80, 7), "")
	require.NoError(t, err)
	assert.Equal(t, prediction.ModeFast, res.Strategy)
	assert.InDelta(t, 0.007391541344281971, res.Prediction.Probability, 1e-15)

	at := time.Date(2021, 1, 1, 7, 0, 0, 0, time.UTC)
	assert.True(t, res.Measurement.TimeCreated.Equal(at))
	assert.True(t, res.Prediction.TimeCreated.Equal(at))
	assert.NotZero(t, res.Measurement.ID)

	preds, total, err := f.measurements.ListPredictions(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, res.Prediction, preds[0])

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, res.Measurement.ID, f.publisher.events[0].MeasurementID)
	assert.Equal(t, "fast", f.publisher.events[0].Strategy)
}

func TestIngest_FastAndSlowAgreeOnBloodPressureAndRespiration(t *testing.T) {
	fast := newIngestFixture(t, cache.NewMemoryKVStore())
	slow := newIngestFixture(t, cache.NewMemoryKVStore())
	ctx := context.Background()

	inputs := []domain.MeasurementInput{
		input(domain.MeasurementRespirationRate, 18, 1),
		input(domain.MeasurementBloodPressure, 120, 2),
		input(domain.MeasurementRespirationRate, 22, 3),
		input(domain.MeasurementBloodPressure, 135, 4),
		input(domain.MeasurementHeartRate, 90, 5),
	}
	for _, in := range inputs {
		a, err := fast.svc.Ingest(ctx, in, prediction.ModeFast)
		require.NoError(t, err)
		b, err := slow.svc.Ingest(ctx, in, prediction.ModeSlow)
		require.NoError(t, err)
		assert.InDelta(t, a.Prediction.Probability, b.Prediction.Probability, 1e-12, in.Parameter)
	}
}

func TestIngest_UnknownPatient(t *testing.T) {
	f := newIngestFixture(t, cache.NewMemoryKVStore())
	in := input(domain.MeasurementTemperature, 37, 1)
	in.PatientID = 404

	_, err := f.svc.Ingest(context.Background(), in, "")
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)

	n, err := f.measurements.CountMeasurements(context.Background(), 404, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngest_InvalidInput(t *testing.T) {
	f := newIngestFixture(t, cache.NewMemoryKVStore())

	_, err := f.svc.Ingest(context.Background(), input(domain.MeasurementTemperature, -1, 1), "")
	assert.ErrorIs(t, err, domain.ErrInvalidMeasurement)

	_, err = f.svc.Ingest(context.Background(), input(domain.MeasurementTemperature, 37, 1), prediction.Mode("medium"))
	assert.Error(t, err)
}

func TestIngest_CacheOutageKeepsMeasurement(t *testing.T) {
	f := newIngestFixture(t, failingKV{})
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, input(domain.MeasurementBloodPressure, 120, 1), prediction.ModeFast)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	n, err := f.measurements.CountMeasurements(ctx, 1, domain.MeasurementBloodPressure)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, total, err := f.measurements.ListPredictions(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.publisher.events)

	// slow path does not touch the cache
	res, err := f.svc.Ingest(ctx, input(domain.MeasurementBloodPressure, 125, 2), prediction.ModeSlow)
	require.NoError(t, err)
	assert.Equal(t, prediction.ModeSlow, res.Strategy)
}

func TestIngest_PublishFailureIsNotFatal(t *testing.T) {
	f := newIngestFixture(t, cache.NewMemoryKVStore())
	f.publisher.err = errors.New("stream down")

	res, err := f.svc.Ingest(context.Background(), input(domain.MeasurementHeartRate, 80, 7), "")
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestMeasurementService_Queries(t *testing.T) {
	f := newIngestFixture(t, cache.NewMemoryKVStore())
	ctx := context.Background()

	for hour := 0; hour < 5; hour++ {
		_, err := f.svc.Ingest(ctx, input(domain.MeasurementTemperature, 36+float64(hour)/10, hour), "")
		require.NoError(t, err)
	}
	_, err := f.svc.Ingest(ctx, input(domain.MeasurementHeartRate, 70, 6), "")
	require.NoError(t, err)

	page, err := f.svc.ListMeasurements(ctx, 1, domain.MeasurementTemperature, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 4, page.Items[0].TimeCreated.Hour())

	preds, err := f.svc.ListPredictions(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, preds.Total)
	assert.Equal(t, 100, preds.Limit)
	assert.Equal(t, 6, preds.Items[0].TimeCreated.Hour())

	_, err = f.svc.ListMeasurements(ctx, 2, "", 0, 10)
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
	_, err = f.svc.ListPredictions(ctx, 2, 0, 10)
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
}
