package mqtt

import (
	"context"
	"testing"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/prediction"
	"wisefido-readmission/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIngester struct {
	calls []domain.MeasurementInput
	modes []prediction.Mode
}

func (f *fakeIngester) Ingest(_ context.Context, in domain.MeasurementInput, mode prediction.Mode) (*service.IngestResult, error) {
	f.calls = append(f.calls, in)
	f.modes = append(f.modes, mode)
	if in.PatientID == 404 {
		return nil, domain.ErrPatientNotFound
	}
	return &service.IngestResult{Measurement: domain.Measurement{ID: int64(len(f.calls))}}, nil
}

func TestMeasurementBroker_SingleMessage(t *testing.T) {
	ing := &fakeIngester{}
	b := NewMeasurementBroker(ing, prediction.ModeSlow, zap.NewNop())

	err := b.HandleMessage("readmission/measurements",
		[]byte(` {"patient_id":1,"day":"2021-01-01","hour":7,"parameter":"temperature","value":37.5}`))
	require.NoError(t, err)
	require.Len(t, ing.calls, 1)
	assert.Equal(t, domain.MeasurementTemperature, ing.calls[0].Parameter)
	assert.Equal(t, 37.5, ing.calls[0].Value)
	assert.Equal(t, prediction.ModeSlow, ing.modes[0])
}

func TestMeasurementBroker_BatchContinuesPastFailures(t *testing.T) {
	ing := &fakeIngester{}
	b := NewMeasurementBroker(ing, "", zap.NewNop())

	err := b.HandleMessage("t", []byte(`[
		{"patient_id":1,"day":"2021-01-01","hour":1,"parameter":"heart_rate","value":70},
		{"patient_id":404,"day":"2021-01-01","hour":2,"parameter":"heart_rate","value":71},
		{"patient_id":1,"day":"2021-01-01","hour":3,"parameter":"heart_rate","value":72}
	]`))
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
	assert.Len(t, ing.calls, 3)
}

func TestMeasurementBroker_Malformed(t *testing.T) {
	ing := &fakeIngester{}
	b := NewMeasurementBroker(ing, "", zap.NewNop())

	assert.Error(t, b.HandleMessage("t", []byte("")))
	assert.Error(t, b.HandleMessage("t", []byte("{not json")))
	assert.Error(t, b.HandleMessage("t", []byte("[1,2]")))
	assert.Empty(t, ing.calls)
}
