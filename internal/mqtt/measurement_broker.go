package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/prediction"
	"wisefido-readmission/internal/service"

	"go.uber.org/zap"
)

// Ingester consumes one measurement
type Ingester interface {
	Ingest(ctx context.Context, in domain.MeasurementInput, mode prediction.Mode) (*service.IngestResult, error)
}

// MeasurementBroker feeds device measurements published on MQTT into the ingestion service
//
// A payload is one measurement object or an array of them, in the same
// format as POST /v1/measurements.
type MeasurementBroker struct {
	ingester Ingester
	mode     prediction.Mode // empty = service default
	timeout  time.Duration
	logger   *zap.Logger
}

var _ Ingester = (*service.MeasurementService)(nil)

func NewMeasurementBroker(ingester Ingester, mode prediction.Mode, logger *zap.Logger) *MeasurementBroker {
	return &MeasurementBroker{
		ingester: ingester,
		mode:     mode,
		timeout:  10 * time.Second,
		logger:   logger,
	}
}

// HandleMessage ingests every measurement of the payload, continuing past failures
func (b *MeasurementBroker) HandleMessage(topic string, payload []byte) error {
	inputs, err := decodeMeasurements(payload)
	if err != nil {
		return fmt.Errorf("failed to decode message on %s: %w", topic, err)
	}

	var errs []error
	for _, in := range inputs {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		res, err := b.ingester.Ingest(ctx, in, b.mode)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("patient %d %s: %w", in.PatientID, in.Parameter, err))
			continue
		}

		b.logger.Debug("Ingested MQTT measurement",
			zap.String("topic", topic),
			zap.Int64("patient_id", in.PatientID),
			zap.Int64("measurement_id", res.Measurement.ID),
			zap.Float64("probability", res.Prediction.Probability),
		)
	}
	return errors.Join(errs...)
}

func decodeMeasurements(payload []byte) ([]domain.MeasurementInput, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '[' {
		var inputs []domain.MeasurementInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, err
		}
		return inputs, nil
	}
	var in domain.MeasurementInput
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return nil, err
	}
	return []domain.MeasurementInput{in}, nil
}
