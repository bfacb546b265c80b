package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/events"
	"wisefido-readmission/internal/metrics"
	"wisefido-readmission/internal/prediction"
	"wisefido-readmission/internal/repository"

	"go.uber.org/zap"
)

// PredictionPublisher receives every stored prediction
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, event events.PredictionEvent) (string, error)
}

// MeasurementService 测量数据摄取服务
//
// Ingest runs patient lookup, measurement persistence, strategy calculation
// and prediction persistence in that order. A failure after the measurement
// is stored leaves it in place.
type MeasurementService struct {
	patients     repository.PatientRepository
	measurements repository.MeasurementRepository
	factory      *prediction.Factory
	defaultMode  prediction.Mode
	publisher    PredictionPublisher // optional
	metrics      *metrics.Metrics    // optional
	logger       *zap.Logger
}

// NewMeasurementService creates the ingestion service
// publisher and m may be nil.
func NewMeasurementService(
	patients repository.PatientRepository,
	measurements repository.MeasurementRepository,
	factory *prediction.Factory,
	defaultMode prediction.Mode,
	publisher PredictionPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MeasurementService {
	if defaultMode == "" {
		defaultMode = prediction.ModeFast
	}
	return &MeasurementService{
		patients:     patients,
		measurements: measurements,
		factory:      factory,
		defaultMode:  defaultMode,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
	}
}

// IngestResult stored measurement and the prediction derived from it
type IngestResult struct {
	Measurement domain.Measurement           `json:"measurement"`
	Prediction  domain.ReadmissionPrediction `json:"prediction"`
	Strategy    prediction.Mode              `json:"strategy"`
}

// Ingest stores in and the readmission probability it produces
// An empty mode uses the configured default.
func (s *MeasurementService) Ingest(ctx context.Context, in domain.MeasurementInput, mode prediction.Mode) (*IngestResult, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ts, err := in.Timestamp()
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		s.metrics.IngestFailed(string(mode), "patient")
		return nil, err
	}

	strategy, err := s.factory.New(mode, s.measurements)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy: %w", err)
	}

	m, err := s.measurements.SaveMeasurement(ctx, domain.Measurement{
		PatientID:   patient.ID,
		Type:        in.Parameter,
		Value:       in.Value,
		TimeCreated: ts,
	})
	if err != nil {
		s.metrics.IngestFailed(string(mode), "measurement")
		return nil, fmt.Errorf("failed to save measurement: %w", err)
	}

	start := time.Now()
	probability, err := strategy.Calculate(ctx, *patient, *m)
	if err != nil {
		s.metrics.IngestFailed(string(mode), "strategy")
		s.logger.Error("Failed to calculate readmission probability",
			zap.Int64("patient_id", patient.ID),
			zap.Int64("measurement_id", m.ID),
			zap.String("strategy", string(mode)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to calculate readmission probability: %w", err)
	}
	elapsed := time.Since(start)

	p := domain.ReadmissionPrediction{
		PatientID:   patient.ID,
		TimeCreated: m.TimeCreated,
		Probability: probability,
	}
	if err := s.measurements.SavePrediction(ctx, p); err != nil {
		s.metrics.IngestFailed(string(mode), "prediction")
		return nil, fmt.Errorf("failed to save readmission prediction: %w", err)
	}
	s.metrics.ObserveIngest(string(mode), string(m.Type), probability, elapsed)

	s.publish(ctx, mode, *m, p)

	return &IngestResult{Measurement: *m, Prediction: p, Strategy: mode}, nil
}

// publish never fails the ingestion
func (s *MeasurementService) publish(ctx context.Context, mode prediction.Mode, m domain.Measurement, p domain.ReadmissionPrediction) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PublishPrediction(ctx, events.PredictionEvent{
		PatientID:     p.PatientID,
		MeasurementID: m.ID,
		Parameter:     m.Type,
		Strategy:      string(mode),
		TimeCreated:   p.TimeCreated,
		Probability:   p.Probability,
	})
	if err != nil {
		s.metrics.PublishFailed()
		s.logger.Warn("Failed to publish prediction event",
			zap.Int64("patient_id", p.PatientID),
			zap.Error(err),
		)
	}
}

// ListMeasurements most recent first; domain.ErrPatientNotFound for an unknown patient
func (s *MeasurementService) ListMeasurements(ctx context.Context, patientID int64, t domain.MeasurementType, offset, limit int) (*Page[domain.Measurement], error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	offset, limit = normalizePage(offset, limit)

	total, err := s.measurements.CountMeasurements(ctx, patientID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to count measurements: %w", err)
	}
	items, err := s.measurements.ListMeasurements(ctx, patientID, t, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}
	return &Page[domain.Measurement]{Offset: offset, Limit: limit, Total: total, Items: items}, nil
}

// ListPredictions readmission probabilities over time, most recent first
func (s *MeasurementService) ListPredictions(ctx context.Context, patientID int64, offset, limit int) (*Page[domain.ReadmissionPrediction], error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	offset, limit = normalizePage(offset, limit)

	items, total, err := s.measurements.ListPredictions(ctx, patientID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readmission predictions: %w", err)
	}
	return &Page[domain.ReadmissionPrediction]{Offset: offset, Limit: limit, Total: total, Items: items}, nil
}
