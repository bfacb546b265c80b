package prediction

import (
	"context"
	"errors"

	"wisefido-readmission/internal/domain"

	"go.uber.org/zap"
)

// FallbackStrategy delegates to fallback when primary fails with
// domain.ErrCacheUnavailable. Any other error is returned as is.
//
// When the fallback answers, the cache misses this increment and stays
// stale until it is rebuilt.
type FallbackStrategy struct {
	primary  Strategy
	fallback Strategy
	logger   *zap.Logger
}

// NewFallbackStrategy wraps primary with fallback
func NewFallbackStrategy(primary, fallback Strategy, logger *zap.Logger) *FallbackStrategy {
	return &FallbackStrategy{primary: primary, fallback: fallback, logger: logger}
}

var _ Strategy = (*FallbackStrategy)(nil)

func (s *FallbackStrategy) Calculate(ctx context.Context, patient domain.Patient, m domain.Measurement) (float64, error) {
	p, err := s.primary.Calculate(ctx, patient, m)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrCacheUnavailable) {
		return 0, err
	}

	s.logger.Warn("Stats cache unavailable, falling back to history scan",
		zap.Int64("patient_id", patient.ID),
		zap.String("measurement_type", string(m.Type)),
		zap.Error(err),
	)
	return s.fallback.Calculate(ctx, patient, m)
}
