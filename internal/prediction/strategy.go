// Package prediction computes readmission probabilities from a patient's
// measurements. Two strategies exist: FastStrategy keeps sufficient
// statistics in a StatsCache and updates them in O(1) per measurement,
// SlowStrategy rescans a bounded slice of the measurement history.
package prediction

import (
	"context"
	"fmt"
	"strings"

	"wisefido-readmission/internal/domain"

	"go.uber.org/zap"
)

// Strategy computes the readmission probability after m has been persisted
type Strategy interface {
	Calculate(ctx context.Context, patient domain.Patient, m domain.Measurement) (float64, error)
}

// Mode selects a Strategy implementation
type Mode string

const (
	ModeFast Mode = "fast"
	ModeSlow Mode = "slow"
)

// ParseMode parses the configured strategy name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFast:
		return ModeFast, nil
	case ModeSlow:
		return ModeSlow, nil
	}
	return "", fmt.Errorf("unknown prediction strategy %q", s)
}

// Factory builds one Strategy per ingestion request from that request's collaborators
type Factory struct {
	cache        StatsCache
	historyLimit int
	fallback     bool
	logger       *zap.Logger
}

// NewFactory creates a strategy factory
// cache may be nil when only ModeSlow is used
func NewFactory(cache StatsCache, historyLimit int, fallback bool, logger *zap.Logger) *Factory {
	return &Factory{
		cache:        cache,
		historyLimit: historyLimit,
		fallback:     fallback,
		logger:       logger,
	}
}

// New returns the strategy for mode bound to history
func (f *Factory) New(mode Mode, history MeasurementHistory) (Strategy, error) {
	slow := NewSlowStrategy(history, f.historyLimit, f.logger)
	switch mode {
	case ModeSlow:
		return slow, nil
	case ModeFast:
		if f.cache == nil {
			return nil, fmt.Errorf("fast strategy requires a stats cache")
		}
		fast := NewFastStrategy(f.cache, f.logger)
		if f.fallback {
			return NewFallbackStrategy(fast, slow, f.logger), nil
		}
		return fast, nil
	}
	return nil, fmt.Errorf("unknown prediction strategy %q", mode)
}
