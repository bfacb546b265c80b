package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/prediction"

	"go.uber.org/zap"
)

// DefaultKeyPrefix prefix of the per-patient sufficient statistics keys
const DefaultKeyPrefix = "patient:"

const (
	lastBloodPressureSuffix = ":last_blood_pressure"
	respiratoryRateSuffix   = ":mean_respiratory_rate"
	temperatureSuffix       = ":standard_deviation_temperature"
)

// StatsCache prediction.StatsCache stored as JSON values in a KVStore
//
// Keys: {prefix}{patient_id}:last_blood_pressure,
// {prefix}{patient_id}:mean_respiratory_rate,
// {prefix}{patient_id}:standard_deviation_temperature.
// Every write is a single independent key overwrite.
type StatsCache struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCache creates the stats cache; ttl 0 keeps entries forever
// With ttl > 0 an expired aggregate reads as zero and its count restarts, so it
// no longer covers every measurement of the patient.
func NewStatsCache(kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *StatsCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &StatsCache{kv: kv, prefix: prefix, ttl: ttl, logger: logger}
}

var _ prediction.StatsCache = (*StatsCache)(nil)

func (c *StatsCache) key(patientID int64, suffix string) string {
	return fmt.Sprintf("%s%d%s", c.prefix, patientID, suffix)
}

// load decodes key into out; found=false on a miss
func (c *StatsCache) load(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("%w: get %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return true, nil
}

func (c *StatsCache) store(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		return fmt.Errorf("%w: set %s: %v", domain.ErrCacheUnavailable, key, err)
	}

	c.logger.Debug("Updated stats cache",
		zap.String("key", key),
	)
	return nil
}

func (c *StatsCache) LastBloodPressure(ctx context.Context, patientID int64) (*prediction.LastBloodPressure, error) {
	var v prediction.LastBloodPressure
	found, err := c.load(ctx, c.key(patientID, lastBloodPressureSuffix), &v)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

func (c *StatsCache) SetLastBloodPressure(ctx context.Context, patientID int64, v prediction.LastBloodPressure) error {
	return c.store(ctx, c.key(patientID, lastBloodPressureSuffix), v)
}

func (c *StatsCache) RespiratoryRunningMean(ctx context.Context, patientID int64) (prediction.RespiratoryRunningMean, error) {
	var v prediction.RespiratoryRunningMean
	if _, err := c.load(ctx, c.key(patientID, respiratoryRateSuffix), &v); err != nil {
		return prediction.RespiratoryRunningMean{}, err
	}
	return v, nil
}

func (c *StatsCache) SetRespiratoryRunningMean(ctx context.Context, patientID int64, v prediction.RespiratoryRunningMean) error {
	return c.store(ctx, c.key(patientID, respiratoryRateSuffix), v)
}

func (c *StatsCache) TemperatureRunningStats(ctx context.Context, patientID int64) (prediction.TemperatureRunningStats, error) {
	var v prediction.TemperatureRunningStats
	if _, err := c.load(ctx, c.key(patientID, temperatureSuffix), &v); err != nil {
		return prediction.TemperatureRunningStats{}, err
	}
	return v, nil
}

func (c *StatsCache) SetTemperatureRunningStats(ctx context.Context, patientID int64, v prediction.TemperatureRunningStats) error {
	return c.store(ctx, c.key(patientID, temperatureSuffix), v)
}
