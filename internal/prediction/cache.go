package prediction

import (
	"context"
	"time"
)

// LastBloodPressure most recent blood pressure by measurement timestamp
type LastBloodPressure struct {
	Value       float64   `json:"value"`
	TimeCreated time.Time `json:"time_created"`
}

// RespiratoryRunningMean running mean of respiration rate
type RespiratoryRunningMean struct {
	Mean  float64 `json:"mean"`
	Count int64   `json:"count"`
}

// TemperatureRunningStats Welford state of temperature
// M2 is the sum of squared deviations from Mean, not the variance
type TemperatureRunningStats struct {
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
	Count int64   `json:"count"`
}

// StatsCache per-patient sufficient statistics consumed by FastStrategy
//
// Reads of an absent key return the zero value (nil for LastBloodPressure),
// never an error. Writes overwrite unconditionally. There is no
// read-modify-write atomicity: two concurrent measurements of the same type
// for the same patient can lose one update. Backend failures must wrap
// domain.ErrCacheUnavailable.
type StatsCache interface {
	LastBloodPressure(ctx context.Context, patientID int64) (*LastBloodPressure, error)
	SetLastBloodPressure(ctx context.Context, patientID int64, v LastBloodPressure) error
	RespiratoryRunningMean(ctx context.Context, patientID int64) (RespiratoryRunningMean, error)
	SetRespiratoryRunningMean(ctx context.Context, patientID int64, v RespiratoryRunningMean) error
	TemperatureRunningStats(ctx context.Context, patientID int64) (TemperatureRunningStats, error)
	SetTemperatureRunningStats(ctx context.Context, patientID int64, v TemperatureRunningStats) error
}
