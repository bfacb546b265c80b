package domain

import (
	"fmt"
	"math"
	"time"
)

// MeasurementType physiological parameter carried by a measurement
type MeasurementType string

const (
	MeasurementBloodPressure   MeasurementType = "blood_pressure"
	MeasurementRespirationRate MeasurementType = "respiration_rate"
	MeasurementTemperature     MeasurementType = "temperature"
	MeasurementHeartRate       MeasurementType = "heart_rate"
)

// Valid reports whether t is one of the known parameters
func (t MeasurementType) Valid() bool {
	switch t {
	case MeasurementBloodPressure, MeasurementRespirationRate, MeasurementTemperature, MeasurementHeartRate:
		return true
	}
	return false
}

// ParseMeasurementType parses the wire name of a parameter
func ParseMeasurementType(s string) (MeasurementType, error) {
	t := MeasurementType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown parameter %q", ErrInvalidMeasurement, s)
	}
	return t, nil
}

// Measurement measurement domain model (maps to the measurements table)
// Immutable once persisted
type Measurement struct {
	ID          int64           `db:"id" json:"id"`
	PatientID   int64           `db:"patient_id" json:"patient_id"`
	Type        MeasurementType `db:"type" json:"type"`
	Value       float64         `db:"value" json:"value"`
	TimeCreated time.Time       `db:"time_created" json:"time_created"`
}

// MeasurementDayLayout layout of MeasurementInput.Day
const MeasurementDayLayout = "2006-01-02"

// MeasurementInput incoming measurement as sent by devices and the loader
// Day + Hour are combined into the measurement instant (UTC)
type MeasurementInput struct {
	PatientID int64           `json:"patient_id"`
	Day       string          `json:"day"`
	Hour      int             `json:"hour"`
	Parameter MeasurementType `json:"parameter"`
	Value     float64         `json:"value"`
}

// Validate checks the input against the accepted ranges
func (in MeasurementInput) Validate() error {
	if in.PatientID < 0 {
		return fmt.Errorf("%w: patient_id must be >= 0", ErrInvalidMeasurement)
	}
	if !in.Parameter.Valid() {
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidMeasurement, in.Parameter)
	}
	if in.Hour < 0 || in.Hour > 24 {
		return fmt.Errorf("%w: hour must be within 0..24", ErrInvalidMeasurement)
	}
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value < 0 {
		return fmt.Errorf("%w: value must be a finite number >= 0", ErrInvalidMeasurement)
	}
	if _, err := in.Timestamp(); err != nil {
		return err
	}
	return nil
}

// Timestamp returns Day + Hour as a single instant
func (in MeasurementInput) Timestamp() (time.Time, error) {
	day, err := time.Parse(MeasurementDayLayout, in.Day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q is not YYYY-MM-DD", ErrInvalidMeasurement, in.Day)
	}
	return day.Add(time.Duration(in.Hour) * time.Hour), nil
}
