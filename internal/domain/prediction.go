package domain

import "time"

// ReadmissionPrediction one prediction per ingested measurement (maps to the readmission_predictions table)
// TimeCreated is the timestamp of the measurement that produced it
type ReadmissionPrediction struct {
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	TimeCreated time.Time `db:"time_created" json:"time_created"`
	Probability float64   `db:"probability" json:"probability"`
}
