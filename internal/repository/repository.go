// Package repository persists patients, admissions, measurements and
// readmission predictions. Every repository has a Postgres implementation and
// an in-memory one used when the database is disabled.
package repository

import (
	"context"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/prediction"
)

// DefaultPageSize page size used when a caller passes limit <= 0
const DefaultPageSize = 100

// PatientRepository patients and their admissions
type PatientRepository interface {
	// GetByID returns domain.ErrPatientNotFound when the id is unknown
	GetByID(ctx context.Context, id int64) (*domain.Patient, error)
	// List ordered by id, with the total number of patients
	List(ctx context.Context, offset, limit int) ([]domain.Patient, int, error)
	// Save returns domain.ErrPatientAlreadyExists on a duplicate id
	Save(ctx context.Context, p domain.Patient) error

	SaveAdmission(ctx context.Context, a domain.Admission) error
	// ListAdmissions most recent admission first
	ListAdmissions(ctx context.Context, patientID int64, offset, limit int) ([]domain.Admission, int, error)
}

// MeasurementRepository measurements and the predictions derived from them
// An empty MeasurementType matches every type.
type MeasurementRepository interface {
	// SaveMeasurement returns m with its assigned ID
	SaveMeasurement(ctx context.Context, m domain.Measurement) (*domain.Measurement, error)
	// ListMeasurements most recent first (time_created, then id)
	ListMeasurements(ctx context.Context, patientID int64, t domain.MeasurementType, offset, limit int) ([]domain.Measurement, error)
	CountMeasurements(ctx context.Context, patientID int64, t domain.MeasurementType) (int, error)
	// LastMeasurement returns nil, nil when the patient has no such measurement
	LastMeasurement(ctx context.Context, patientID int64, t domain.MeasurementType) (*domain.Measurement, error)

	SavePrediction(ctx context.Context, p domain.ReadmissionPrediction) error
	// ListPredictions most recent first, with the total for the patient
	ListPredictions(ctx context.Context, patientID int64, offset, limit int) ([]domain.ReadmissionPrediction, int, error)
}

var _ prediction.MeasurementHistory = (MeasurementRepository)(nil)

// normalizePage clamps offset and limit to usable values
func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return offset, limit
}
