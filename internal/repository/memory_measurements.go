package repository

import (
	"context"
	"sort"
	"sync"

	"wisefido-readmission/internal/domain"
)

// MemoryMeasurementRepository supports local runs when DB is disabled
// Patient existence is checked by the service layer, not here.
type MemoryMeasurementRepository struct {
	mu           sync.RWMutex
	nextID       int64
	measurements map[int64][]domain.Measurement // patientID -> measurements in insertion order
	predictions  map[int64][]domain.ReadmissionPrediction
}

func NewMemoryMeasurementRepository() *MemoryMeasurementRepository {
	return &MemoryMeasurementRepository{
		measurements: map[int64][]domain.Measurement{},
		predictions:  map[int64][]domain.ReadmissionPrediction{},
	}
}

var _ MeasurementRepository = (*MemoryMeasurementRepository)(nil)

func (r *MemoryMeasurementRepository) SaveMeasurement(_ context.Context, m domain.Measurement) (*domain.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	m.ID = r.nextID
	r.measurements[m.PatientID] = append(r.measurements[m.PatientID], m)
	return &m, nil
}

// sorted returns the patient's measurements of type t, most recent first
func (r *MemoryMeasurementRepository) sorted(patientID int64, t domain.MeasurementType) []domain.Measurement {
	r.mu.RLock()
	var out []domain.Measurement
	for _, m := range r.measurements[patientID] {
		if t == "" || m.Type == t {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].TimeCreated.Equal(out[j].TimeCreated) {
			return out[i].TimeCreated.After(out[j].TimeCreated)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *MemoryMeasurementRepository) ListMeasurements(_ context.Context, patientID int64, t domain.MeasurementType, offset, limit int) ([]domain.Measurement, error) {
	return page(r.sorted(patientID, t), offset, limit), nil
}

func (r *MemoryMeasurementRepository) CountMeasurements(_ context.Context, patientID int64, t domain.MeasurementType) (int, error) {
	return len(r.sorted(patientID, t)), nil
}

func (r *MemoryMeasurementRepository) LastMeasurement(_ context.Context, patientID int64, t domain.MeasurementType) (*domain.Measurement, error) {
	all := r.sorted(patientID, t)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (r *MemoryMeasurementRepository) SavePrediction(_ context.Context, p domain.ReadmissionPrediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.predictions[p.PatientID] = append(r.predictions[p.PatientID], p)
	return nil
}

func (r *MemoryMeasurementRepository) ListPredictions(_ context.Context, patientID int64, offset, limit int) ([]domain.ReadmissionPrediction, int, error) {
	r.mu.RLock()
	src := r.predictions[patientID]
	all := make([]domain.ReadmissionPrediction, len(src))
	for i := range src {
		all[len(src)-1-i] = src[i]
	}
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].TimeCreated.After(all[j].TimeCreated) })
	return page(all, offset, limit), len(all), nil
}
