package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wisefido-readmission/internal/domain"
)

// MemoryPatientRepository supports local runs when DB is disabled
type MemoryPatientRepository struct {
	mu         sync.RWMutex
	patients   map[int64]domain.Patient
	admissions map[int64][]domain.Admission // patientID -> admissions in insertion order
}

func NewMemoryPatientRepository() *MemoryPatientRepository {
	return &MemoryPatientRepository{
		patients:   map[int64]domain.Patient{},
		admissions: map[int64][]domain.Admission{},
	}
}

var _ PatientRepository = (*MemoryPatientRepository)(nil)

func (r *MemoryPatientRepository) GetByID(_ context.Context, id int64) (*domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrPatientNotFound, id)
	}
	return &p, nil
}

func (r *MemoryPatientRepository) List(_ context.Context, offset, limit int) ([]domain.Patient, int, error) {
	r.mu.RLock()
	all := make([]domain.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		all = append(all, p)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, offset, limit), len(all), nil
}

func (r *MemoryPatientRepository) Save(_ context.Context, p domain.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[p.ID]; ok {
		return fmt.Errorf("%w: %d", domain.ErrPatientAlreadyExists, p.ID)
	}
	r.patients[p.ID] = p
	return nil
}

func (r *MemoryPatientRepository) SaveAdmission(_ context.Context, a domain.Admission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[a.PatientID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrPatientNotFound, a.PatientID)
	}
	r.admissions[a.PatientID] = append(r.admissions[a.PatientID], a)
	return nil
}

func (r *MemoryPatientRepository) ListAdmissions(_ context.Context, patientID int64, offset, limit int) ([]domain.Admission, int, error) {
	r.mu.RLock()
	src := r.admissions[patientID]
	all := make([]domain.Admission, len(src))
	// newest insert first among equal dates
	for i := range src {
		all[len(src)-1-i] = src[i]
	}
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].DateAdmission.After(all[j].DateAdmission) })
	return page(all, offset, limit), len(all), nil
}

// page returns the [offset, offset+limit) window of all, never nil
func page[T any](all []T, offset, limit int) []T {
	offset, limit = normalizePage(offset, limit)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]T, end-offset)
	copy(out, all[offset:end])
	return out
}
