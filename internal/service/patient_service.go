package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/repository"

	"go.uber.org/zap"
)

// Page pagination envelope of list responses
type Page[T any] struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
	Items  []T `json:"items"`
}

// MaxPageSize upper bound of a requested limit
const MaxPageSize = 1000

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return offset, limit
}

// PatientService 患者服务
type PatientService struct {
	patients repository.PatientRepository
	logger   *zap.Logger
}

// NewPatientService 创建患者服务
func NewPatientService(patients repository.PatientRepository, logger *zap.Logger) *PatientService {
	return &PatientService{patients: patients, logger: logger}
}

// CreatePatient returns domain.ErrPatientAlreadyExists for a known id
func (s *PatientService) CreatePatient(ctx context.Context, p domain.Patient) (*domain.Patient, error) {
	if p.ID < 0 {
		return nil, fmt.Errorf("%w: id must be >= 0", domain.ErrInvalidPatient)
	}
	if p.Age < 0 {
		return nil, fmt.Errorf("%w: age must be >= 0", domain.ErrInvalidPatient)
	}

	if err := s.patients.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save patient: %w", err)
	}

	s.logger.Info("Patient registered",
		zap.Int64("patient_id", p.ID),
		zap.Int("age", p.Age),
	)
	return &p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id int64) (*domain.Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *PatientService) ListPatients(ctx context.Context, offset, limit int) (*Page[domain.Patient], error) {
	offset, limit = normalizePage(offset, limit)
	items, total, err := s.patients.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return &Page[domain.Patient]{Offset: offset, Limit: limit, Total: total, Items: items}, nil
}

// AdmissionInput admission as sent by clients, dates are dd/mm/yyyy
type AdmissionInput struct {
	PatientID     int64  `json:"patient_id"`
	DateAdmission string `json:"date_admission"`
	DateDischarge string `json:"date_discharge"` // empty while still admitted
}

// parseAdmission validates in against patientID taken from the path
func parseAdmission(patientID int64, in AdmissionInput) (domain.Admission, error) {
	if in.PatientID != 0 && in.PatientID != patientID {
		return domain.Admission{}, fmt.Errorf("%w: patient_id %d does not match path id %d", domain.ErrInvalidAdmission, in.PatientID, patientID)
	}

	admitted, err := time.Parse(domain.AdmissionDateLayout, strings.TrimSpace(in.DateAdmission))
	if err != nil {
		return domain.Admission{}, fmt.Errorf("%w: date_admission %q is not dd/mm/yyyy", domain.ErrInvalidAdmission, in.DateAdmission)
	}
	a := domain.Admission{PatientID: patientID, DateAdmission: admitted}

	if d := strings.TrimSpace(in.DateDischarge); d != "" {
		discharged, err := time.Parse(domain.AdmissionDateLayout, d)
		if err != nil {
			return domain.Admission{}, fmt.Errorf("%w: date_discharge %q is not dd/mm/yyyy", domain.ErrInvalidAdmission, in.DateDischarge)
		}
		if discharged.Before(admitted) {
			return domain.Admission{}, fmt.Errorf("%w: discharge before admission", domain.ErrInvalidAdmission)
		}
		a.DateDischarge = &discharged
	}
	return a, nil
}

func (s *PatientService) AddAdmission(ctx context.Context, patientID int64, in AdmissionInput) (*domain.Admission, error) {
	a, err := parseAdmission(patientID, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	if err := s.patients.SaveAdmission(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save admission: %w", err)
	}
	return &a, nil
}

func (s *PatientService) ListAdmissions(ctx context.Context, patientID int64, offset, limit int) (*Page[domain.Admission], error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	offset, limit = normalizePage(offset, limit)
	items, total, err := s.patients.ListAdmissions(ctx, patientID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list admissions: %w", err)
	}
	return &Page[domain.Admission]{Offset: offset, Limit: limit, Total: total, Items: items}, nil
}
