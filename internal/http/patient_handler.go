package httpapi

import (
	"fmt"
	"net/http"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/service"

	"go.uber.org/zap"
)

func errInvalidPatientID(s string) error {
	return fmt.Errorf("%w: patient id %q is not a non-negative integer", domain.ErrInvalidPatient, s)
}

// PatientHandler patient and admission endpoints
type PatientHandler struct {
	svc    *service.PatientService
	logger *zap.Logger
}

func NewPatientHandler(svc *service.PatientService, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, logger: logger}
}

// CreatePatient POST /v1/patients/
func (h *PatientHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var in domain.Patient
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.svc.CreatePatient(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPatients GET /v1/patients/
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	page, err := h.svc.ListPatients(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetPatient GET /v1/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request, patientID int64) {
	p, err := h.svc.GetPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateAdmission POST /v1/patients/{id}/admissions
func (h *PatientHandler) CreateAdmission(w http.ResponseWriter, r *http.Request, patientID int64) {
	var in service.AdmissionInput
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	a, err := h.svc.AddAdmission(r.Context(), patientID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("Admission recorded",
		zap.Int64("patient_id", patientID),
		zap.Time("date_admission", a.DateAdmission),
	)
	writeJSON(w, http.StatusCreated, a)
}

// ListAdmissions GET /v1/patients/{id}/admissions
func (h *PatientHandler) ListAdmissions(w http.ResponseWriter, r *http.Request, patientID int64) {
	offset, limit := pageParams(r)
	page, err := h.svc.ListAdmissions(r.Context(), patientID, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
