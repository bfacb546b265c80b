package httpapi

import (
	"net/http"
	"strconv"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/prediction"
	"wisefido-readmission/internal/service"

	"go.uber.org/zap"
)

// MeasurementHandler measurement ingestion and query endpoints
type MeasurementHandler struct {
	svc    *service.MeasurementService
	logger *zap.Logger
}

func NewMeasurementHandler(svc *service.MeasurementService, logger *zap.Logger) *MeasurementHandler {
	return &MeasurementHandler{svc: svc, logger: logger}
}

// IngestSlow POST /v0/measurements
func (h *MeasurementHandler) IngestSlow(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, prediction.ModeSlow)
}

// Ingest POST /v1/measurements
func (h *MeasurementHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, "")
}

func (h *MeasurementHandler) ingest(w http.ResponseWriter, r *http.Request, mode prediction.Mode) {
	var in domain.MeasurementInput
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Ingest(r.Context(), in, mode)
	if err != nil {
		if statusForError(err) >= http.StatusInternalServerError {
			h.logger.Error("Failed to ingest measurement",
				zap.Int64("patient_id", in.PatientID),
				zap.String("parameter", string(in.Parameter)),
				zap.Error(err),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListMeasurements GET /v1/patients/{id}/measurements/{type}
func (h *MeasurementHandler) ListMeasurements(w http.ResponseWriter, r *http.Request, patientID int64, rawType string) {
	t, err := domain.ParseMeasurementType(rawType)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, limit := pageParams(r)
	page, err := h.svc.ListMeasurements(r.Context(), patientID, t, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListPredictions GET /v1/patients/{id}/readmission-probability
func (h *MeasurementHandler) ListPredictions(w http.ResponseWriter, r *http.Request, patientID int64) {
	offset, limit := pageParams(r)
	page, err := h.svc.ListPredictions(r.Context(), patientID, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parsePatientID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, errInvalidPatientID(s)
	}
	return id, nil
}
