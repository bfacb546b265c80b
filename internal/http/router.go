package httpapi

import (
	"net/http"
	"strings"

	"wisefido-readmission/internal/metrics"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
// Every route is instrumented under its registration pattern.
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRouter m may be nil
func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, instrument(pattern, h, r.metrics, r.logger))
}

// HandleHandler registers h without instrumentation
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Detail: "Method Not Allowed"})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: "Not Found"})
}

// RegisterMeasurementRoutes /v0/measurements always uses the slow strategy,
// /v1/measurements the configured one
func (r *Router) RegisterMeasurementRoutes(h *MeasurementHandler) {
	r.Handle("/v0/measurements", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.IngestSlow(w, req)
	})
	r.Handle("/v1/measurements", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Ingest(w, req)
	})
}

// RegisterPatientRoutes /v1/patients/ and everything below it
func (r *Router) RegisterPatientRoutes(p *PatientHandler, m *MeasurementHandler) {
	collection := func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			p.CreatePatient(w, req)
		case http.MethodGet:
			p.ListPatients(w, req)
		default:
			methodNotAllowed(w)
		}
	}
	r.Handle("/v1/patients", collection)

	r.Handle("/v1/patients/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/v1/patients/"), "/")
		if rest == "" {
			collection(w, req)
			return
		}

		parts := strings.Split(rest, "/")
		patientID, err := parsePatientID(parts[0])
		if err != nil {
			writeError(w, err)
			return
		}

		switch {
		case len(parts) == 1:
			if req.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			p.GetPatient(w, req, patientID)
		case len(parts) == 2 && parts[1] == "admissions":
			switch req.Method {
			case http.MethodPost:
				p.CreateAdmission(w, req, patientID)
			case http.MethodGet:
				p.ListAdmissions(w, req, patientID)
			default:
				methodNotAllowed(w)
			}
		case len(parts) == 3 && parts[1] == "measurements":
			if req.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			m.ListMeasurements(w, req, patientID, parts[2])
		case len(parts) == 2 && parts[1] == "readmission-probability":
			if req.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			m.ListPredictions(w, req, patientID)
		default:
			notFound(w)
		}
	})
}

// RegisterSystemRoutes /health, /metrics, / and /v1/
func (r *Router) RegisterSystemRoutes(health *HealthHandler, m *metrics.Metrics) {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		health.Check(w, req)
	})
	if m != nil {
		r.HandleHandler("/metrics", m.Handler())
	}

	index := func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" && req.URL.Path != "/v1/" {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "wisefido-readmission",
			"status":  "ok",
		})
	}
	r.Handle("/", index)
	r.Handle("/v1/", index)
}
