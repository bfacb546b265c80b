package loader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError non-2xx answer of the readmission API
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Client readmission API client
type Client struct {
	httpClient *resty.Client
}

// NewClient baseURL includes the version prefix, e.g. http://localhost:8080/v1
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{httpClient: client}
}

// PatientRequest body of POST /patients/
type PatientRequest struct {
	ID  int64 `json:"id"`
	Age int   `json:"age"`
}

// AdmissionRequest body of POST /patients/{id}/admissions
type AdmissionRequest struct {
	PatientID     int64  `json:"patient_id"`
	DateAdmission string `json:"date_admission"`
	DateDischarge string `json:"date_discharge,omitempty"`
}

// MeasurementRequest body of POST /measurements
type MeasurementRequest struct {
	PatientID int64   `json:"patient_id"`
	Day       string  `json:"day"`
	Hour      int     `json:"hour"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
}

func (c *Client) CreatePatient(ctx context.Context, requestID string, p PatientRequest) error {
	return c.post(ctx, requestID, "/patients/", p)
}

func (c *Client) CreateAdmission(ctx context.Context, requestID string, a AdmissionRequest) error {
	return c.post(ctx, requestID, fmt.Sprintf("/patients/%d/admissions", a.PatientID), a)
}

func (c *Client) PostMeasurement(ctx context.Context, requestID string, m MeasurementRequest) error {
	return c.post(ctx, requestID, "/measurements", m)
}

func (c *Client) post(ctx context.Context, requestID, path string, body any) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return &APIError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
