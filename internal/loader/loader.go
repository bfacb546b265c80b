// Package loader streams patient, admission and signal exports into the
// readmission API and reports per-request latency.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
)

// Report outcome of one file
type Report struct {
	Name    string
	Total   int
	Sent    int // rows sent to the API; latencies cover these only
	Created int
	Failed  int
	Elapsed time.Duration
	// latency percentiles in microseconds
	P50, P90, P99, Max int64
}

func (r Report) String() string {
	return fmt.Sprintf("loaded %s: %d/%d created, %d failed in %.6f seconds (%d sent, p50/p90/p99/max = %d/%d/%d/%dus)",
		r.Name, r.Created, r.Total, r.Failed, r.Elapsed.Seconds(), r.Sent, r.P50, r.P90, r.P99, r.Max)
}

// API endpoints used by the loader
type API interface {
	CreatePatient(ctx context.Context, requestID string, p PatientRequest) error
	CreateAdmission(ctx context.Context, requestID string, a AdmissionRequest) error
	PostMeasurement(ctx context.Context, requestID string, m MeasurementRequest) error
}

// Loader sends rows one by one, in file order
type Loader struct {
	api    API
	runID  string
	logger *zap.Logger
}

func New(api API, runID string, logger *zap.Logger) *Loader {
	return &Loader{api: api, runID: runID, logger: logger}
}

// request sends one parsed row under the given request id
type request func(ctx context.Context, requestID string) error

// LoadPatients rows need pat_id and age (age is rounded)
func (l *Loader) LoadPatients(ctx context.Context, rows []Row) Report {
	return l.run(ctx, "patients", rows, func(row Row) (request, error) {
		patientID, err := strconv.ParseInt(row["pat_id"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pat_id: %w", err)
		}
		age, err := strconv.ParseFloat(row["age"], 64)
		if err != nil {
			return nil, fmt.Errorf("age: %w", err)
		}
		p := PatientRequest{ID: patientID, Age: int(math.Round(age))}
		return func(ctx context.Context, id string) error {
			return l.api.CreatePatient(ctx, id, p)
		}, nil
	})
}

// LoadAdmissions rows need pat_id, date_admission and optionally date_discharge
func (l *Loader) LoadAdmissions(ctx context.Context, rows []Row) Report {
	return l.run(ctx, "admissions", rows, func(row Row) (request, error) {
		patientID, err := strconv.ParseInt(row["pat_id"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pat_id: %w", err)
		}
		a := AdmissionRequest{
			PatientID:     patientID,
			DateAdmission: row["date_admission"],
			DateDischarge: row["date_discharge"],
		}
		return func(ctx context.Context, id string) error {
			return l.api.CreateAdmission(ctx, id, a)
		}, nil
	})
}

// LoadSignals rows need pat_id, day, hour, parameter and value
func (l *Loader) LoadSignals(ctx context.Context, rows []Row) Report {
	return l.run(ctx, "signals", rows, func(row Row) (request, error) {
		patientID, err := strconv.ParseInt(row["pat_id"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pat_id: %w", err)
		}
		hour, err := strconv.Atoi(row["hour"])
		if err != nil {
			return nil, fmt.Errorf("hour: %w", err)
		}
		value, err := strconv.ParseFloat(row["value"], 64)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		m := MeasurementRequest{
			PatientID: patientID,
			Day:       row["day"],
			Hour:      hour,
			Parameter: row["parameter"],
			Value:     value,
		}
		return func(ctx context.Context, id string) error {
			return l.api.PostMeasurement(ctx, id, m)
		}, nil
	})
}

// run records latency only for rows that reached the API
func (l *Loader) run(ctx context.Context, name string, rows []Row, prepare func(Row) (request, error)) Report {
	hist := hdrhistogram.New(1, 60_000_000, 3)
	report := Report{Name: name, Total: len(rows)}
	start := time.Now()

	for i, row := range rows {
		if ctx.Err() != nil {
			report.Failed += len(rows) - i
			break
		}

		send, err := prepare(row)
		if err != nil {
			report.Failed++
			l.logger.Warn("Row skipped", zap.String("file", name), zap.Int("row", i+1), zap.Error(err))
			continue
		}

		requestID := fmt.Sprintf("%s-%s-%d", l.runID, name, i+1)
		sent := time.Now()
		err = send(ctx, requestID)
		_ = hist.RecordValue(time.Since(sent).Microseconds())
		report.Sent++

		if err != nil {
			report.Failed++
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				l.logger.Warn("Row rejected",
					zap.String("file", name),
					zap.Int("row", i+1),
					zap.Int("status", apiErr.Status),
					zap.String("body", apiErr.Body),
				)
			} else {
				l.logger.Warn("Row failed", zap.String("file", name), zap.Int("row", i+1), zap.Error(err))
			}
			continue
		}
		report.Created++
	}

	report.Elapsed = time.Since(start)
	report.P50 = hist.ValueAtQuantile(50)
	report.P90 = hist.ValueAtQuantile(90)
	report.P99 = hist.ValueAtQuantile(99)
	report.Max = hist.Max()
	return report
}
