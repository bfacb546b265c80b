package prediction

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wisefido-readmission/internal/domain"
)

// fakeStatsCache in-memory StatsCache for unit tests
type fakeStatsCache struct {
	mu         sync.Mutex
	bp         map[int64]LastBloodPressure
	rr         map[int64]RespiratoryRunningMean
	temp       map[int64]TemperatureRunningStats
	writes     int
	failReads  bool
	failWrites bool
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{
		bp:   make(map[int64]LastBloodPressure),
		rr:   make(map[int64]RespiratoryRunningMean),
		temp: make(map[int64]TemperatureRunningStats),
	}
}

func (f *fakeStatsCache) readErr() error {
	if f.failReads {
		return fmt.Errorf("%w: connection refused", domain.ErrCacheUnavailable)
	}
	return nil
}

func (f *fakeStatsCache) writeErr() error {
	if f.failWrites {
		return fmt.Errorf("%w: connection refused", domain.ErrCacheUnavailable)
	}
	f.writes++
	return nil
}

func (f *fakeStatsCache) LastBloodPressure(_ context.Context, patientID int64) (*LastBloodPressure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr(); err != nil {
		return nil, err
	}
	v, ok := f.bp[patientID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *fakeStatsCache) SetLastBloodPressure(_ context.Context, patientID int64, v LastBloodPressure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr(); err != nil {
		return err
	}
	f.bp[patientID] = v
	return nil
}

func (f *fakeStatsCache) RespiratoryRunningMean(_ context.Context, patientID int64) (RespiratoryRunningMean, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr(); err != nil {
		return RespiratoryRunningMean{}, err
	}
	return f.rr[patientID], nil
}

func (f *fakeStatsCache) SetRespiratoryRunningMean(_ context.Context, patientID int64, v RespiratoryRunningMean) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr(); err != nil {
		return err
	}
	f.rr[patientID] = v
	return nil
}

func (f *fakeStatsCache) TemperatureRunningStats(_ context.Context, patientID int64) (TemperatureRunningStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr(); err != nil {
		return TemperatureRunningStats{}, err
	}
	return f.temp[patientID], nil
}

func (f *fakeStatsCache) SetTemperatureRunningStats(_ context.Context, patientID int64, v TemperatureRunningStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr(); err != nil {
		return err
	}
	f.temp[patientID] = v
	return nil
}

// fakeHistory in-memory MeasurementHistory for unit tests
type fakeHistory struct {
	measurements []domain.Measurement
	fail         bool
	lastLimit    int
}

func (f *fakeHistory) add(m domain.Measurement) {
	m.ID = int64(len(f.measurements) + 1)
	f.measurements = append(f.measurements, m)
}

func (f *fakeHistory) byType(patientID int64, t domain.MeasurementType) []domain.Measurement {
	var out []domain.Measurement
	for _, m := range f.measurements {
		if m.PatientID == patientID && (t == "" || m.Type == t) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeCreated.After(out[j].TimeCreated)
	})
	return out
}

func (f *fakeHistory) ListMeasurements(_ context.Context, patientID int64, t domain.MeasurementType, offset, limit int) ([]domain.Measurement, error) {
	if f.fail {
		return nil, fmt.Errorf("%w: connection reset", domain.ErrStoreUnavailable)
	}
	f.lastLimit = limit
	all := f.byType(patientID, t)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeHistory) LastMeasurement(_ context.Context, patientID int64, t domain.MeasurementType) (*domain.Measurement, error) {
	if f.fail {
		return nil, fmt.Errorf("%w: connection reset", domain.ErrStoreUnavailable)
	}
	all := f.byType(patientID, t)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}
