package cache

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"wisefido-readmission/internal/domain"
	"wisefido-readmission/internal/prediction"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *StatsCache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = redisClient.Close() })

	statsCache := NewStatsCache(NewRedisKVStore(redisClient), "", 0, zap.NewNop())
	return mr, redisClient, statsCache
}

func TestStatsCache_AbsentKeysReadAsZero(t *testing.T) {
	_, _, c := setupTestRedis(t)
	ctx := context.Background()

	bp, err := c.LastBloodPressure(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, bp)

	rr, err := c.RespiratoryRunningMean(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, prediction.RespiratoryRunningMean{}, rr)

	temp, err := c.TemperatureRunningStats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, prediction.TemperatureRunningStats{}, temp)
}

func TestStatsCache_RoundTripAndKeys(t *testing.T) {
	mr, _, c := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2021, 1, 1, 7, 0, 0, 0, time.UTC)

	require.NoError(t, c.SetLastBloodPressure(ctx, 42, prediction.LastBloodPressure{Value: 120, TimeCreated: at}))
	require.NoError(t, c.SetRespiratoryRunningMean(ctx, 42, prediction.RespiratoryRunningMean{Mean: 20, Count: 21}))
	require.NoError(t, c.SetTemperatureRunningStats(ctx, 42, prediction.TemperatureRunningStats{Mean: 37.75, M2: 129.25, Count: 100}))

	assert.True(t, mr.Exists("patient:42:last_blood_pressure"))
	assert.True(t, mr.Exists("patient:42:mean_respiratory_rate"))
	assert.True(t, mr.Exists("patient:42:standard_deviation_temperature"))
	assert.Equal(t, time.Duration(0), mr.TTL("patient:42:mean_respiratory_rate"))

	raw, err := mr.Get("patient:42:mean_respiratory_rate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mean":20,"count":21}`, raw)

	bp, err := c.LastBloodPressure(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, bp)
	assert.Equal(t, 120.0, bp.Value)
	assert.True(t, bp.TimeCreated.Equal(at))

	rr, err := c.RespiratoryRunningMean(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, prediction.RespiratoryRunningMean{Mean: 20, Count: 21}, rr)

	temp, err := c.TemperatureRunningStats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(100), temp.Count)
	assert.Equal(t, 129.25, temp.M2)
}

func TestStatsCache_CustomPrefixAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewStatsCache(NewRedisKVStore(client), "readmission:patient:", time.Hour, zap.NewNop())
	require.NoError(t, c.SetRespiratoryRunningMean(context.Background(), 1, prediction.RespiratoryRunningMean{Mean: 1, Count: 1}))
	assert.True(t, mr.Exists("readmission:patient:1:mean_respiratory_rate"))
	assert.Equal(t, time.Hour, mr.TTL("readmission:patient:1:mean_respiratory_rate"))
}

func TestStatsCache_TTLRestartsAggregates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	c := NewStatsCache(NewRedisKVStore(client), "", time.Hour, zap.NewNop())
	fast := prediction.NewFastStrategy(c, zap.NewNop())
	patient := domain.Patient{ID: 5, Age: 50}
	at := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := fast.Calculate(ctx, patient, domain.Measurement{PatientID: 5, Type: domain.MeasurementRespirationRate, Value: 20, TimeCreated: at})
		require.NoError(t, err)
	}
	rr, err := c.RespiratoryRunningMean(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rr.Count)

	mr.FastForward(time.Hour + time.Second)

	_, err = fast.Calculate(ctx, patient, domain.Measurement{PatientID: 5, Type: domain.MeasurementRespirationRate, Value: 20, TimeCreated: at})
	require.NoError(t, err)
	rr, err = c.RespiratoryRunningMean(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rr.Count)
}

func TestStatsCache_BackendErrorsWrapCacheUnavailable(t *testing.T) {
	mr, _, c := setupTestRedis(t)
	ctx := context.Background()
	mr.SetError("LOADING Redis is loading the dataset in memory")

	_, err := c.LastBloodPressure(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	_, err = c.RespiratoryRunningMean(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	err = c.SetTemperatureRunningStats(ctx, 1, prediction.TemperatureRunningStats{Count: 1})
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestStatsCache_CorruptEntry(t *testing.T) {
	mr, _, c := setupTestRedis(t)
	require.NoError(t, mr.Set("patient:3:standard_deviation_temperature", "not-json"))

	_, err := c.TemperatureRunningStats(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestFastStrategy_OverRedis(t *testing.T) {
	_, _, c := setupTestRedis(t)
	ctx := context.Background()
	s := prediction.NewFastStrategy(c, zap.NewNop())
	patient := domain.Patient{ID: 1, Age: 50}
	now := time.Now().UTC()

	var p float64
	var err error
	for i := 10; i <= 30; i++ {
		p, err = s.Calculate(ctx, patient, domain.Measurement{PatientID: 1, Type: domain.MeasurementRespirationRate, Value: float64(i), TimeCreated: now})
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.013386917827664766, p, 1e-15)

	for i := 0; i < 100; i++ {
		_, err = s.Calculate(ctx, patient, domain.Measurement{PatientID: 1, Type: domain.MeasurementTemperature, Value: 36 + math.Mod(float64(i)/10, 4), TimeCreated: now})
		require.NoError(t, err)
	}
	temp, err := c.TemperatureRunningStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), temp.Count)
	assert.InDelta(t, 129.25000000000077, temp.M2, 1e-9)

	first, err := s.Calculate(ctx, patient, domain.Measurement{PatientID: 1, Type: domain.MeasurementBloodPressure, Value: 120, TimeCreated: now})
	require.NoError(t, err)
	second, err := s.Calculate(ctx, patient, domain.Measurement{PatientID: 1, Type: domain.MeasurementBloodPressure, Value: 125, TimeCreated: now.Add(-time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	bp, err := c.LastBloodPressure(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, bp)
	assert.Equal(t, 120.0, bp.Value)
}

func TestMemoryKVStore(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, kv.Set(ctx, "short", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, err = kv.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryKVStore_ExpiryKeepsConcurrentSet(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	for round := 0; round < 200; round++ {
		require.NoError(t, kv.Set(ctx, "k", "stale", time.Nanosecond))
		time.Sleep(time.Microsecond)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = kv.Get(ctx, "k")
			}()
		}
		require.NoError(t, kv.Set(ctx, "k", "fresh", 0))
		wg.Wait()

		v, err := kv.Get(ctx, "k")
		require.NoError(t, err, "round %d", round)
		require.Equal(t, "fresh", v)
	}
}
