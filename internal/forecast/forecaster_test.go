package forecast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	response string
	err      error
	calls    int
}

func (s *stubSource) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.response, s.err
}

func constantHistory(location, item string, days int, qty float64) []domain.HistoryPoint {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.HistoryPoint, days)
	for i := 0; i < days; i++ {
		points[i] = domain.HistoryPoint{
			LocationID: location,
			ItemID:     item,
			Date:       start.AddDate(0, 0, i),
			Quantity:   qty,
		}
	}
	return points
}

func TestForecasterUsesSourcePayload(t *testing.T) {
	source := &stubSource{response: `{"day_1": 11, "day_2": 12, "day_3": 13, "day_4": 14, "day_5": 15, "day_6": 16, "day_7": 17}`}
	f := NewForecaster(NewCache(time.Hour), source, 7)

	result := f.Forecast(context.Background(), constantHistory("L1", "ITEM1", 30, 10))

	require.Len(t, result.Entries, 7)
	assert.Equal(t, 11.0, result.Entries[0].Forecast)
	assert.Equal(t, 1, result.Entries[0].HorizonDay)
	assert.Equal(t, 17.0, result.Entries[6].Forecast)
	assert.Empty(t, result.Alerts)
	assert.Equal(t, 1, source.calls)
}

func TestForecasterCachesSourceResults(t *testing.T) {
	source := &stubSource{response: `{"day_1": 11, "day_2": 12, "day_3": 13, "day_4": 14, "day_5": 15, "day_6": 16, "day_7": 17}`}
	f := NewForecaster(NewCache(time.Hour), source, 7)
	history := constantHistory("L1", "ITEM1", 30, 10)

	first := f.Forecast(context.Background(), history)
	second := f.Forecast(context.Background(), history)

	assert.Equal(t, 1, source.calls, "identical history must be served from cache")
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, 1, second.CacheStats.CacheHits)
	assert.Equal(t, 1, second.CacheStats.CacheMisses)
}

func TestForecasterFallsBackOnSourceError(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	f := NewForecaster(NewCache(time.Hour), source, 7)

	result := f.Forecast(context.Background(), constantHistory("L1", "ITEM1", 30, 10))

	require.Len(t, result.Entries, 7)
	for _, e := range result.Entries {
		assert.Equal(t, 10.0, e.Forecast, "flat history falls back to the moving average")
	}
	require.Len(t, result.Alerts, 1)
	assert.True(t, strings.HasPrefix(result.Alerts[0], "FALLBACK:"), result.Alerts[0])
	assert.Equal(t, 1, source.calls, "no retries on failure")
}

func TestForecasterFallsBackOnGarbageResponse(t *testing.T) {
	source := &stubSource{response: "I am unable to provide a forecast at this time."}
	f := NewForecaster(NewCache(time.Hour), source, 7)

	result := f.Forecast(context.Background(), constantHistory("L1", "ITEM1", 30, 10))

	require.Len(t, result.Entries, 7)
	require.Len(t, result.Alerts, 1)
	assert.Contains(t, result.Alerts[0], "FALLBACK")
}

func TestForecasterNilSourceGoesStraightToFallback(t *testing.T) {
	f := NewForecaster(NewCache(time.Hour), nil, 7)

	result := f.Forecast(context.Background(), constantHistory("L1", "ITEM1", 30, 10))

	require.Len(t, result.Entries, 7)
	require.Len(t, result.Alerts, 1)
	assert.Contains(t, result.Alerts[0], "FALLBACK")
}

func TestForecasterGroupsByLocationAndItem(t *testing.T) {
	history := append(
		constantHistory("L2", "ITEM1", 30, 20),
		constantHistory("L1", "ITEM1", 30, 10)...,
	)
	f := NewForecaster(NewCache(time.Hour), nil, 7)

	result := f.Forecast(context.Background(), history)

	require.Len(t, result.Entries, 14)
	// Groups come out in sorted key order regardless of input order.
	assert.Equal(t, "L1", result.Entries[0].LocationID)
	assert.Equal(t, 10.0, result.Entries[0].Forecast)
	assert.Equal(t, "L2", result.Entries[7].LocationID)
	assert.Equal(t, 20.0, result.Entries[7].Forecast)
}

func TestForecasterClampsNegativePayloadValues(t *testing.T) {
	source := &stubSource{response: `{"day_1": -5, "day_2": 3}`}
	f := NewForecaster(NewCache(time.Hour), source, 7)

	result := f.Forecast(context.Background(), constantHistory("L1", "ITEM1", 30, 10))

	// Only the provided days survive; missing horizon days are skipped.
	require.Len(t, result.Entries, 2)
	assert.Equal(t, 0.0, result.Entries[0].Forecast)
	assert.Equal(t, 3.0, result.Entries[1].Forecast)
}
