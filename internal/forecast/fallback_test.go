package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticalForecastShortHistory(t *testing.T) {
	t.Run("empty history defaults to 10", func(t *testing.T) {
		payload := StatisticalForecast(nil, 7)
		require.Len(t, payload, 7)
		for i := 1; i <= 7; i++ {
			assert.Equal(t, 10.0, payload[dayKey(i)])
		}
	})

	t.Run("under seven points copies the truncated mean", func(t *testing.T) {
		payload := StatisticalForecast([]float64{4, 5, 7}, 7)
		require.Len(t, payload, 7)
		for i := 1; i <= 7; i++ {
			assert.Equal(t, 5.0, payload[dayKey(i)], "trunc((4+5+7)/3)")
		}
	})
}

func TestStatisticalForecastConstantSeries(t *testing.T) {
	history := make([]float64, 30)
	for i := range history {
		history[i] = 12
	}

	payload := StatisticalForecast(history, 7)
	require.Len(t, payload, 7)
	for i := 1; i <= 7; i++ {
		assert.Equal(t, 12.0, payload[dayKey(i)], "no trend and no seasonality on a flat series")
	}
}

func TestStatisticalForecastTrendRampsOverHorizon(t *testing.T) {
	// Previous week averages 10, last week averages 20: trend = 1.0.
	// Last value equals the value a week earlier, so seasonality = 0.
	history := []float64{10, 10, 10, 10, 10, 10, 10, 20, 20, 20, 20, 20, 20, 20}

	payload := StatisticalForecast(history, 7)
	require.Len(t, payload, 7)

	// value_i = trunc(20 * (1 + 1.0*i/7))
	assert.Equal(t, 22.0, payload["day_1"])
	assert.Equal(t, 40.0, payload["day_7"])

	for i := 2; i <= 7; i++ {
		assert.GreaterOrEqual(t, payload[dayKey(i)], payload[dayKey(i-1)],
			"positive trend must ramp monotonically over the horizon")
	}
}

func TestStatisticalForecastNeverNegative(t *testing.T) {
	// Steep decline: trend and seasonality both strongly negative.
	history := []float64{100, 100, 100, 100, 100, 100, 100, 1, 1, 1, 1, 1, 1, 1}

	payload := StatisticalForecast(history, 7)
	for i := 1; i <= 7; i++ {
		assert.GreaterOrEqual(t, payload[dayKey(i)], 0.0)
	}
}

func TestSimpleAverageForecast(t *testing.T) {
	payload := SimpleAverageForecast([]float64{3, 4, 5}, 3)
	require.Len(t, payload, 3)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 4.0, payload[dayKey(i)])
	}

	payload = SimpleAverageForecast(nil, 2)
	assert.Equal(t, 10.0, payload["day_1"])
	assert.Equal(t, 10.0, payload["day_2"])
}
