package forecast

import (
	"fmt"
	"math"
)

// StatisticalForecast generates a forecast from history alone: a 7-day
// trailing moving average extrapolated with a linear trend ramp and a
// week-over-week seasonality term. It is a pure function of its input
// and is bit-for-bit reproducible.
//
// With fewer than 7 history points it returns horizon copies of the
// truncated mean, or 10 when the history is empty.
func StatisticalForecast(history []float64, horizon int) Payload {
	if horizon <= 0 {
		horizon = 7
	}

	if len(history) < 7 {
		avg := 10.0
		if len(history) > 0 {
			avg = mean(history)
		}
		out := make(Payload, horizon)
		for i := 1; i <= horizon; i++ {
			out[dayKey(i)] = math.Trunc(avg)
		}
		return out
	}

	// Trailing 7-day moving average at the most recent point.
	base := mean(history[len(history)-7:])

	// Trend: mean of last 7 days vs the 7 days before that.
	trend := 0.0
	if len(history) >= 14 {
		recent := mean(history[len(history)-7:])
		previous := mean(history[len(history)-14 : len(history)-7])
		if previous > 0 {
			trend = (recent - previous) / previous
		}
	}

	// Seasonality: today vs the same weekday one week ago.
	seasonality := 0.0
	weekAgo := history[len(history)-7]
	if weekAgo > 0 {
		today := history[len(history)-1]
		seasonality = (today - weekAgo) / weekAgo
	}

	out := make(Payload, horizon)
	for i := 1; i <= horizon; i++ {
		adjustment := 1 + trend*(float64(i)/float64(horizon)) + seasonality*0.5
		out[dayKey(i)] = math.Max(0, math.Trunc(base*adjustment))
	}
	return out
}

// SimpleAverageForecast returns horizon copies of the truncated mean,
// or 10 when the history is empty. Last-resort fallback.
func SimpleAverageForecast(history []float64, horizon int) Payload {
	if horizon <= 0 {
		horizon = 7
	}
	avg := 10.0
	if len(history) > 0 {
		avg = math.Trunc(mean(history))
	}
	out := make(Payload, horizon)
	for i := 1; i <= horizon; i++ {
		out[dayKey(i)] = avg
	}
	return out
}

func dayKey(i int) string {
	return fmt.Sprintf("day_%d", i)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 standard deviation; 0 for fewer than two points.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
