package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/rs/zerolog/log"
)

const promptTemplate = `You are a retail demand forecasting expert.

Context:
%s

Location: %s
Item: %s

Below is the last 30 days of daily sales:
%s

Task:
1. Identify trend and seasonality if any
2. Forecast demand for the next %d days
3. Return ONLY valid JSON like:

{
"day_1": 10,
"day_2": 11,
"day_3": 12,
"day_4": 12,
"day_5": 13,
"day_6": 13,
"day_7": 14
}
`

// supplierContext is the planning knowledge prepended to every forecast
// prompt.
const supplierContext = `Category X supplier lead time is 6 weeks.
Alternate suppliers exist in Category X.
Black Friday requires 3x safety stock.
Finance approval required if budget exceeded.`

// Forecaster generates a demand forecast per (location, item) group,
// consulting the cache first, then the source, then the statistical
// fallback. A source failure is recovered locally and never propagated.
type Forecaster struct {
	cache   *Cache
	source  Source
	horizon int
}

// NewForecaster builds a forecaster. A nil source means every miss goes
// straight to the statistical fallback.
func NewForecaster(cache *Cache, source Source, horizon int) *Forecaster {
	if horizon <= 0 {
		horizon = 7
	}
	return &Forecaster{cache: cache, source: source, horizon: horizon}
}

// Result is the output of one forecasting pass.
type Result struct {
	Entries    []domain.ForecastEntry
	Alerts     []string
	CacheStats domain.CacheStats
}

// Forecast produces one horizon series per (location, item) group.
// Groups are processed in sorted key order so aggregate output is
// deterministic regardless of input arrangement.
func (f *Forecaster) Forecast(ctx context.Context, history []domain.HistoryPoint) Result {
	groups := groupHistory(history)
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].location != keys[j].location {
			return keys[i].location < keys[j].location
		}
		return keys[i].item < keys[j].item
	})

	result := Result{}
	for _, key := range keys {
		recent := lastN(groups[key], 30)
		info := DetectSeasonality(recent)
		if info.Pattern == domain.PatternSurgeDetected {
			result.Alerts = append(result.Alerts, fmt.Sprintf(
				"SEASONALITY: Location %s, Item %s - Surge pattern detected (%.3f)",
				key.location, key.item, info.SurgeRatio))
		}

		historyText := serializeHistory(recent)
		payload, ok := f.cache.Get(key.location, key.item, historyText)
		if ok {
			log.Debug().Str("location", key.location).Str("item", key.item).Msg("forecast cache hit")
		} else {
			payload = f.generate(ctx, key, historyText, recent, &result)
		}

		for i := 1; i <= f.horizon; i++ {
			qty, found := payload[dayKey(i)]
			if !found {
				continue
			}
			result.Entries = append(result.Entries, domain.ForecastEntry{
				LocationID:  key.location,
				ItemID:      key.item,
				HorizonDay:  i,
				Forecast:    math.Max(0, qty),
				Seasonality: info.Pattern,
			})
		}
	}

	result.CacheStats = f.cache.Stats()
	return result
}

// generate calls the source and falls back to the statistical forecast
// on any failure. No retries: one failure routes straight to fallback.
func (f *Forecaster) generate(ctx context.Context, key groupKey, historyText string, recent []domain.HistoryPoint, result *Result) Payload {
	values := quantities(recent)

	if f.source == nil {
		result.Alerts = append(result.Alerts, fallbackAlert(key))
		return StatisticalForecast(values, f.horizon)
	}

	prompt := fmt.Sprintf(promptTemplate, supplierContext, key.location, key.item, historyText, f.horizon)
	response, err := f.source.Generate(ctx, prompt)
	if err == nil {
		var payload Payload
		payload, err = ParsePayload(response)
		if err == nil {
			f.cache.Set(key.location, key.item, historyText, payload)
			return payload
		}
	}

	log.Warn().Err(err).
		Str("location", key.location).
		Str("item", key.item).
		Msg("forecast source failed, using statistical fallback")
	result.Alerts = append(result.Alerts, fallbackAlert(key))
	return StatisticalForecast(values, f.horizon)
}

func fallbackAlert(key groupKey) string {
	return fmt.Sprintf("FALLBACK: Location %s, Item %s - Used statistical forecast", key.location, key.item)
}

type groupKey struct {
	location string
	item     string
}

func groupHistory(history []domain.HistoryPoint) map[groupKey][]domain.HistoryPoint {
	groups := make(map[groupKey][]domain.HistoryPoint)
	for _, h := range history {
		key := groupKey{location: h.LocationID, item: h.ItemID}
		groups[key] = append(groups[key], h)
	}
	return groups
}

func lastN(points []domain.HistoryPoint, n int) []domain.HistoryPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

func quantities(points []domain.HistoryPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Quantity
	}
	return values
}

func serializeHistory(points []domain.HistoryPoint) string {
	lines := make([]string, len(points))
	for i, p := range points {
		lines[i] = fmt.Sprintf("%s: %d", p.Date.Format("2006-01-02"), int(p.Quantity))
	}
	return strings.Join(lines, "\n")
}
