package forecast

import (
	"github.com/andresuchdata/supplyplan/internal/domain"
)

// DetectSeasonality classifies a historical series. Priority order:
// surge ratio above 0.2 wins, then day-of-week spread above 20% of the
// mean, otherwise stable demand.
func DetectSeasonality(history []domain.HistoryPoint) domain.SeasonalityInfo {
	if len(history) < 7 {
		return domain.SeasonalityInfo{
			Pattern:    domain.PatternInsufficientData,
			Confidence: 0,
		}
	}

	values := make([]float64, len(history))
	for i, h := range history {
		values[i] = h.Quantity
	}

	// Per-day-of-week averages and their spread.
	dowSums := make(map[int]float64)
	dowCounts := make(map[int]int)
	for _, h := range history {
		dow := int(h.Date.Weekday())
		dowSums[dow] += h.Quantity
		dowCounts[dow]++
	}
	dowAvgs := make([]float64, 0, len(dowSums))
	for dow, sum := range dowSums {
		dowAvgs = append(dowAvgs, sum/float64(dowCounts[dow]))
	}
	dowStd := sampleStd(dowAvgs)

	meanSales := mean(values)
	stdSales := sampleStd(values)

	// Surge days: values above mean + 2*std.
	surgeThreshold := meanSales + 2*stdSales
	surgeDays := 0
	for _, v := range values {
		if v > surgeThreshold {
			surgeDays++
		}
	}
	surgeRatio := float64(surgeDays) / float64(len(values))

	pattern := domain.PatternStableDemand
	switch {
	case surgeRatio > 0.2:
		pattern = domain.PatternSurgeDetected
	case dowStd > meanSales*0.2:
		pattern = domain.PatternWeeklySeasonality
	}

	confidence := 0.0
	if meanSales > 0 {
		confidence = round2(dowStd / meanSales)
	}

	return domain.SeasonalityInfo{
		Pattern:        pattern,
		Confidence:     confidence,
		MeanDailySales: round2(meanSales),
		StdDev:         round2(stdSales),
		SurgeRatio:     round3(surgeRatio),
	}
}
