package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/supplyplan/internal/domain"
	"github.com/rs/zerolog/log"
)

// Loader reads the historical sales feed. The last successful load is
// retained so a feed outage degrades to possibly-stale data with an
// alert instead of failing the run.
type Loader struct {
	path string

	mu       sync.Mutex
	lastLoad []domain.HistoryPoint
	loadedAt time.Time
}

// NewLoader creates a loader for the given CSV file.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the feed. On failure it falls back to the most recent
// cached load when one exists; the returned alerts flag the staleness.
// Negative quantities are clamped to zero, not rejected.
func (l *Loader) Load() ([]domain.HistoryPoint, []string, error) {
	points, err := l.read()
	if err != nil {
		l.mu.Lock()
		cached := l.lastLoad
		loadedAt := l.loadedAt
		l.mu.Unlock()

		if cached == nil {
			return nil, nil, fmt.Errorf("load history feed: %w", err)
		}

		log.Warn().Err(err).Time("loaded_at", loadedAt).Msg("history feed unavailable, using cached load")
		alert := fmt.Sprintf(
			"DATA: History feed unavailable, using cached load from %s - possible staleness",
			loadedAt.Format(time.RFC3339))
		return cached, []string{alert}, nil
	}

	l.mu.Lock()
	l.lastLoad = points
	l.loadedAt = time.Now()
	l.mu.Unlock()

	return points, nil, nil
}

func (l *Loader) read() ([]domain.HistoryPoint, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIndex := func(names ...string) int {
		for i, h := range header {
			normalized := strings.ToLower(strings.TrimSpace(h))
			for _, name := range names {
				if normalized == name {
					return i
				}
			}
		}
		return -1
	}

	idxLocation := colIndex("location_id", "store_id")
	idxItem := colIndex("item_id", "sku_id")
	idxDate := colIndex("date")
	idxQty := colIndex("quantity", "units_sold")
	if idxLocation < 0 || idxItem < 0 || idxDate < 0 || idxQty < 0 {
		return nil, fmt.Errorf("history feed %s is missing required columns", l.path)
	}

	var points []domain.HistoryPoint
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		date, err := time.Parse("2006-01-02", get(idxDate))
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", get(idxDate), err)
		}

		qty, _ := strconv.ParseFloat(strings.ReplaceAll(get(idxQty), ",", ""), 64)
		if qty < 0 {
			qty = 0
		}

		points = append(points, domain.HistoryPoint{
			LocationID: get(idxLocation),
			ItemID:     get(idxItem),
			Date:       date,
			Quantity:   qty,
		})
	}

	return points, nil
}
