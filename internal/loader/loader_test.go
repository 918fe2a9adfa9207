package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesFeed(t *testing.T) {
	path := writeFeed(t, "location_id,item_id,date,quantity\nL1,ITEM1,2025-01-01,42\nL1,ITEM2,2025-01-02,7\n")

	points, alerts, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Empty(t, alerts)
	require.Len(t, points, 2)
	assert.Equal(t, "L1", points[0].LocationID)
	assert.Equal(t, "ITEM1", points[0].ItemID)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), points[0].Date)
	assert.Equal(t, 42.0, points[0].Quantity)
}

func TestLoadAcceptsHeaderAliases(t *testing.T) {
	path := writeFeed(t, "store_id,sku_id,date,units_sold\nS9,SKU-1,2025-02-10,15\n")

	points, _, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "S9", points[0].LocationID)
	assert.Equal(t, "SKU-1", points[0].ItemID)
	assert.Equal(t, 15.0, points[0].Quantity)
}

func TestLoadClampsNegativeQuantities(t *testing.T) {
	path := writeFeed(t, "location_id,item_id,date,quantity\nL1,ITEM1,2025-01-01,-5\n")

	points, _, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Zero(t, points[0].Quantity)
}

func TestLoadMissingColumns(t *testing.T) {
	path := writeFeed(t, "foo,bar\n1,2\n")

	_, _, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoadFallsBackToCachedFeed(t *testing.T) {
	path := writeFeed(t, "location_id,item_id,date,quantity\nL1,ITEM1,2025-01-01,10\n")
	l := NewLoader(path)

	points, alerts, err := l.Load()
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Empty(t, alerts)

	// Feed disappears; the previous load is served with a staleness alert.
	require.NoError(t, os.Remove(path))

	points, alerts, err = l.Load()
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "possible staleness")
}

func TestLoadNoFeedAndNoCache(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "missing.csv"))

	_, _, err := l.Load()
	assert.Error(t, err)
}
