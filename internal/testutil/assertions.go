package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/gamecheck/internal/model"
)

// AssertStats asserts the counts derived from items.
func AssertStats(t *testing.T, items []model.Item, want model.Stats) {
	t.Helper()
	got := model.ComputeStats(items)
	assert.Equal(t, want, got, "stats mismatch")
	assert.Equal(t, len(items), got.Total(), "stats must cover every item")
}

// AssertStatus asserts the status of the item with the given ID.
func AssertStatus(t *testing.T, items []model.Item, id string, want model.Status) {
	t.Helper()
	for _, it := range items {
		if it.ID == id {
			assert.Equal(t, want, it.Status, "status of %s", id)
			return
		}
	}
	require.Failf(t, "item not found", "no item with id %q", id)
}

// AssertIDs asserts the exact order of item IDs.
func AssertIDs(t *testing.T, items []model.Item, ids ...string) {
	t.Helper()
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.ID
	}
	if len(ids) == 0 {
		ids = []string{}
	}
	assert.Equal(t, ids, got, "item order mismatch")
}

// AssertUniqueIDs asserts that no ID appears twice.
func AssertUniqueIDs(t *testing.T, items []model.Item) {
	t.Helper()
	seen := make(map[string]int, len(items))
	for i, it := range items {
		if j, ok := seen[it.ID]; ok {
			assert.Failf(t, "duplicate id", "id %q at positions %d and %d", it.ID, j, i)
		}
		seen[it.ID] = i
	}
}
