package store

import (
	"sort"
	"strings"

	"github.com/thruflo/gamecheck/internal/model"
)

// FilterOptions narrows a collection for display. Empty fields match
// everything.
type FilterOptions struct {
	// Name matches a case-insensitive substring of the item title.
	Name string
	// Provider matches the provider exactly, ignoring case.
	Provider string
	// Category matches the category exactly, ignoring case.
	Category string
	// Status is one of the aggregate buckets: success, failed or pending.
	Status string
}

// Filter returns the items matching opts, preserving order.
func Filter(items []model.Item, opts FilterOptions) []model.Item {
	name := strings.ToLower(opts.Name)

	var out []model.Item
	for _, it := range items {
		if name != "" && !strings.Contains(strings.ToLower(it.Title()), name) {
			continue
		}
		if opts.Provider != "" && !strings.EqualFold(it.ProviderOrDefault(), opts.Provider) {
			continue
		}
		if opts.Category != "" && !strings.EqualFold(it.CategoryOrDefault(), opts.Category) {
			continue
		}
		if opts.Status != "" && it.Status.Bucket() != strings.ToLower(opts.Status) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Providers returns the sorted distinct providers in items.
func Providers(items []model.Item) []string {
	return distinct(items, model.Item.ProviderOrDefault)
}

// Categories returns the sorted distinct categories in items.
func Categories(items []model.Item) []string {
	return distinct(items, model.Item.CategoryOrDefault)
}

func distinct(items []model.Item, key func(model.Item) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		k := key(it)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
