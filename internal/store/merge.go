package store

import (
	"fmt"
	"strings"

	"github.com/thruflo/gamecheck/internal/model"
)

// Policy selects how conflicting server updates for one item are resolved.
type Policy string

const (
	// PolicyLastWriteWins applies every update in arrival order, subject to
	// the forward-only status guard.
	PolicyLastWriteWins Policy = "last-write-wins"
	// PolicyNewestWins also skips updates whose end time is older than the
	// end time already held locally.
	PolicyNewestWins Policy = "newest-wins"
)

// ParsePolicy parses a merge policy name. The empty string selects
// PolicyLastWriteWins.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLastWriteWins:
		return PolicyLastWriteWins, nil
	case PolicyNewestWins:
		return PolicyNewestWins, nil
	}
	return "", fmt.Errorf("unknown merge policy: %q", s)
}

// MergeResult counts what a merge did with each incoming item.
type MergeResult struct {
	Updated int
	Added   int
	Stale   int
	Dropped int
}

// Merge reconciles incoming server items into local and returns the merged
// collection. Known IDs have their server-owned fields overwritten in place;
// unknown IDs are appended in arrival order; items without an ID are dropped.
// local is modified in place and may be reallocated by append.
func Merge(local []model.Item, incoming []model.Item, policy Policy) ([]model.Item, MergeResult) {
	var res MergeResult

	index := make(map[string]int, len(local))
	for i, it := range local {
		index[it.ID] = i
	}

	for _, in := range incoming {
		if in.ID == "" {
			res.Dropped++
			continue
		}
		i, ok := index[in.ID]
		if !ok {
			index[in.ID] = len(local)
			local = append(local, in.Clone())
			res.Added++
			continue
		}
		if applyServerFields(&local[i], in, policy) {
			res.Updated++
		} else {
			res.Stale++
		}
	}

	return local, res
}

// applyServerFields copies the fields owned by the backend from src into dst.
// Returns false without touching dst if src is stale.
func applyServerFields(dst *model.Item, src model.Item, policy Policy) bool {
	if !dst.Status.CanAdvanceTo(src.Status) {
		return false
	}
	if policy == PolicyNewestWins &&
		!dst.Timing.EndTime.IsZero() && !src.Timing.EndTime.IsZero() &&
		src.Timing.EndTime.Before(dst.Timing.EndTime) {
		return false
	}

	dst.Status = src.Status
	dst.Error = nil
	if src.Error != nil {
		e := *src.Error
		dst.Error = &e
	}
	dst.Timing = src.Timing
	dst.SubmissionID = src.SubmissionID

	for phase, ref := range src.Screenshots {
		if ref == "" {
			continue
		}
		if dst.Screenshots == nil {
			dst.Screenshots = make(map[string]string, len(src.Screenshots))
		}
		dst.Screenshots[phase] = ref
	}
	return true
}

// applyClientFields copies the fields owned by the import from src into dst.
func applyClientFields(dst *model.Item, src model.Item) {
	dst.Name = src.Name
	dst.DisplayName = src.DisplayName
	dst.CatalogueName = src.CatalogueName
	dst.CatalogueGameID = src.CatalogueGameID
	dst.Provider = src.Provider
	dst.Category = src.Category
	dst.Image = src.Image
	dst.Popularity = src.Popularity
	dst.TableID = src.TableID
	dst.Featured = src.Featured
	dst.Published = src.Published
}
