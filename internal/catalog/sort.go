package catalog

import (
	"cmp"
	"slices"

	"catalogd/internal/model"
)

// Sort returns a new slice ordered by lifecycle group (live, upcoming,
// completed). Live and upcoming items are soonest-start first; completed
// items are most-recently-ended first. The sort is stable and items is not
// modified.
func Sort(items []model.Item) []model.Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, compareItems)
	return out
}

func compareItems(a, b model.Item) int {
	if c := cmp.Compare(a.Status.Priority(), b.Status.Priority()); c != 0 {
		return c
	}
	if a.Status == model.StatusCompleted {
		return b.End.Compare(a.End)
	}
	return a.Start.Compare(b.Start)
}
