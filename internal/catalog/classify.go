package catalog

import (
	"time"

	"catalogd/internal/model"
)

// Classify maps an instant onto the lifecycle of [start, end]. Both bounds
// belong to the live interval.
func Classify(now, start, end time.Time) model.Status {
	switch {
	case now.After(end):
		return model.StatusCompleted
	case now.Before(start):
		return model.StatusUpcoming
	default:
		return model.StatusLive
	}
}

// Resolve returns the status of it at now according to its classification
// strategy. Stored statuses pass through unchanged.
func Resolve(it model.Item, now time.Time) model.Status {
	if st, ok := it.Lifecycle.StoredStatus(); ok {
		return st
	}
	return Classify(now, it.Start, it.End)
}
