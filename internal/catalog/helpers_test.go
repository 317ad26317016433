package catalog

import (
	"time"

	"catalogd/internal/model"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) string {
	return t.Format(time.RFC3339)
}

func event(id any, start time.Time, end *time.Time, extra map[string]any) RawRecord {
	rec := RawRecord{"id": id, "title": "Event " + stringify(id), "startTime": ts(start)}
	if end != nil {
		rec["endTime"] = ts(*end)
	}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

func ptr(t time.Time) *time.Time {
	return &t
}

func ids(items []model.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func statuses(items []model.Item) []model.Status {
	out := make([]model.Status, 0, len(items))
	for _, it := range items {
		out = append(out, it.Status)
	}
	return out
}
