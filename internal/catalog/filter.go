package catalog

import (
	"net/url"

	"catalogd/internal/model"
)

// FilterCriteria holds the optional, independent equality constraints a user
// picked. An empty field (or "all") matches everything.
type FilterCriteria struct {
	Type     string
	Mode     string
	Status   model.Status
	TeamSize string
	FeeType  string
}

// Predicate admits or rejects a single item.
type Predicate func(model.Item) bool

// CriteriaFromQuery reads criteria from URL query parameters:
// type, mode, status, teamSize, fee.
func CriteriaFromQuery(q url.Values) FilterCriteria {
	return FilterCriteria{
		Type:     q.Get("type"),
		Mode:     q.Get("mode"),
		Status:   model.Status(q.Get("status")),
		TeamSize: q.Get("teamSize"),
		FeeType:  q.Get("fee"),
	}
}

// IsEmpty reports whether no criterion is set.
func (c FilterCriteria) IsEmpty() bool {
	n := c.normalized()
	return n.Type == "" && n.Mode == "" && n.Status == "" && n.TeamSize == "" && n.FeeType == ""
}

func (c FilterCriteria) normalized() FilterCriteria {
	return FilterCriteria{
		Type:     criterion(c.Type),
		Mode:     criterion(c.Mode),
		Status:   model.Status(criterion(string(c.Status))),
		TeamSize: criterion(c.TeamSize),
		FeeType:  criterion(c.FeeType),
	}
}

func criterion(s string) string {
	s = normalizeEnum(s)
	if s == "all" {
		return ""
	}
	return s
}

// BuildPredicate ANDs every present criterion; each one is exact equality
// against the normalized item field.
func BuildPredicate(c FilterCriteria) Predicate {
	n := c.normalized()
	checks := make([]Predicate, 0, 5)
	if n.Type != "" {
		checks = append(checks, func(it model.Item) bool { return it.Type == n.Type })
	}
	if n.Mode != "" {
		checks = append(checks, func(it model.Item) bool { return it.Mode == n.Mode })
	}
	if n.Status != "" {
		checks = append(checks, func(it model.Item) bool { return it.Status == n.Status })
	}
	if n.TeamSize != "" {
		checks = append(checks, func(it model.Item) bool { return it.TeamSize == n.TeamSize })
	}
	if n.FeeType != "" {
		checks = append(checks, func(it model.Item) bool { return it.FeeType == n.FeeType })
	}
	return func(it model.Item) bool {
		for _, ok := range checks {
			if !ok(it) {
				return false
			}
		}
		return true
	}
}

// Filter returns the items admitted by p in their original order.
func Filter(items []model.Item, p Predicate) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if p(it) {
			out = append(out, it)
		}
	}
	return out
}
