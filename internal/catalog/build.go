package catalog

import (
	"time"

	appLog "catalogd/internal/log"
	"catalogd/internal/model"
)

// BuildInput is one snapshot of everything the engine needs.
type BuildInput struct {
	Kind    model.Kind
	Records []RawRecord

	// Registrations is nil when the registration list is unavailable. That
	// is not an error: every item is simply unregistered.
	Registrations []RawRegistration

	Criteria FilterCriteria

	// Now is sampled once by the caller; every item is classified against it.
	Now time.Time

	// Location is used for zone-less timestamps. Nil means time.Local.
	Location *time.Location
}

// Exclusion records a raw record that could not be normalized.
type Exclusion struct {
	ID  string
	Err error
}

// SortedCatalog is the ordered, annotated output of one engine pass.
type SortedCatalog struct {
	Kind  model.Kind
	Now   time.Time
	Items []model.Item

	// Total is the number of items that survived normalization, before
	// filtering.
	Total    int
	Excluded []Exclusion

	// RegistrationsKnown is false when the registration list was absent.
	RegistrationsKnown bool
}

// Build runs normalize → classify → tag registrations → filter → sort over
// one snapshot. It holds no state and can be rerun with any subset of inputs.
func Build(in BuildInput) SortedCatalog {
	out := SortedCatalog{
		Kind:               in.Kind,
		Now:                in.Now,
		RegistrationsKnown: in.Registrations != nil,
	}

	index := BuildIndex(in.Registrations)

	items := make([]model.Item, 0, len(in.Records))
	for _, rec := range in.Records {
		it, err := normalizeRecord(in.Kind, rec, in.Now, in.Location)
		if err != nil {
			// One bad record must not blank the listing.
			appLog.Error("catalog: excluding malformed record", err, "kind", in.Kind, "id", it.ID)
			out.Excluded = append(out.Excluded, Exclusion{ID: it.ID, Err: err})
			continue
		}
		it.Status = Resolve(it, in.Now)
		it.IsRegistered = index.Contains(it.ID)
		items = append(items, it)
	}
	out.Total = len(items)

	filtered := Filter(items, BuildPredicate(in.Criteria))
	out.Items = Sort(filtered)
	return out
}
