package model

import (
	"strings"
	"time"
)

// Kind identifies which catalog an item came from.
type Kind string

const (
	KindEvent     Kind = "event"
	KindHackathon Kind = "hackathon"
)

// ParseKind accepts singular and plural forms ("events", "hackathon", ...).
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "event", "events":
		return KindEvent, true
	case "hackathon", "hackathons":
		return KindHackathon, true
	}
	return "", false
}

// Plural is the collection name used in URLs and upstream paths.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// Status is the lifecycle status of a catalog item.
type Status string

const (
	StatusLive      Status = "live"
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
)

// Priority orders the lifecycle groups for display: live, upcoming, completed.
func (s Status) Priority() int {
	switch s {
	case StatusLive:
		return 0
	case StatusUpcoming:
		return 1
	default:
		return 2
	}
}

// Classification says how an item's status is obtained. Events compute it
// from the clock; hackathons carry a curated value from the source record.
type Classification struct {
	stored   Status
	isStored bool
}

// Computed derives status from (now, start, end) on every read.
func Computed() Classification {
	return Classification{}
}

// Stored passes the given status through unchanged.
func Stored(s Status) Classification {
	return Classification{stored: s, isStored: true}
}

func (c Classification) IsStored() bool {
	return c.isStored
}

// StoredStatus returns the curated value, if any.
func (c Classification) StoredStatus() (Status, bool) {
	return c.stored, c.isStored
}

// String is "computed" or "stored".
func (c Classification) String() string {
	if c.isStored {
		return "stored"
	}
	return "computed"
}

// Item is a single event or hackathon after normalization.
//
// Items are built fresh from every catalog fetch and never mutated in place;
// the engine copies them when it tags registration membership.
type Item struct {
	ID    string // normalized: trimmed, lower-cased string form
	Kind  Kind
	Title string

	Start                time.Time
	End                  time.Time
	RegistrationDeadline time.Time

	// Normalized enumeration fields. Empty when the source omitted them.
	Type     string // workshop | challenge | meetup (events)
	Mode     string // online | offline | hybrid
	FeeType  string // free | paid
	TeamSize string // solo | team (hackathons)

	// Recurrence is the raw RRULE when the item was resolved from a
	// recurring record.
	Recurrence string

	Lifecycle Classification
	Status    Status

	IsRegistered bool

	// Raw holds the upstream record for display only.
	Raw map[string]any
}

// RegistrationOpen reports whether registration is still possible at now.
func (it Item) RegistrationOpen(now time.Time) bool {
	return !now.After(it.RegistrationDeadline)
}
