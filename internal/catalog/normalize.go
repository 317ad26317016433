package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "catalogd/internal/log"
	"catalogd/internal/model"
)

// DefaultEventDuration is the end-time fallback for events without one.
const DefaultEventDuration = 2 * time.Hour

// Layouts carrying an explicit offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

// Unix millisecond values outside this range (roughly ±31,700 years) are
// rejected rather than rendered as nonsense dates.
const maxUnixMillis = 1e15

// Layouts read in the configured display location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an upstream date-time into an instant.
//
// Accepted forms:
//   - RFC3339 with or without fractional seconds
//   - "YYYY-MM-DD HH:MM[:SS]" (space instead of "T")
//   - "YYYY-MM-DDTHH:MM[:SS]" and "YYYY-MM-DD", read in loc
//   - "YYYYMMDD" basic date, read in loc
//   - numeric Unix milliseconds (JSON number or digit string) within
//     ±1e15
//
// A nil loc means time.Local.
func ParseTimestamp(v any, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if v == nil {
		return time.Time{}, fmt.Errorf("%w: missing value", ErrMalformedTimestamp)
	}

	if _, isStr := v.(string); !isStr {
		if ms, ok := number(v); ok {
			return fromUnixMillis(ms, loc)
		}
	}

	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing value", ErrMalformedTimestamp)
	}
	if isDigits(s) {
		if len(s) == 8 {
			t, err := time.ParseInLocation("20060102", s, loc)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
			}
			return t, nil
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
		}
		return fromUnixMillis(float64(ms), loc)
	}

	// Tolerate "2025-01-01 10:00:00" from the SQL-backed endpoint.
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + strings.TrimLeft(s[11:], " ")
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

func fromUnixMillis(ms float64, loc *time.Location) (time.Time, error) {
	if math.IsNaN(ms) || ms < -maxUnixMillis || ms > maxUnixMillis {
		return time.Time{}, fmt.Errorf("%w: unix millis %v out of range", ErrMalformedTimestamp, ms)
	}
	return time.UnixMilli(int64(ms)).In(loc), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeRecord turns one raw record into an Item with parsed instants and
// normalized enumeration fields. Status is not set here.
func normalizeRecord(kind model.Kind, rec RawRecord, now time.Time, loc *time.Location) (model.Item, error) {
	var it model.Item
	it.Kind = kind
	it.Raw = rec

	idVal, _ := rec.first(keysID...)
	id, ok := NormalizeID(idVal)
	if !ok {
		return it, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	it.ID = id
	it.Title = rec.str(keysTitle...)

	startVal, _ := rec.first(keysStart...)
	start, err := ParseTimestamp(startVal, loc)
	if err != nil {
		return it, fmt.Errorf("start time: %w", err)
	}
	it.Start = start

	endVal, hasEnd := rec.first(keysEnd...)
	switch kind {
	case model.KindHackathon:
		end, err := ParseTimestamp(endVal, loc)
		if err != nil {
			return it, fmt.Errorf("end date: %w", err)
		}
		it.End = end
	default:
		it.End = start.Add(DefaultEventDuration)
		if hasEnd {
			if end, err := ParseTimestamp(endVal, loc); err == nil {
				it.End = end
			} else {
				appLog.Debug("catalog: unparsable end time, using default", "id", id, "value", endVal)
			}
		}
	}

	it.RegistrationDeadline = start
	if dlVal, ok := rec.first(keysDeadline...); ok {
		if dl, err := ParseTimestamp(dlVal, loc); err == nil {
			it.RegistrationDeadline = dl
		} else {
			appLog.Debug("catalog: unparsable registration deadline, using start", "id", id, "value", dlVal)
		}
	}

	if kind == model.KindEvent {
		if rule := rec.str(keysRRule...); rule != "" {
			if err := resolveRecurrence(&it, rule, now); err != nil {
				appLog.Error("catalog: failed to parse RRULE; using base occurrence", err, "id", id, "rrule", rule)
			}
		}
	}

	it.Type = normalizeEnum(rec.str(keysType...))
	it.Mode = normalizeEnum(rec.str(keysMode...))
	it.FeeType = normalizeFee(rec)
	it.TeamSize = normalizeTeamSize(rec)

	it.Lifecycle = model.Computed()
	if kind == model.KindHackathon {
		if raw := rec.str(keysStatus...); raw != "" {
			st, ok := parseStoredStatus(raw)
			if !ok {
				return it, fmt.Errorf("%w: unknown status %q", ErrMalformedRecord, raw)
			}
			it.Lifecycle = model.Stored(st)
		}
	}

	return it, nil
}

// resolveRecurrence moves the item onto its effective occurrence at now: the
// one in progress, else the next one, else the last one. Duration and the
// deadline lead time are kept from the base record.
func resolveRecurrence(it *model.Item, rule string, now time.Time) error {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return err
	}
	r.DTStart(it.Start)

	dur := it.End.Sub(it.Start)
	lead := it.Start.Sub(it.RegistrationDeadline)

	occ := r.Before(now, true)
	switch {
	case !occ.IsZero() && !now.After(occ.Add(dur)):
		// in progress
	default:
		if next := r.After(now, false); !next.IsZero() {
			occ = next
		}
	}
	if occ.IsZero() {
		return errors.New("rrule yields no occurrences")
	}

	it.Start = occ
	it.End = occ.Add(dur)
	it.RegistrationDeadline = occ.Add(-lead)
	it.Recurrence = rule
	return nil
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}

// normalizeFee maps "free"/"paid" strings, booleans and numeric fee amounts.
func normalizeFee(rec RawRecord) string {
	v, ok := rec.first(keysFee...)
	if !ok {
		if paid, ok := rec["isPaid"].(bool); ok {
			if paid {
				return "paid"
			}
			return "free"
		}
		return ""
	}
	if amount, ok := number(v); ok {
		if amount > 0 {
			return "paid"
		}
		return "free"
	}
	return normalizeEnum(stringify(v))
}

// normalizeTeamSize maps "solo"/"team" strings and numeric max team sizes.
func normalizeTeamSize(rec RawRecord) string {
	v, ok := rec.first(keysTeamSize...)
	if !ok {
		return ""
	}
	if n, ok := number(v); ok {
		if n > 1 {
			return "team"
		}
		return "solo"
	}
	switch s := normalizeEnum(stringify(v)); s {
	case "individual", "single":
		return "solo"
	case "group", "teams":
		return "team"
	default:
		return s
	}
}

func parseStoredStatus(s string) (model.Status, bool) {
	switch normalizeEnum(s) {
	case "live", "ongoing", "active", "in-progress":
		return model.StatusLive, true
	case "upcoming", "open", "scheduled":
		return model.StatusUpcoming, true
	case "completed", "ended", "past", "closed", "finished":
		return model.StatusCompleted, true
	}
	return "", false
}
