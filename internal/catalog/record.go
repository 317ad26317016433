package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one upstream catalog object as decoded from JSON (with
// UseNumber). It is also passed through untouched as Item.Raw.
type RawRecord map[string]any

// RawRegistration is one upstream registration object for the current user.
type RawRegistration map[string]any

// Upstream field aliases. The two catalog endpoints were written at
// different times and do not agree on names.
var (
	keysID       = []string{"id", "_id"}
	keysTitle    = []string{"title", "name"}
	keysStart    = []string{"startTime", "startDate", "start"}
	keysEnd      = []string{"endTime", "endDate", "end"}
	keysDeadline = []string{"registrationDeadline", "deadline"}
	keysType     = []string{"type", "eventType", "kindSpecificType"}
	keysMode     = []string{"mode"}
	keysFee      = []string{"feeType", "fee"}
	keysTeamSize = []string{"teamSize", "teamSizeClass", "participation"}
	keysStatus   = []string{"status"}
	keysRRule    = []string{"rrule", "recurrence"}

	keysRegistrationID  = []string{"id", "itemId", "eventId", "hackathonId"}
	keysRegistrationRef = []string{"event", "hackathon", "item"}
)

// first returns the first present, non-nil value among keys.
func (r RawRecord) first(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func (r RawRecord) str(keys ...string) string {
	v, ok := r.first(keys...)
	if !ok {
		return ""
	}
	return stringify(v)
}

// itemID extracts the referenced catalog item id. A registration either
// carries the id directly or nests the registered item.
func (r RawRegistration) itemID() (string, bool) {
	rec := RawRecord(r)
	for _, k := range keysRegistrationRef {
		nested, ok := rec[k].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := RawRecord(nested).first(keysID...); ok {
			return NormalizeID(v)
		}
	}
	// Registrations that reference an item by an explicit foreign key win
	// over the registration's own id.
	for _, k := range keysRegistrationID[1:] {
		if v, ok := rec.first(k); ok {
			return NormalizeID(v)
		}
	}
	if v, ok := rec.first(keysRegistrationID[0]); ok {
		return NormalizeID(v)
	}
	return "", false
}

// NormalizeID converts an identifier of any upstream representation into the
// canonical string used for equality: numbers in plain decimal form, strings
// trimmed and lower-cased. The number 42, the float 42.0 and the string "42"
// all normalize to "42".
func NormalizeID(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			s = strconv.FormatInt(n, 10)
		} else if f, err := x.Float64(); err == nil {
			s = formatFloatID(f)
		} else {
			s = x.String()
		}
	case float64:
		s = formatFloatID(x)
	case float32:
		s = formatFloatID(float64(x))
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case uint:
		s = strconv.FormatUint(uint64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case uint32:
		s = strconv.FormatUint(uint64(x), 10)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s != ""
}

func formatFloatID(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// number reports v as a float when it is numeric (or a numeric string).
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
