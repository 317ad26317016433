package ics

import (
	"strings"

	ical "github.com/arran4/golang-ical"

	"catalogd/internal/catalog"
	"catalogd/internal/model"
)

const defaultProductID = "-//catalogd//catalog feed//EN"

// ExportOptions controls calendar-level properties of an exported feed.
type ExportOptions struct {
	// Name is shown by calendar clients (X-WR-CALNAME).
	Name string
	// ProductID overrides PRODID.
	ProductID string
	// UIDDomain is appended to every UID. Defaults to "catalogd".
	UIDDomain string
}

// Export renders a sorted catalog as an iCalendar document. VEVENTs appear
// in catalog order; DTSTAMP is the catalog's snapshot time so repeated
// exports of the same snapshot are byte-identical.
func Export(sc catalog.SortedCatalog, opts ExportOptions) string {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = "catalogd"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, it := range sc.Items {
		ev := cal.AddEvent(UID(it, opts.UIDDomain))
		ev.SetDtStampTime(sc.Now)
		ev.SetStartAt(it.Start)
		ev.SetEndAt(it.End)
		ev.SetSummary(it.Title)

		if s := rawString(it.Raw, "description", "summary"); s != "" {
			ev.SetDescription(s)
		}
		if s := rawString(it.Raw, "location", "venue"); s != "" {
			ev.SetLocation(s)
		}
		if s := rawString(it.Raw, "url", "link"); s != "" {
			ev.SetURL(s)
		}
		if it.Recurrence != "" {
			// The feed carries the resolved occurrence only; keep the rule
			// visible for clients that want it.
			ev.SetProperty(ical.ComponentProperty("X-CATALOG-RRULE"), it.Recurrence)
		}
		// One CATEGORIES property per value; commas in a value are escaped.
		for _, c := range categories(it) {
			ev.AddProperty(ical.ComponentPropertyCategories, c)
		}
		ev.SetProperty(ical.ComponentProperty("X-CATALOG-STATUS"), string(it.Status))
	}

	return cal.Serialize()
}

// UID is the stable iCalendar UID for an item.
func UID(it model.Item, domain string) string {
	return it.Kind.Plural() + "-" + it.ID + "@" + domain
}

func categories(it model.Item) []string {
	cats := []string{strings.ToUpper(string(it.Kind))}
	for _, c := range []string{it.Type, it.Mode, it.FeeType, it.TeamSize} {
		if c != "" {
			cats = append(cats, strings.ToUpper(c))
		}
	}
	return cats
}

func rawString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
