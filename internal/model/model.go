package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Stamp is a decoded calendar date/time. Zone is a display label taken from
// TZID (or the configured fallback); it never shifts Time.
type Stamp struct {
	Time  time.Time
	Zone  string
	Valid bool

	// Local is the zone wall-clock renderings use. Nil means Time's own location.
	Local *time.Location
}

const (
	displayLayout = "Mon Jan 02 2006 15:04:05 GMT-0700"
	jsonLayout    = "2006-01-02T15:04:05.000Z"
	invalidDate   = "Invalid Date"
)

// Display renders the stamp for humans, e.g.
// "Sun Mar 10 2024 10:00:00 GMT-0500 (US-Eastern)".
func (s Stamp) Display() string {
	if !s.Valid {
		return invalidDate
	}
	t := s.Time
	if s.Local != nil {
		t = t.In(s.Local)
	}
	return t.Format(displayLayout) + " (" + s.Zone + ")"
}

// JSON renders the instant as ISO-8601 UTC with milliseconds. ok is false for
// invalid stamps.
func (s Stamp) JSON() (string, bool) {
	if !s.Valid {
		return "", false
	}
	return s.Time.UTC().Format(jsonLayout), true
}

// Event is a raw VEVENT canonicalized right after extraction: the raw
// properties are kept for pass-through and the DTSTART/DTEND stamps are
// decoded once.
type Event struct {
	Group string // file stem of the owning calendar
	File  string // source file name

	// Ordinal is the position in the file's extraction order.
	Ordinal int

	// UID is the iCalendar UID or a derived name-based UUID when absent.
	UID string

	// Props holds raw properties keyed by their full key (parameters
	// included, e.g. "DTSTART;TZID=Europe/Paris"). Values are string,
	// []string for repeated properties, or nested sections.
	Props map[string]any

	StartKey string
	EndKey   string
	Start    *Stamp
	End      *Stamp
}

// Text returns the string value of a property, or "" when absent or not a
// single string.
func (e Event) Text(key string) string {
	s, _ := e.Props[key].(string)
	return s
}

// NormalizedEvent is an Event with display-ready derived fields.
type NormalizedEvent struct {
	Event

	GroupName string
	GroupURL  string

	// MapQuery is LOCATION with its first "(" and first ")" blanked. Empty
	// when the event has no location.
	MapQuery string

	Expired bool
}

// MarshalJSON emits the raw properties unioned with the derived fields, keys
// sorted.
func (n NormalizedEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Props)+9)
	for k, v := range n.Props {
		out[k] = v
	}

	out["group"] = n.Group
	out["groupName"] = n.GroupName
	out["groupUrl"] = n.GroupURL
	if n.MapQuery != "" {
		out["mapQuery"] = n.MapQuery
	}
	out["startDate"], out["startDateJson"] = stampFields(n.Start)
	out["endDate"], out["endDateJson"] = stampFields(n.End)
	out["expired"] = n.Expired

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func stampFields(s *Stamp) (any, any) {
	if s == nil {
		return nil, nil
	}
	iso, ok := s.JSON()
	if !ok {
		return s.Display(), nil
	}
	return s.Display(), iso
}
