package ics

import (
	"strings"
	"time"

	"groupfeed/internal/model"
)

// Codec decodes calendar date/time strings of the form
//
//	[PARAMS:]YYYYMMDD[THHMMSS[Z]]
//
// A TZID parameter only sets the stamp's zone label. No timezone database
// lookup or offset arithmetic is done: values with a trailing Z are UTC,
// everything else is taken as wall-clock time in Local.
type Codec struct {
	// FallbackZone labels values without a usable TZID.
	FallbackZone string
	// Local is the zone for naive values. Nil means time.Local.
	Local *time.Location
}

// Parse decodes raw. The parameter segment ends at the last colon, since a
// quoted TZID may contain colons and the datetime never does. Malformed
// input yields a Stamp with Valid == false.
func (c Codec) Parse(raw string) model.Stamp {
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		return c.ParseParts(raw[:i], raw[i+1:])
	}
	return c.ParseParts("", raw)
}

// ParseParts decodes a datetime whose parameters (e.g. "TZID=Europe/Paris")
// were already split off by the calendar parser.
func (c Codec) ParseParts(params, datetime string) model.Stamp {
	loc := c.Local
	if loc == nil {
		loc = time.Local
	}
	out := model.Stamp{Zone: c.FallbackZone, Local: loc}
	if tz := tzidLabel(params); tz != "" {
		out.Zone = tz
	}

	date, clock, _ := strings.Cut(datetime, "T")

	year, okY := leadingInt(fragment(date, 0, 4))
	month, okM := leadingInt(fragment(date, 4, 2))
	day, okD := leadingInt(fragment(date, 6, 2))
	if !okY || !okM || !okD {
		return out
	}
	hour, _ := leadingInt(fragment(clock, 0, 2))
	min, _ := leadingInt(fragment(clock, 2, 2))
	sec, _ := leadingInt(fragment(clock, 4, 2))

	if len(clock) > 6 && clock[6] == 'Z' {
		out.Time = time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	} else {
		out.Time = time.Date(year, time.Month(month), day, hour, min, sec, 0, loc)
	}
	out.Valid = true
	return out
}

// tzidLabel pulls the TZID value out of a ";"-separated parameter segment.
func tzidLabel(params string) string {
	for _, p := range strings.Split(params, ";") {
		name, value, ok := strings.Cut(p, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "TZID") {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"`)
	}
	return ""
}

// fragment is a bounds-safe s[start:start+n].
func fragment(s string, start, n int) string {
	if start >= len(s) {
		return ""
	}
	end := start + n
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

// leadingInt parses the leading run of ASCII digits in s. ok is false when
// there is none.
func leadingInt(s string) (int, bool) {
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	return n, digits > 0
}
