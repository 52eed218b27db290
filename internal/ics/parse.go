package ics

import (
	"bytes"
	"errors"
	"sort"
	"strings"

	ical "github.com/arran4/golang-ical"
)

// Section names used by the extractor.
const (
	SectionCalendar = "VCALENDAR"
	SectionTimezone = "VTIMEZONE"
	SectionEvent    = "VEVENT"
)

// Object is one calendar component flattened to a map. Values are string
// (single property), []string (repeated property) or []Object (nested
// components keyed by component name).
type Object map[string]any

// Sections returns the nested components stored under name.
func (o Object) Sections(name string) []Object {
	v, _ := o[name].([]Object)
	return v
}

func (o Object) addSection(name string, child Object) {
	o[name] = append(o.Sections(name), child)
}

func (o Object) addProperty(key, value string) {
	switch prev := o[key].(type) {
	case nil:
		o[key] = value
	case string:
		o[key] = []string{prev, value}
	case []string:
		o[key] = append(prev, value)
	default:
		// A component already claimed this name; keep it.
	}
}

// Document is a parsed calendar file: section name -> components.
type Document map[string][]Object

// ParseDocument parses an ICS payload with golang-ical and flattens the
// component tree into a Document. Property keys carry their parameters,
// sorted by name, e.g. "DTSTART;TZID=Europe/Paris".
func ParseDocument(body []byte) (Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	root := Object{}
	for _, p := range cal.CalendarProperties {
		root.addProperty(propertyKey(p.BaseProperty), p.Value)
	}
	for _, c := range cal.Components {
		root.addSection(componentName(c), flatten(c))
	}

	return Document{SectionCalendar: {root}}, nil
}

func flatten(c ical.Component) Object {
	obj := Object{}
	for _, p := range c.UnknownPropertiesIANAProperties() {
		obj.addProperty(propertyKey(p.BaseProperty), p.Value)
	}
	for _, sub := range c.SubComponents() {
		obj.addSection(componentName(sub), flatten(sub))
	}
	return obj
}

func componentName(c ical.Component) string {
	switch v := c.(type) {
	case *ical.VEvent:
		return "VEVENT"
	case *ical.VTodo:
		return "VTODO"
	case *ical.VJournal:
		return "VJOURNAL"
	case *ical.VBusy:
		return "VFREEBUSY"
	case *ical.VTimezone:
		return "VTIMEZONE"
	case *ical.VAlarm:
		return "VALARM"
	case *ical.Standard:
		return "STANDARD"
	case *ical.Daylight:
		return "DAYLIGHT"
	case *ical.GeneralComponent:
		return strings.ToUpper(v.Token)
	default:
		return "X-UNKNOWN"
	}
}

func propertyKey(p ical.BaseProperty) string {
	if len(p.ICalParameters) == 0 {
		return p.IANAToken
	}
	names := make([]string, 0, len(p.ICalParameters))
	for name := range p.ICalParameters {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(p.IANAToken)
	for _, name := range names {
		b.WriteString(";" + name + "=" + strings.Join(p.ICalParameters[name], ","))
	}
	return b.String()
}
