package ics

import (
	"reflect"
	"testing"
)

func ev(uid string) Object { return Object{"UID": uid} }

func uids(objs []Object) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o["UID"].(string))
	}
	return out
}

func TestExtractTwoTimezoneBlocks(t *testing.T) {
	doc := Document{SectionCalendar: {{
		SectionTimezone: []Object{
			{"TZID": "A", SectionEvent: []Object{ev("a1")}},
			{"TZID": "B", SectionEvent: []Object{ev("b1")}},
		},
	}}}

	if got := uids(Extract(doc)); !reflect.DeepEqual(got, []string{"a1", "b1"}) {
		t.Fatalf("expected [a1 b1], got %v", got)
	}
}

func TestExtractOrderAndWrapping(t *testing.T) {
	doc := Document{SectionCalendar: {{
		SectionEvent: []Object{ev("direct1"), ev("direct2")},
		SectionTimezone: []Object{
			{SectionTimezone: []Object{{SectionEvent: []Object{ev("w1"), ev("w2")}}}},
			{"TZID": "empty"},
			{SectionEvent: []Object{ev("p1")}},
		},
	}}}

	want := []string{"w1", "w2", "p1", "direct1", "direct2"}
	if got := uids(Extract(doc)); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractWithoutCalendar(t *testing.T) {
	if got := Extract(Document{}); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
	if got := Extract(nil); len(got) != 0 {
		t.Fatalf("expected no events for nil document, got %v", got)
	}
}

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//groupfeed//test//EN\r\n" +
	"BEGIN:VTIMEZONE\r\n" +
	"TZID:Europe/Paris\r\n" +
	"BEGIN:STANDARD\r\n" +
	"DTSTART:19701025T030000\r\n" +
	"TZOFFSETFROM:+0200\r\n" +
	"TZOFFSETTO:+0100\r\n" +
	"END:STANDARD\r\n" +
	"END:VTIMEZONE\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:one@groupfeed\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;TZID=Europe/Paris:20240310T090000\r\n" +
	"DTEND;TZID=Europe/Paris:20240310T110000\r\n" +
	"SUMMARY:Spring meetup\r\n" +
	"CATEGORIES:a\r\n" +
	"CATEGORIES:b\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleICS))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cals := doc[SectionCalendar]
	if len(cals) != 1 {
		t.Fatalf("expected one calendar, got %d", len(cals))
	}
	if cals[0]["VERSION"] != "2.0" {
		t.Fatalf("expected calendar properties, got %v", cals[0])
	}
	if tz := cals[0].Sections(SectionTimezone); len(tz) != 1 || len(tz[0].Sections("STANDARD")) != 1 {
		t.Fatalf("expected one VTIMEZONE with a STANDARD block, got %v", cals[0][SectionTimezone])
	}

	events := Extract(doc)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	e := events[0]
	if e["DTSTART;TZID=Europe/Paris"] != "20240310T090000" {
		t.Fatalf("expected parameterized DTSTART key, got %v", e)
	}
	if e["SUMMARY"] != "Spring meetup" {
		t.Fatalf("unexpected SUMMARY: %v", e["SUMMARY"])
	}
	if cats, ok := e["CATEGORIES"].([]string); !ok || !reflect.DeepEqual(cats, []string{"a", "b"}) {
		t.Fatalf("expected repeated CATEGORIES as slice, got %#v", e["CATEGORIES"])
	}
}

func TestParseDocumentEmpty(t *testing.T) {
	if _, err := ParseDocument([]byte("  \n")); err == nil {
		t.Fatalf("expected error for empty body")
	}
}
