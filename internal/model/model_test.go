package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStampRendering(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	s := Stamp{
		Time:  time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC),
		Zone:  "US-Eastern",
		Valid: true,
		Local: est,
	}

	if got, want := s.Display(), "Sun Mar 10 2024 10:00:00 GMT-0500 (US-Eastern)"; got != want {
		t.Fatalf("Display: expected %q, got %q", want, got)
	}
	iso, ok := s.JSON()
	if !ok || iso != "2024-03-10T15:00:00.000Z" {
		t.Fatalf("JSON: expected 2024-03-10T15:00:00.000Z, got %q (ok=%t)", iso, ok)
	}

	var bad Stamp
	if bad.Display() != "Invalid Date" {
		t.Fatalf("expected Invalid Date, got %q", bad.Display())
	}
	if _, ok := bad.JSON(); ok {
		t.Fatalf("expected invalid stamp to have no JSON rendering")
	}
}

func TestNormalizedEventJSON(t *testing.T) {
	start := Stamp{Time: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), Zone: "UTC", Valid: true}
	ev := NormalizedEvent{
		Event: Event{
			Group: "chess",
			Props: map[string]any{
				"SUMMARY":  "Open <night>",
				"LOCATION": "Hall (B)",
				"DTSTART":  "20240310T090000Z",
				"ATTENDEE": []string{"a", "b"},
			},
			StartKey: "DTSTART",
			Start:    &start,
		},
		GroupName: "Chess Club",
		GroupURL:  "https://example.org/chess",
		MapQuery:  "Hall  B ",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `<`) {
		t.Fatalf("expected HTML characters left unescaped, got %s", data)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for key, want := range map[string]any{
		"SUMMARY":       "Open <night>",
		"group":         "chess",
		"groupName":     "Chess Club",
		"groupUrl":      "https://example.org/chess",
		"mapQuery":      "Hall  B ",
		"startDateJson": "2024-03-10T09:00:00.000Z",
		"expired":       false,
	} {
		if got[key] != want {
			t.Errorf("%s: expected %v, got %v", key, want, got[key])
		}
	}
	if v, ok := got["endDateJson"]; !ok || v != nil {
		t.Errorf("expected endDateJson to be null, got %v (present=%t)", v, ok)
	}
	if att, ok := got["ATTENDEE"].([]any); !ok || len(att) != 2 {
		t.Errorf("expected repeated property to pass through as array, got %v", got["ATTENDEE"])
	}
}

func TestNormalizedEventOmitsEmptyMapQuery(t *testing.T) {
	data, err := json.Marshal(NormalizedEvent{Event: Event{Group: "g", Props: map[string]any{}}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "mapQuery") {
		t.Fatalf("expected no mapQuery without LOCATION, got %s", data)
	}
}
