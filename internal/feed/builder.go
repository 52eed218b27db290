package feed

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"groupfeed/internal/model"
)

// GroupFeed is the filtered, sorted feed of one calendar file.
type GroupFeed struct {
	Group  string
	File   string
	Events []model.NormalizedEvent

	// Problems lists events left out because they failed validation.
	Problems []Problem
	// Stale counts events dropped for starting before the grace window.
	Stale int
}

// Builder turns canonical events into feeds.
type Builder struct {
	Normalizer Normalizer
	// GraceDays is how many calendar days back an event may have started.
	GraceDays int
}

// BuildGroupFeed normalizes, validates, sorts and filters one group's
// events. Events failing validation are reported in Problems and left out.
func (b Builder) BuildGroupFeed(group, file string, events []model.Event) GroupFeed {
	feed := GroupFeed{
		Group:  group,
		File:   file,
		Events: make([]model.NormalizedEvent, 0, len(events)),
	}

	for _, ev := range events {
		ne, err := b.Normalizer.Normalize(group, ev)
		if problems := Validate(ne, err); len(problems) > 0 {
			feed.Problems = append(feed.Problems, problems...)
			continue
		}
		feed.Events = append(feed.Events, ne)
	}

	SortEvents(feed.Events)

	kept := FilterStale(feed.Events, b.Normalizer.now(), b.GraceDays)
	feed.Stale = len(feed.Events) - len(kept)
	feed.Events = kept
	return feed
}

// BuildCombinedFeed merges group feeds into one sorted feed.
func BuildCombinedFeed(feeds ...GroupFeed) []model.NormalizedEvent {
	n := 0
	for _, f := range feeds {
		n += len(f.Events)
	}
	out := make([]model.NormalizedEvent, 0, n)
	for _, f := range feeds {
		out = append(out, f.Events...)
	}
	SortEvents(out)
	return out
}

// SortEvents orders events by start instant, then group, extraction order
// and UID, so equal starts always land in the same order.
func SortEvents(events []model.NormalizedEvent) {
	slices.SortStableFunc(events, compareEvents)
}

func compareEvents(a, b model.NormalizedEvent) int {
	if c := startOf(a).Compare(startOf(b)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Ordinal, b.Ordinal); c != 0 {
		return c
	}
	return strings.Compare(a.UID, b.UID)
}

// startOf returns the zero time for events without a usable start; those
// never survive validation but sorting must not panic on them.
func startOf(ev model.NormalizedEvent) time.Time {
	if ev.Start == nil || !ev.Start.Valid {
		return time.Time{}
	}
	return ev.Start.Time
}

// FilterStale drops events that started before now minus graceDays calendar
// days. The cutoff is computed with AddDate, so it follows the wall calendar
// rather than a fixed 24h window.
func FilterStale(events []model.NormalizedEvent, now time.Time, graceDays int) []model.NormalizedEvent {
	cutoff := now.AddDate(0, 0, -graceDays)
	kept := make([]model.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		if startOf(ev).Before(cutoff) {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}
