package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"groupfeed/internal/groups"
	"groupfeed/internal/ics"
	"groupfeed/internal/model"
)

// ErrUnknownGroup is returned when a calendar file's stem has no entry in
// the group directory.
var ErrUnknownGroup = errors.New("unknown group")

// GroupLookup resolves display metadata for a group id.
type GroupLookup interface {
	Lookup(id string) (groups.Group, bool)
}

// Normalizer derives the display fields of an event.
type Normalizer struct {
	Groups GroupLookup
	// Now is the clock used for the expired flag. Nil means time.Now.
	Now func() time.Time
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Normalize repairs the free-text fields, derives mapQuery from the
// repaired LOCATION, flags expiry against the current time and attaches
// group metadata. The returned event is fully populated even when the group
// is unknown; the error then wraps ErrUnknownGroup.
func (n Normalizer) Normalize(group string, ev model.Event) (model.NormalizedEvent, error) {
	props := make(map[string]any, len(ev.Props))
	for k, v := range ev.Props {
		props[k] = v
	}
	for _, key := range []string{keySummary, keyDescription, keyLocation} {
		switch v := props[key].(type) {
		case string:
			props[key] = ics.RepairText(v)
		case []string:
			// Repeated property; the source slice belongs to the raw event.
			fixed := make([]string, len(v))
			for i, s := range v {
				fixed[i] = ics.RepairText(s)
			}
			props[key] = fixed
		}
	}
	ev.Props = props
	ev.Group = group

	out := model.NormalizedEvent{Event: ev}
	if loc := ev.Text(keyLocation); loc != "" {
		out.MapQuery = MapQuery(loc)
	}

	if ev.End != nil && ev.End.Valid {
		out.Expired = ev.End.Time.Before(n.now())
	}

	if n.Groups == nil {
		return out, fmt.Errorf("%w %q", ErrUnknownGroup, group)
	}
	g, ok := n.Groups.Lookup(group)
	if !ok {
		return out, fmt.Errorf("%w %q", ErrUnknownGroup, group)
	}
	out.GroupName = g.Name
	out.GroupURL = g.Web
	return out, nil
}

// MapQuery blanks the first "(" and the first ")" of a location so it can be
// used as a map search string.
func MapQuery(location string) string {
	q := strings.Replace(location, "(", " ", 1)
	return strings.Replace(q, ")", " ", 1)
}
