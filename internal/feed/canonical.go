package feed

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"groupfeed/internal/ics"
	"groupfeed/internal/model"
)

const (
	keyStart       = "DTSTART"
	keyEnd         = "DTEND"
	keyUID         = "UID"
	keySummary     = "SUMMARY"
	keyDescription = "DESCRIPTION"
	keyLocation    = "LOCATION"
	keyRRule       = "RRULE"
)

// uidNamespace seeds name-based UUIDs for events without a UID.
var uidNamespace = uuid.MustParse("6f1c3e0a-51b8-4d9e-9a55-2f0f4c2a7d10")

// Canonicalize turns a raw extracted VEVENT into a typed Event. DTSTART and
// DTEND are looked up once here: the first key, in sorted order, carrying
// the prefix wins, and its parameters are handed to the codec so a TZID
// label survives.
func Canonicalize(codec ics.Codec, group, file string, ordinal int, raw ics.Object) model.Event {
	ev := model.Event{
		Group:   group,
		File:    file,
		Ordinal: ordinal,
		Props:   make(map[string]any, len(raw)),
	}

	keys := make([]string, 0, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case []string:
			ev.Props[k] = append([]string(nil), val...)
		default:
			ev.Props[k] = val
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev.StartKey, ev.Start = lookupStamp(codec, raw, keys, keyStart)
	ev.EndKey, ev.End = lookupStamp(codec, raw, keys, keyEnd)

	ev.UID = ev.Text(keyUID)
	if ev.UID == "" {
		startRaw, _ := firstValue(raw[ev.StartKey])
		name := group + "|" + startRaw + "|" + ev.Text(keySummary)
		ev.UID = uuid.NewSHA1(uidNamespace, []byte(name)).String()
	}
	return ev
}

func lookupStamp(codec ics.Codec, raw ics.Object, sortedKeys []string, prefix string) (string, *model.Stamp) {
	for _, k := range sortedKeys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		value, ok := firstValue(raw[k])
		if !ok {
			continue
		}
		_, params, _ := strings.Cut(k, ";")
		st := codec.ParseParts(params, value)
		return k, &st
	}
	return "", nil
}

func firstValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []string:
		if len(val) > 0 {
			return val[0], true
		}
	}
	return "", false
}
