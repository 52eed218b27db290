package ics

// Extract returns the raw events of a parsed calendar.
//
// Events inside VTIMEZONE blocks come first, in block order. A block that
// wraps another VTIMEZONE is unwrapped one level first. VEVENTs attached
// directly to the VCALENDAR follow, in document order. A document without a
// VCALENDAR yields no events.
func Extract(doc Document) []Object {
	cals, ok := doc[SectionCalendar]
	if !ok {
		return nil
	}

	var nested, direct []Object
	for _, cal := range cals {
		for _, tz := range cal.Sections(SectionTimezone) {
			if inner := tz.Sections(SectionTimezone); len(inner) > 0 {
				tz = inner[0]
			}
			nested = append(nested, tz.Sections(SectionEvent)...)
		}
		direct = append(direct, cal.Sections(SectionEvent)...)
	}
	return append(nested, direct...)
}
