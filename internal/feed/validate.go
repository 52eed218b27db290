package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"

	appLog "groupfeed/internal/log"
	"groupfeed/internal/model"
)

var (
	ErrNoStart      = errors.New("missing DTSTART")
	ErrInvalidStart = errors.New("unparseable DTSTART")
	ErrInvalidEnd   = errors.New("unparseable DTEND")
)

// Problem is one event that cannot be turned into a display-ready record.
type Problem struct {
	Group   string
	File    string
	UID     string
	Ordinal int
	Err     error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s #%d (uid %s): %v", p.File, p.Ordinal, p.UID, p.Err)
}

func (p Problem) Unwrap() error { return p.Err }

// ValidationError aborts a run under the "fail" policy. It lists every
// problem found across all files.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d invalid event(s)", len(e.Problems))
	for _, p := range e.Problems {
		b.WriteString("; " + p.Error())
	}
	return b.String()
}

// Unwrap exposes the individual problems to errors.Is / errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = p
	}
	return errs
}

// Validate checks a normalized event. normErr is the error Normalize
// returned for it, if any.
func Validate(ev model.NormalizedEvent, normErr error) []Problem {
	var problems []Problem
	add := func(err error) {
		problems = append(problems, Problem{
			Group:   ev.Group,
			File:    ev.File,
			UID:     ev.UID,
			Ordinal: ev.Ordinal,
			Err:     err,
		})
	}

	if normErr != nil {
		add(normErr)
	}
	switch {
	case ev.Start == nil:
		add(ErrNoStart)
	case !ev.Start.Valid:
		add(fmt.Errorf("%w: %s", ErrInvalidStart, ev.StartKey))
	}
	if ev.End != nil && !ev.End.Valid {
		add(fmt.Errorf("%w: %s", ErrInvalidEnd, ev.EndKey))
	}

	checkRecurrence(ev)
	return problems
}

// checkRecurrence logs RRULEs. Recurrences are never expanded, so a bad rule
// is a warning, not a problem.
func checkRecurrence(ev model.NormalizedEvent) {
	raw := ev.Text(keyRRule)
	if raw == "" {
		return
	}
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		appLog.Warn("unparseable RRULE ignored", "group", ev.Group, "uid", ev.UID, "rrule", raw, "err", err)
		return
	}
	appLog.Debug("recurring event listed once (not expanded)", "group", ev.Group, "uid", ev.UID, "freq", r.OrigOptions.Freq.String())
}
