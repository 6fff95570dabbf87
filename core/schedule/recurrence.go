// Package schedule expands recurrence rules into concrete occurrence dates.
// It is pure: no storage, no clock, no side effects.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nageo/backend/core"
)

// MaxOccurrences bounds any expansion, whatever the end condition says.
const MaxOccurrences = 100

var ErrInvalidRule = errors.New("invalid recurrence rule")

type Frequency string

const (
	None    Frequency = "none"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

var frequencies = map[Frequency]struct{}{
	None: {}, Daily: {}, Weekly: {}, Monthly: {}, Yearly: {},
}

// Rule describes how a base date repeats.
// The end condition is one of:
//   - neither Count nor Until set: expansion only stops at MaxOccurrences;
//   - Count = n: stop after n occurrences (base date included);
//   - Until = d: stop before the first occurrence past d (d itself allowed).
//
// Count and Until are mutually exclusive.
type Rule struct {
	Frequency Frequency      `json:"frequency"`
	Interval  int            `json:"interval"`
	WeekDays  []time.Weekday `json:"week_days,omitempty"` // 0=Sunday..6=Saturday; weekly frequency only
	Count     int            `json:"count,omitempty"`
	Until     time.Time      `json:"until,omitempty"`
}

func (r Rule) Validate() error {
	var flds []core.FieldError
	fldErr := func(field, text string) {
		flds = append(flds, core.FieldError{Field: field, Error: text})
	}

	if _, ok := frequencies[r.Frequency]; !ok && r.Frequency != "" {
		fldErr("frequency", fmt.Sprintf("unknown frequency %q", r.Frequency))
	}
	if r.repeats() && r.Interval < 1 {
		fldErr("interval", "interval must be at least 1")
	}
	for _, wd := range r.WeekDays {
		if wd < time.Sunday || wd > time.Saturday {
			fldErr("week_days", fmt.Sprintf("invalid weekday %d", wd))
			break
		}
	}
	if r.Count < 0 {
		fldErr("count", "count must be at least 1")
	}
	if r.Count > 0 && !r.Until.IsZero() {
		fldErr("count", "count and until are mutually exclusive")
	}

	if flds != nil {
		return core.NewValidationError(ErrInvalidRule, flds...)
	}
	return nil
}

func (r Rule) repeats() bool { return !(r.Frequency == "" || r.Frequency == None) }

// Expand turns (base, rule) into the ordered list of occurrence dates,
// base first. The result is strictly ascending and never exceeds
// MaxOccurrences entries.
func Expand(base time.Time, r Rule) ([]time.Time, error) {
	if base.IsZero() {
		return nil, core.NewValidationError(ErrInvalidRule, core.FieldError{Field: "start_at", Error: "a valid base date is required"})
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !r.repeats() {
		return []time.Time{base}, nil
	}

	max := MaxOccurrences
	if r.Count > 0 && r.Count < max {
		max = r.Count
	}

	dates := make([]time.Time, 1, max)
	dates[0] = base
	cursor := base
	for len(dates) < max {
		next := r.step(cursor)
		if !next.After(cursor) { // stalled cursor; nothing sane to generate
			break
		}
		if !r.Until.IsZero() && next.After(r.Until) {
			break
		}
		dates = append(dates, next)
		cursor = next
	}
	return dates, nil
}

// step advances the cursor by one occurrence. Month and year arithmetic
// follow time.AddDate's normalization (Jan 31 + 1 month rolls over).
func (r Rule) step(cur time.Time) time.Time {
	switch r.Frequency {
	case Daily:
		return cur.AddDate(0, 0, 1)
	case Weekly:
		if len(r.WeekDays) > 0 {
			return r.nextWeekDay(cur)
		}
		return cur.AddDate(0, 0, 7*r.Interval)
	case Monthly:
		return cur.AddDate(0, r.Interval, 0)
	case Yearly:
		return cur.AddDate(r.Interval, 0, 0)
	}
	return cur
}

// nextWeekDay picks the next configured weekday strictly after cur within
// cur's (Sunday-based) week; once the week is exhausted it jumps Interval
// weeks ahead and lands on the earliest configured weekday. One occurrence
// per matching weekday per interval window.
func (r Rule) nextWeekDay(cur time.Time) time.Time {
	days := append([]time.Weekday(nil), r.WeekDays...)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	cw := cur.Weekday()
	for _, wd := range days {
		if wd > cw {
			return cur.AddDate(0, 0, int(wd-cw))
		}
	}
	weekStart := cur.AddDate(0, 0, -int(cw))
	return weekStart.AddDate(0, 0, 7*r.Interval+int(days[0]))
}
