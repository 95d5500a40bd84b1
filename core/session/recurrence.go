package session

import (
	"sort"
	"time"
)

// Occurrences returns the start times described by the recurrence, starting with `first`.
// Generation stops at EndDate (inclusive), at MaxOccurrences, or at `limit` occurrences,
// whichever comes first. All arithmetic is done in UTC.
func (r Recurrence) Occurrences(first time.Time, limit int) []time.Time {
	first = first.UTC()
	max := limit
	if r.MaxOccurrences != nil && (*r.MaxOccurrences < max || max <= 0) {
		max = *r.MaxOccurrences
	}
	if max <= 0 {
		max = 1
	}
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	starts := []time.Time{first}
	next := r.stepper(first, interval)
	for len(starts) < max {
		t := next()
		if r.EndDate != nil && t.After(r.EndDate.UTC()) {
			break
		}
		starts = append(starts, t)
	}
	return starts
}

// stepper returns a generator of the occurrences strictly after `first`.
func (r Recurrence) stepper(first time.Time, interval int) func() time.Time {
	k := 0
	days := uniqueWeekdays(r.DaysOfWeek)
	switch {
	case r.Frequency == Daily:
		return func() time.Time {
			k++
			return first.AddDate(0, 0, k*interval)
		}
	case r.Frequency == Monthly:
		return func() time.Time {
			k++
			return first.AddDate(0, k*interval, 0)
		}
	case len(days) == 0:
		return func() time.Time {
			k++
			return first.AddDate(0, 0, 7*k*interval)
		}
	}

	// sunday of the first week, at the time of day of `first`
	weekStart := first.AddDate(0, 0, -int(first.Weekday()))
	week, idx := 0, 0
	return func() time.Time {
		for {
			if idx == len(days) {
				idx = 0
				week += interval
			}
			t := weekStart.AddDate(0, 0, 7*week+int(days[idx]))
			idx++
			if t.After(first) {
				return t
			}
		}
	}
}

func uniqueWeekdays(in []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]bool, len(in))
	out := make([]time.Weekday, 0, len(in))
	for _, d := range in {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
