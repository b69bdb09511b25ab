// Package availability computes free, fixed-duration booking slots from
// a calendar's busy intervals.
package availability

import "time"

// BusyInterval is a time range already occupied on a resource's calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Slot is a bookable interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeSlots enumerates fixed-duration slots inside [windowStart, windowEnd)
// that do not overlap any busy interval. Busy intervals must be sorted
// ascending by start, which the calendar listing guarantees.
//
// The cursor starts at windowStart. Before each busy interval, slots are
// emitted back to back while they fit entirely before the interval; the
// cursor then jumps to the interval's end. After the last interval, slots
// are emitted until one would run past windowEnd.
//
// The result is recomputed on every call; no slot starts before
// windowStart or ends after windowEnd.
func FreeSlots(busy []BusyInterval, windowStart, windowEnd time.Time, duration time.Duration) []Slot {
	if duration <= 0 || !windowStart.Before(windowEnd) {
		return nil
	}

	var slots []Slot
	cursor := windowStart

	for _, interval := range busy {
		for !cursor.Add(duration).After(interval.Start) {
			if cursor.Add(duration).After(windowEnd) {
				return slots
			}
			slots = append(slots, Slot{Start: cursor, End: cursor.Add(duration)})
			cursor = cursor.Add(duration)
		}
		if cursor.Before(interval.End) {
			cursor = interval.End
		}
	}

	for !cursor.Add(duration).After(windowEnd) {
		slots = append(slots, Slot{Start: cursor, End: cursor.Add(duration)})
		cursor = cursor.Add(duration)
	}

	return slots
}

// WithinHours filters slots to those starting inside the [startHour,
// endHour) local-time window. The core calculator applies no
// business-hours policy; callers that want one opt in with this helper.
func WithinHours(slots []Slot, startHour, endHour int, loc *time.Location) []Slot {
	if loc == nil {
		loc = time.UTC
	}
	filtered := make([]Slot, 0, len(slots))
	for _, s := range slots {
		h := s.Start.In(loc).Hour()
		if h >= startHour && h < endHour {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
