package domain

import "time"

// TimeWindow represents a half-open aggregation window [Start, End)
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// NewWindow returns the window ending at now covering the given number
// of days. The end is exclusive, the start inclusive.
func NewWindow(days int, now time.Time) TimeWindow {
	end := now.UTC()
	return TimeWindow{
		Start: end.AddDate(0, 0, -days),
		End:   end,
		Days:  days,
	}
}

// Contains reports whether t falls inside the window
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Midpoint returns the instant splitting the window into equal halves
func (w TimeWindow) Midpoint() time.Time {
	return w.Start.Add(w.End.Sub(w.Start) / 2)
}

// InFirstHalf reports whether t falls before the window midpoint
func (w TimeWindow) InFirstHalf(t time.Time) bool {
	return t.Before(w.Midpoint())
}

// HourBucket returns the UTC hour-of-day bucket (0..23) for a timestamp
func HourBucket(t time.Time) int {
	return t.UTC().Hour()
}
