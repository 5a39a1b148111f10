package ordering

import "time"

// WeekKeyLayout formats the Monday that starts a week window.
const WeekKeyLayout = "2006-01-02"

// Window is a half-open ISO week [Start, End) in a fixed location.
type Window struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the Monday 00:00 to next Monday 00:00 window containing t in loc.
// Days are stepped with time.Date so DST transitions keep midnight boundaries.
func WeekOf(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	sinceMonday := (int(local.Weekday()) + 6) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-sinceMonday, 0, 0, 0, 0, loc)
	return Window{
		Start: start,
		End:   time.Date(start.Year(), start.Month(), start.Day()+7, 0, 0, 0, 0, loc),
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Key identifies the window by its Monday date.
func (w Window) Key() string {
	return w.Start.Format(WeekKeyLayout)
}
