package domain

import "time"

// Window is an inquiry date range for source fetches. A zero Window tells
// the source adapter to use its rolling default.
type Window struct {
	Begin time.Time
	End   time.Time
}

func (w Window) IsZero() bool {
	return w.Begin.IsZero() && w.End.IsZero()
}

// DayWindow covers a single calendar day, 00:00 through 23:59.
func DayWindow(day time.Time) Window {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return Window{Begin: start, End: start.Add(23*time.Hour + 59*time.Minute)}
}
