package tablebook

import (
	"fmt"
	"time"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewOccupancyWindow returns the fixed-duration window opened at start.
func NewOccupancyWindow(start time.Time) Window {
	return Window{Start: start, End: start.Add(BookingDuration)}
}

// Contains reports whether at falls inside the half-open window.
func (window Window) Contains(at time.Time) bool {
	return !at.Before(window.Start) && at.Before(window.End)
}

// EndedBy reports whether the window is over at the given instant.
func (window Window) EndedBy(at time.Time) bool {
	return !at.Before(window.End)
}

// ClampInclusive pulls at into [Start, End]. The end bound is inclusive
// here: a serve instant resolved exactly at window end is still served.
func (window Window) ClampInclusive(at time.Time) time.Time {
	if at.Before(window.Start) {
		return window.Start
	}
	if at.After(window.End) {
		return window.End
	}
	return at
}

// CombineDateTime parses "2006-01-02" + "15:04" into a local instant.
func CombineDateTime(date string, timeOfDay string) (time.Time, error) {
	combined, err := time.ParseInLocation(DateLayout+"T"+TimeLayout, date+"T"+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidDateTime, date, timeOfDay)
	}
	return combined, nil
}

// parseTimeOfDay validates a bare "15:04" value.
func parseTimeOfDay(timeOfDay string) error {
	if _, err := time.Parse(TimeLayout, timeOfDay); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDateTime, timeOfDay)
	}
	return nil
}

// conflicts reports whether the candidate instant lands inside an existing
// reservation window for the same table. Half-open semantics: a booking
// starting exactly when another ends does not conflict.
func conflicts(tableID TableID, candidate time.Time, existing []Reservation) bool {
	for _, reservation := range existing {
		if reservation.TableID != tableID {
			continue
		}
		window, err := reservation.Window()
		if err != nil {
			continue
		}
		if window.Contains(candidate) {
			return true
		}
	}
	return false
}

// occupiedTables collects every table whose window contains the instant.
func occupiedTables(at time.Time, existing []Reservation) map[TableID]struct{} {
	occupied := make(map[TableID]struct{})
	for _, reservation := range existing {
		window, err := reservation.Window()
		if err != nil {
			continue
		}
		if window.Contains(at) {
			occupied[reservation.TableID] = struct{}{}
		}
	}
	return occupied
}
