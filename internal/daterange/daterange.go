// Package daterange computes the date slider bounds and the displayed range.
package daterange

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// StartDate is the first day covered by the datasets.
const StartDate = "2020-01-23"

// Layout matches the fr-CA short date format (YYYY-MM-DD).
const Layout = "2006-01-02"

const day = 24 * time.Hour

// ErrSliderOutOfRange is returned for slider values outside [1, Days].
var ErrSliderOutOfRange = errors.New("slider value out of range")

// Range is the date window available to the slider. It is computed once at
// startup and passed around by value.
type Range struct {
	Start time.Time
	Now   time.Time
	Days  int
}

// New computes the range from start to now. Days is the ceiling of the
// elapsed days, at least 1 so the slider always has a valid position.
func New(start, now time.Time) Range {
	days := int(math.Ceil(float64(now.Sub(start)) / float64(day)))
	if days < 1 {
		days = 1
	}
	return Range{Start: start, Now: now, Days: days}
}

// FromClock parses StartDate (or start, if non-empty) and reads now once.
func FromClock(start string, now func() time.Time) (Range, error) {
	if start == "" {
		start = StartDate
	}
	t, err := time.Parse(Layout, start)
	if err != nil {
		return Range{}, fmt.Errorf("parsing start date: %w", err)
	}
	return New(t, now().UTC()), nil
}

// DaysBeforeEnd inverts a slider position into the number of days before the
// end of the range.
func (r Range) DaysBeforeEnd(slider int) (int, error) {
	if slider < 1 || slider > r.Days {
		return 0, fmt.Errorf("%w: %d not in [1, %d]", ErrSliderOutOfRange, slider, r.Days)
	}
	return r.Days - slider, nil
}

// SliderValue is the slider position for a days-before-end count.
func (r Range) SliderValue(daysBeforeEnd int) int {
	return r.Days - daysBeforeEnd
}

// EndDate is the last day shown when the range ends daysBeforeEnd days early.
func (r Range) EndDate(daysBeforeEnd int) time.Time {
	return r.Now.AddDate(0, 0, -daysBeforeEnd)
}

// Caption renders the range text shown under the slider.
func (r Range) Caption(end time.Time) string {
	return r.Start.Format(Layout) + " to " + Format(end)
}

// Format renders t as a localized (fr-CA) date.
func Format(t time.Time) string {
	return t.Format(Layout)
}
