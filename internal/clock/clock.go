// Package clock owns the game time-of-day and day counter.
package clock

import "fmt"

// DefaultMinutesPerSecond is the stock advance rate: 12 game-minutes per real
// second, so a 0.5 s tick moves time by 0.1 game-hours and a full day takes
// 240 ticks.
const DefaultMinutesPerSecond = 12.0

// WorldClock tracks time-of-day in [0, 24) game-hours and a monotonically
// increasing day counter starting at 1.
type WorldClock struct {
	TimeOfDay float64 // Game-hours in [0, 24)
	Day       int     // Starts at 1, increments exactly once per wrap

	// Rate is the advance rate in game-minutes per real second.
	Rate float64
}

// New creates a clock at the given starting hour on day 1.
func New(startHour float64) *WorldClock {
	return &WorldClock{
		TimeOfDay: wrapHour(startHour),
		Day:       1,
		Rate:      DefaultMinutesPerSecond,
	}
}

// Advance moves time forward by realDt seconds scaled by timeScale. It
// returns the number of day rollovers that occurred (0 or more; more than one
// only under extreme time scales).
func (c *WorldClock) Advance(realDt, timeScale float64) int {
	if realDt <= 0 || timeScale <= 0 {
		return 0
	}

	hours := c.Rate / 60.0 * realDt * timeScale
	c.TimeOfDay += hours

	rollovers := 0
	for c.TimeOfDay >= 24.0 {
		c.TimeOfDay -= 24.0
		c.Day++
		rollovers++
	}
	return rollovers
}

// SetTime forces time-of-day to a specific hour without touching the day
// counter. Out-of-range hours are wrapped.
func (c *WorldClock) SetTime(hour float64) {
	c.TimeOfDay = wrapHour(hour)
}

// TimeName returns the part-of-day name for the current hour.
func (c *WorldClock) TimeName() string {
	return TimeName(c.TimeOfDay)
}

// TimeName maps an hour to its part-of-day name.
func TimeName(hour float64) string {
	switch {
	case hour >= 21 || hour < 5:
		return "Night"
	case hour < 7:
		return "Dawn"
	case hour < 11:
		return "Morning"
	case hour < 13:
		return "Noon"
	case hour < 17:
		return "Afternoon"
	case hour < 19:
		return "Evening"
	default:
		return "Dusk"
	}
}

// String formats the clock as "Day 3, 2:05 PM (Afternoon)".
func (c *WorldClock) String() string {
	hours := int(c.TimeOfDay)
	minutes := int((c.TimeOfDay - float64(hours)) * 60)

	amPm := "AM"
	if hours >= 12 {
		amPm = "PM"
	}
	display := hours % 12
	if display == 0 {
		display = 12
	}

	return fmt.Sprintf("Day %d, %d:%02d %s (%s)", c.Day, display, minutes, amPm, c.TimeName())
}

func wrapHour(h float64) float64 {
	for h >= 24 {
		h -= 24
	}
	for h < 0 {
		h += 24
	}
	return h
}
