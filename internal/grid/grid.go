// Package grid maps between calendar time and the vertical pixel layout of a
// week view, and resolves drag-and-drop positions into reschedule targets.
package grid

import (
	"math"
	"time"

	"planningsprite/internal/model"
)

const (
	DefaultPixelsPerHour    = 64.0
	DefaultSnapMinutes      = 5
	DefaultMinVisibleHeight = 20.0

	minutesPerDay = 24 * 60
)

// Config describes the geometry of one day column.
type Config struct {
	PixelsPerHour    float64
	SnapMinutes      int
	MinVisibleHeight float64
	// Location is the display timezone. If nil, each event's own location is used.
	Location *time.Location
}

// DefaultConfig is the stock week view: 64px per hour, 5-minute
// snapping and a 20px floor on event height.
func DefaultConfig() Config {
	return Config{
		PixelsPerHour:    DefaultPixelsPerHour,
		SnapMinutes:      DefaultSnapMinutes,
		MinVisibleHeight: DefaultMinVisibleHeight,
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.PixelsPerHour <= 0 {
		c.PixelsPerHour = DefaultPixelsPerHour
	}
	if c.SnapMinutes <= 0 {
		c.SnapMinutes = DefaultSnapMinutes
	}
	if c.MinVisibleHeight < 0 {
		c.MinVisibleHeight = DefaultMinVisibleHeight
	}
}

func (c Config) in(t time.Time) time.Time {
	if c.Location == nil {
		return t
	}
	return t.In(c.Location)
}

// Box is the vertical placement of an event inside its day column.
type Box struct {
	OffsetFromTop float64 `json:"offset_from_top"`
	Height        float64 `json:"height"`
}

// Layout positions ev in its start day's column. Short events are floored
// at MinVisibleHeight so they stay clickable.
func Layout(ev model.CalendarEvent, cfg Config) Box {
	start := cfg.in(ev.Start)
	hours := float64(start.Hour()) + float64(start.Minute())/60
	height := ev.Duration().Hours() * cfg.PixelsPerHour
	return Box{
		OffsetFromTop: hours * cfg.PixelsPerHour,
		Height:        math.Max(height, cfg.MinVisibleHeight),
	}
}

// SnapMinutes rounds minutes to the nearest multiple of snap, ties rounding
// up, and clamps the result into [0, 24h). Values at or past midnight clamp
// to the last snap slot of the day; negative or NaN input yields 0.
func SnapMinutes(minutes float64, snap int) int {
	if snap <= 0 {
		snap = 1
	}
	last := (minutesPerDay - 1) / snap * snap
	if minutes < 0 || math.IsNaN(minutes) {
		return 0
	}
	if minutes >= minutesPerDay {
		return last
	}
	snapped := int(math.Floor(minutes/float64(snap)+0.5)) * snap
	if snapped > last {
		return last
	}
	return snapped
}

// ResolveDrop converts a pointer offset inside day's column into a start time
// on day's calendar date, in day's location.
func ResolveDrop(day time.Time, pixelOffset, pixelsPerHour float64, snapMinutes int) time.Time {
	if pixelsPerHour <= 0 {
		pixelsPerHour = DefaultPixelsPerHour
	}
	minutes := SnapMinutes(pixelOffset/pixelsPerHour*60, snapMinutes)
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}

// Reschedule computes the new start and end for ev dropped at pixelOffset in
// day's column. The duration is preserved exactly.
func Reschedule(ev model.CalendarEvent, day time.Time, pixelOffset float64, cfg Config) (time.Time, time.Time) {
	start := ResolveDrop(cfg.in(day), pixelOffset, cfg.PixelsPerHour, cfg.SnapMinutes)
	return start, start.Add(ev.Duration())
}
