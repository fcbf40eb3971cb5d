// Package availability holds the weekly availability template and daily
// workload caps, and turns them into per-date windows for the planner.
package availability

import (
	"fmt"
	"time"
)

const (
	DaysPerWeek  = 7
	HoursPerDay  = 24
	MaxDailyHour = 24.0
)

// Constraints is the weekly template. Index 0 is Sunday, matching
// time.Weekday.
type Constraints struct {
	AvailableSlots [DaysPerWeek][HoursPerDay]bool `json:"available_slots" yaml:"available_slots"`
	WeeklyMaxHours [DaysPerWeek]float64           `json:"weekly_max_hours" yaml:"weekly_max_hours"`
}

// Default returns Monday to Friday 09:00-18:00 with a 6 hour cap on weekdays
// and 2 hours on weekends.
func Default() Constraints {
	var c Constraints
	for d := time.Monday; d <= time.Friday; d++ {
		for h := 9; h < 18; h++ {
			c.AvailableSlots[d][h] = true
		}
	}
	c.WeeklyMaxHours = [DaysPerWeek]float64{2, 6, 6, 6, 6, 6, 2}
	return c
}

func checkCell(day, hour int) error {
	if day < 0 || day >= DaysPerWeek {
		return fmt.Errorf("availability: day %d out of range", day)
	}
	if hour < 0 || hour >= HoursPerDay {
		return fmt.Errorf("availability: hour %d out of range", hour)
	}
	return nil
}

// Set forces one cell to v.
func (c *Constraints) Set(day, hour int, v bool) error {
	if err := checkCell(day, hour); err != nil {
		return err
	}
	c.AvailableSlots[day][hour] = v
	return nil
}

// Toggle flips one cell and returns its new value.
func (c *Constraints) Toggle(day, hour int) (bool, error) {
	if err := checkCell(day, hour); err != nil {
		return false, err
	}
	c.AvailableSlots[day][hour] = !c.AvailableSlots[day][hour]
	return c.AvailableSlots[day][hour], nil
}

// Stroke is one drag gesture over the grid. The value is fixed by the first
// cell, so a stroke either enables or disables, never both.
type Stroke struct {
	c     *Constraints
	value bool
}

// BeginStroke toggles the first cell of a gesture and returns the stroke
// carrying that cell's new value.
func (c *Constraints) BeginStroke(day, hour int) (*Stroke, error) {
	v, err := c.Toggle(day, hour)
	if err != nil {
		return nil, err
	}
	return &Stroke{c: c, value: v}, nil
}

// Value is the state this stroke paints.
func (s *Stroke) Value() bool { return s.value }

// Paint applies the stroke's value to a cell the pointer passed over.
func (s *Stroke) Paint(day, hour int) error {
	return s.c.Set(day, hour, s.value)
}

// SetDailyCap replaces the cap for one weekday.
func (c *Constraints) SetDailyCap(day int, hours float64) error {
	if day < 0 || day >= DaysPerWeek {
		return fmt.Errorf("availability: day %d out of range", day)
	}
	if hours < 0 || hours > MaxDailyHour {
		return fmt.Errorf("availability: cap %.2f outside [0, 24]", hours)
	}
	c.WeeklyMaxHours[day] = hours
	return nil
}

// Cap returns the daily cap for a weekday.
func (c Constraints) Cap(day time.Weekday) float64 {
	return c.WeeklyMaxHours[day]
}
