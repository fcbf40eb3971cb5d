package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Range is a half-open hour window [StartHour:00, EndHour:00).
type Range struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

func (r Range) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", r.StartHour, r.EndHour)
}

// Contains reports whether [start, end) on date lies inside r.
func (r Range) Contains(date, start, end time.Time) bool {
	lo := time.Date(date.Year(), date.Month(), date.Day(), r.StartHour, 0, 0, 0, date.Location())
	hi := time.Date(date.Year(), date.Month(), date.Day(), r.EndHour, 0, 0, 0, date.Location())
	return !start.Before(lo) && !end.After(hi)
}

// CompressToRanges returns the maximal runs of enabled hours for a weekday.
// An empty result means the whole day is forbidden.
func (c Constraints) CompressToRanges(day time.Weekday) []Range {
	slots := c.AvailableSlots[day]
	ranges := make([]Range, 0)
	start := -1
	// Hour 24 is a sentinel that closes a run reaching midnight.
	for h := 0; h <= HoursPerDay; h++ {
		active := h < HoursPerDay && slots[h]
		switch {
		case active && start == -1:
			start = h
		case !active && start != -1:
			ranges = append(ranges, Range{StartHour: start, EndHour: h})
			start = -1
		}
	}
	return ranges
}

// DayWindow is the planner-facing availability of a single calendar date.
type DayWindow struct {
	Date      time.Time
	Weekday   time.Weekday
	Ranges    []Range
	Forbidden bool
	MaxHours  float64
}

// DateString is the date as YYYY-MM-DD.
func (w DayWindow) DateString() string {
	return w.Date.Format("2006-01-02")
}

// RangeStrings renders the ranges as "HH:00-HH:00".
func (w DayWindow) RangeStrings() []string {
	out := make([]string, len(w.Ranges))
	for i, r := range w.Ranges {
		out[i] = r.String()
	}
	return out
}

// String renders the window the way the planner prompt lists it.
func (w DayWindow) String() string {
	if w.Forbidden {
		return fmt.Sprintf("%s (%s): forbidden", w.DateString(), w.Weekday)
	}
	return fmt.Sprintf("%s (%s): [%s]", w.DateString(), w.Weekday, strings.Join(w.RangeStrings(), ", "))
}

// Allows reports whether [start, end) fits entirely inside one of the
// window's ranges.
func (w DayWindow) Allows(start, end time.Time) bool {
	if w.Forbidden {
		return false
	}
	for _, r := range w.Ranges {
		if r.Contains(w.Date, start, end) {
			return true
		}
	}
	return false
}

// ExpandToDates resolves the template for horizonDays consecutive dates
// starting at ref's calendar date, without gaps.
func (c Constraints) ExpandToDates(ref time.Time, horizonDays int) []DayWindow {
	if horizonDays < 0 {
		horizonDays = 0
	}
	first := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	out := make([]DayWindow, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		d := first.AddDate(0, 0, i)
		ranges := c.CompressToRanges(d.Weekday())
		out = append(out, DayWindow{
			Date:      d,
			Weekday:   d.Weekday(),
			Ranges:    ranges,
			Forbidden: len(ranges) == 0,
			MaxHours:  c.WeeklyMaxHours[d.Weekday()],
		})
	}
	return out
}

// Allows reports whether [start, end) lies inside an allowed range of
// start's date.
func (c Constraints) Allows(start, end time.Time) bool {
	w := c.ExpandToDates(start, 1)
	return len(w) == 1 && w[0].Allows(start, end)
}

// ParseRange reads "HH:00-HH:00" (minutes must be zero). "24:00" is accepted
// as an end.
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("range %q: want HH:00-HH:00", s)
	}
	lo, err := parseHour(from)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	hi, err := parseHour(to)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if lo >= hi || lo >= HoursPerDay {
		return Range{}, fmt.Errorf("range %q: start must be before end", s)
	}
	return Range{StartHour: lo, EndHour: hi}, nil
}

func parseHour(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	h, herr := strconv.Atoi(hh)
	if !ok || herr != nil || mm != "00" || h < 0 || h > HoursPerDay {
		return 0, fmt.Errorf("bad hour %q", s)
	}
	return h, nil
}

// FromRanges builds constraints with only the given ranges enabled. Days
// missing from caps keep a zero cap.
func FromRanges(hours map[time.Weekday][]Range, caps map[time.Weekday]float64) (Constraints, error) {
	var c Constraints
	for day, rs := range hours {
		for _, r := range rs {
			for h := r.StartHour; h < r.EndHour; h++ {
				if err := c.Set(int(day), h, true); err != nil {
					return Constraints{}, err
				}
			}
		}
	}
	for day, v := range caps {
		if err := c.SetDailyCap(int(day), v); err != nil {
			return Constraints{}, err
		}
	}
	return c, nil
}
