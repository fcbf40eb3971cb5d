package grid

import (
	"math"
	"testing"
	"time"

	"planningsprite/internal/model"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestLayout(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name       string
		start, end time.Time
		wantOffset float64
		wantHeight float64
	}{
		{"ninety minutes at 10:00", at(2024, 1, 1, 10, 0), at(2024, 1, 1, 11, 30), 640, 96},
		{"half past", at(2024, 1, 1, 9, 30), at(2024, 1, 1, 10, 30), 608, 64},
		{"short event floored", at(2024, 1, 1, 0, 0), at(2024, 1, 1, 0, 5), 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := Layout(model.CalendarEvent{Start: tt.start, End: tt.end}, cfg)
			if box.OffsetFromTop != tt.wantOffset {
				t.Errorf("offset = %v, want %v", box.OffsetFromTop, tt.wantOffset)
			}
			if box.Height != tt.wantHeight {
				t.Errorf("height = %v, want %v", box.Height, tt.wantHeight)
			}
		})
	}
}

func TestSnapMinutes(t *testing.T) {
	tests := []struct {
		in   float64
		snap int
		want int
	}{
		{0, 5, 0},
		{7.4, 5, 5},
		{7.5, 5, 10}, // tie rounds up
		{12.49, 5, 10},
		{-30, 5, 0},
		{1440, 5, 1435},
		{1500, 15, 1425},
		{90, 15, 90},
		{1440, 7, 1435}, // last slot stays on the grid
		{2000, 7, 1435},
		{1438, 5, 1435},
		{1e22, 5, 1435},
		{1e300, 15, 1425},
		{math.Inf(1), 5, 1435},
		{math.Inf(-1), 5, 0},
		{math.NaN(), 5, 0},
	}
	for _, tt := range tests {
		if got := SnapMinutes(tt.in, tt.snap); got != tt.want {
			t.Errorf("SnapMinutes(%v, %d) = %d, want %d", tt.in, tt.snap, got, tt.want)
		}
	}
}

func TestSnapMinutesIdempotent(t *testing.T) {
	for _, snap := range []int{1, 5, 7, 15, 30} {
		for m := 0.0; m < 1440; m += 3.7 {
			once := SnapMinutes(m, snap)
			twice := SnapMinutes(float64(once), snap)
			if once != twice {
				t.Fatalf("snap %d: %v -> %d -> %d", snap, m, once, twice)
			}
		}
	}
}

func TestResolveDrop(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	day := time.Date(2024, 3, 5, 17, 45, 0, 0, loc)

	// 10:03 at 64px/hour rounds to 10:05.
	got := ResolveDrop(day, 64*10+3.2, 64, 5)
	want := time.Date(2024, 3, 5, 10, 5, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("ResolveDrop = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}

	// Dropping below the column stays on the same date.
	end := ResolveDrop(day, 64*25, 64, 5)
	if end.Day() != 5 || end.Hour() != 23 || end.Minute() != 55 {
		t.Errorf("clamped drop = %v", end)
	}

	far := ResolveDrop(day, 1e22, 64, 5)
	if far.Day() != 5 || far.Hour() != 23 || far.Minute() != 55 {
		t.Errorf("huge offset drop = %v", far)
	}
}

func TestReschedulePreservesDuration(t *testing.T) {
	cfg := DefaultConfig()
	ev := model.CalendarEvent{Start: at(2024, 1, 1, 10, 0), End: at(2024, 1, 1, 11, 30)}

	start, end := Reschedule(ev, at(2024, 1, 3, 0, 0), 64*14.5, cfg)
	if !start.Equal(at(2024, 1, 3, 14, 30)) {
		t.Errorf("start = %v", start)
	}
	if end.Sub(start) != 90*time.Minute {
		t.Errorf("duration = %v, want 90m", end.Sub(start))
	}
}

func TestMoveLayoutRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	ev := model.CalendarEvent{Start: at(2024, 1, 1, 8, 0), End: at(2024, 1, 1, 9, 0)}

	for offset := 0.0; offset < 64*23; offset += 17.3 {
		start, end := Reschedule(ev, at(2024, 1, 2, 0, 0), offset, cfg)
		moved := model.CalendarEvent{Start: start, End: end}
		box := Layout(moved, cfg)

		back := ResolveDrop(at(2024, 1, 2, 0, 0), box.OffsetFromTop, cfg.PixelsPerHour, cfg.SnapMinutes)
		if diff := back.Sub(start); diff < -5*time.Minute || diff > 5*time.Minute {
			t.Fatalf("offset %v: start %v, round trip %v", offset, start, back)
		}
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		ref  time.Time
		want time.Time
	}{
		{at(2024, 1, 3, 15, 0), at(2024, 1, 1, 0, 0)},  // Wednesday
		{at(2024, 1, 1, 0, 0), at(2024, 1, 1, 0, 0)},   // Monday
		{at(2024, 1, 7, 23, 59), at(2024, 1, 1, 0, 0)}, // Sunday belongs to the previous Monday
	}
	for _, tt := range tests {
		if got := WeekStart(tt.ref); !got.Equal(tt.want) {
			t.Errorf("WeekStart(%v) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestShiftWeek(t *testing.T) {
	ref := at(2024, 1, 3, 15, 0)
	next := ShiftWeek(ref, 1)
	if !next.Equal(at(2024, 1, 10, 15, 0)) {
		t.Errorf("next = %v", next)
	}
	if next.Weekday() != ref.Weekday() {
		t.Errorf("weekday changed: %v", next.Weekday())
	}
	if prev := ShiftWeek(ref, -1); !prev.Equal(at(2023, 12, 27, 15, 0)) {
		t.Errorf("prev = %v", prev)
	}
}

func TestBucketByDay(t *testing.T) {
	cfg := DefaultConfig()
	events := []model.CalendarEvent{
		{ID: "mon", Start: at(2024, 1, 1, 9, 0), End: at(2024, 1, 1, 10, 0)},
		{ID: "late", Start: at(2024, 1, 2, 23, 0), End: at(2024, 1, 3, 1, 0)},
		{ID: "outside", Start: at(2024, 1, 9, 9, 0), End: at(2024, 1, 9, 10, 0)},
	}

	cols := BucketByDay(events, at(2024, 1, 4, 12, 0), cfg)
	if len(cols) != 7 {
		t.Fatalf("got %d columns", len(cols))
	}
	if len(cols[0].Events) != 1 || cols[0].Events[0].ID != "mon" {
		t.Errorf("monday = %+v", cols[0].Events)
	}
	if len(cols[1].Events) != 1 || cols[1].Events[0].ID != "late" {
		t.Errorf("tuesday = %+v", cols[1].Events)
	}
	if len(cols[2].Events) != 0 {
		t.Errorf("midnight-spanning event should stay on its start day, wednesday = %+v", cols[2].Events)
	}
	total := 0
	for _, c := range cols {
		total += len(c.Events)
	}
	if total != 2 {
		t.Errorf("total placed = %d, want 2", total)
	}
}
