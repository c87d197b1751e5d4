package clock

import (
	"testing"
	"time"
)

func TestDateInUsesLocationCalendar(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	// 2026-03-01 20:00 UTC is already 2026-03-02 in Seoul.
	instant := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	got := DateIn(instant, seoul)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DateIn: want=%s got=%s", want, got)
	}
}

func TestAddDaysCrossesMonth(t *testing.T) {
	got := AddDays(time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), 3)
	if got.Month() != time.February || got.Day() != 2 {
		t.Fatalf("AddDays: got=%s", got)
	}
}

func TestFixedAdvanceDays(t *testing.T) {
	f := NewFixed(time.Date(2026, 5, 10, 23, 30, 0, 0, time.UTC))
	f.AdvanceDays(1)
	if f.Today().Day() != 11 {
		t.Fatalf("Today after advance: %s", f.Today())
	}
}

func TestStartOfIsLocalMidnight(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	got := StartOf(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), seoul)
	want := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("StartOf: want=%s got=%s", want, got)
	}
	if utc := StartOf(want, nil); !utc.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartOf nil location: %s", utc)
	}
}

func TestFixedInResolvesTodayInLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	f := NewFixedIn(time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC), seoul)
	if f.Today().Day() != 2 {
		t.Fatalf("Today in Seoul: %s", f.Today())
	}
	if f.Location() != seoul {
		t.Fatalf("Location: %v", f.Location())
	}
}
