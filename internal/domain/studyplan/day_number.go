package studyplan

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// PlanLength is the number of PlanDay rows in every plan version.
	PlanLength = 30
	// ReviewWeeks is the number of leading 7-day blocks that close with two review days.
	ReviewWeeks = 3
	// AdaptiveFirstDay is the first comprehensive-review day.
	AdaptiveFirstDay = ReviewWeeks*7 + 1
	// ResequenceTriggerDay is the day whose terminal outcome fills the adaptive days.
	ResequenceTriggerDay = ReviewWeeks * 7
	// AdaptiveDays is the count of comprehensive-review days.
	AdaptiveDays = PlanLength - ResequenceTriggerDay
)

// DayLabel renders the external "DayN" form.
func DayLabel(day int) string { return fmt.Sprintf("Day%d", day) }

// ParseDayNumber accepts "Day7", "day7" or "7" and validates the range.
func ParseDayNumber(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= 3 && strings.EqualFold(s[:3], "day") {
		s = s[3:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid day number %q", raw)
	}
	if n < 1 || n > PlanLength {
		return 0, fmt.Errorf("day number %d out of range 1..%d", n, PlanLength)
	}
	return n, nil
}

// IsReviewDay reports whether day is a weekend review slot (6,7,13,14,20,21).
func IsReviewDay(day int) bool {
	if day < 1 || day > ResequenceTriggerDay {
		return false
	}
	m := day % 7
	return m == 6 || m == 0
}

// IsAdaptiveDay reports whether day belongs to the comprehensive-review block.
func IsAdaptiveDay(day int) bool {
	return day >= AdaptiveFirstDay && day <= PlanLength
}

// IsWeekBoundary reports whether completing day fills the following two review days.
func IsWeekBoundary(day int) bool {
	return day >= 1 && day%7 == 5 && day <= ResequenceTriggerDay-2
}

// WeekStart returns the first day of the 7-day block containing day.
func WeekStart(day int) int {
	return ((day-1)/7)*7 + 1
}
