// Package timecalc provides minute-precision work-time arithmetic that
// excludes the fixed daily break window from every duration it computes.
package timecalc

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// DayMinutes is the length of a calendar day in minutes.
	DayMinutes = 24 * 60

	// BreakStartMinutes and BreakEndMinutes bound the daily non-working
	// window [12:00, 13:00).
	BreakStartMinutes = 12 * 60
	BreakEndMinutes   = 13 * 60
)

// ParseTimeToMinutes parses a strict HH:mm clock time (00-23:00-59) into
// minutes since midnight. ok is false for any other input.
func ParseTimeToMinutes(text string) (minutes int, ok bool) {
	if len(text) != 5 || text[2] != ':' {
		return 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if text[i] < '0' || text[i] > '9' {
			return 0, false
		}
	}
	hour := int(text[0]-'0')*10 + int(text[1]-'0')
	minute := int(text[3]-'0')*10 + int(text[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatMinutesToTime renders minutes-since-midnight as HH:mm, normalizing
// into [0, 1440) with a negative-safe floored modulo.
func FormatMinutesToTime(minutes int) string {
	normalized := ((minutes % DayMinutes) + DayMinutes) % DayMinutes
	return fmt.Sprintf("%02d:%02d", normalized/60, normalized%60)
}

// CalculateEndTime walks forward from start consuming work minutes while
// skipping the break window, wrapping past midnight as needed. ok is false
// when start is unparsable or minutes is not positive.
func CalculateEndTime(start string, minutes int) (string, bool) {
	startMinutes, parsed := ParseTimeToMinutes(start)
	if !parsed || minutes <= 0 {
		return "", false
	}

	cursor := startMinutes
	remaining := minutes
	for remaining > 0 {
		minuteInDay := ((cursor % DayMinutes) + DayMinutes) % DayMinutes
		if minuteInDay >= BreakStartMinutes && minuteInDay < BreakEndMinutes {
			cursor += BreakEndMinutes - minuteInDay
			continue
		}
		cursor++
		remaining--
	}
	return FormatMinutesToTime(cursor), true
}

// CalculateDurationMinutes returns the break-exclusive span between two
// clock times, treating end < start as crossing midnight. Unparsable input
// yields 0.
func CalculateDurationMinutes(start, end string) int {
	startMinutes, okStart := ParseTimeToMinutes(start)
	endMinutes, okEnd := ParseTimeToMinutes(end)
	if !okStart || !okEnd {
		return 0
	}

	normalizedEnd := normalizeRangeEnd(startMinutes, endMinutes)
	raw := normalizedEnd - startMinutes
	overlap := breakOverlapForDayRange(startMinutes, endMinutes)
	return max(0, raw-overlap)
}

// CalculateActualDurationMinutes subtracts recorded suspend minutes from the
// break-exclusive duration, clamped to zero.
func CalculateActualDurationMinutes(start, end string, suspendMinutes int) int {
	base := CalculateDurationMinutes(start, end)
	return max(0, base-max(0, suspendMinutes))
}

// CalculateElapsedMinutes returns the whole minutes elapsed between two ISO
// timestamps, excluding the break window of every calendar day the interval
// touches. Invalid input or end <= start yields 0.
func CalculateElapsedMinutes(startIso, endIso string) int {
	start, err := parseISO(startIso)
	if err != nil {
		return 0
	}
	end, err := parseISO(endIso)
	if err != nil {
		return 0
	}
	if !end.After(start) {
		return 0
	}

	raw := end.Sub(start)
	breaks := breakOverlap(start, end)
	return max(0, int((raw-breaks)/time.Minute))
}

// FormatMinutesAsHourMinute renders minutes as "6h45m". Negative input is
// treated as zero.
func FormatMinutesAsHourMinute(minutes int) string {
	normalized := max(0, minutes)
	return fmt.Sprintf("%dh%02dm", normalized/60, normalized%60)
}

// FormatMinutesAsDecimalHoursValue renders minutes as decimal hours rounded
// to two places, e.g. 405 -> "6.75".
func FormatMinutesAsDecimalHoursValue(minutes int) string {
	normalized := max(0, minutes)
	value := math.Round(float64(normalized)/60*100) / 100
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// FormatMinutesAsDecimalHours renders minutes as "6.75h".
func FormatMinutesAsDecimalHours(minutes int) string {
	return FormatMinutesAsDecimalHoursValue(minutes) + "h"
}

func parseISO(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Parse(time.RFC3339, value)
	}
	return t, nil
}

func normalizeRangeEnd(start, end int) int {
	if end < start {
		return end + DayMinutes
	}
	return end
}

func overlapMinutes(startA, endA, startB, endB int) int {
	start := max(startA, startB)
	end := min(endA, endB)
	return max(0, end-start)
}

// breakOverlapForDayRange measures how much of a same-day (possibly
// midnight-crossing) clock range falls inside the break window, checking the
// next day's window too when the range wraps.
func breakOverlapForDayRange(start, end int) int {
	normalizedEnd := normalizeRangeEnd(start, end)
	overlap := overlapMinutes(start, normalizedEnd, BreakStartMinutes, BreakEndMinutes)
	if normalizedEnd >= DayMinutes {
		overlap += overlapMinutes(start, normalizedEnd,
			DayMinutes+BreakStartMinutes, DayMinutes+BreakEndMinutes)
	}
	return overlap
}

// breakOverlap sums the break-window overlap of [start, end) across every
// calendar day the interval touches, in start's location.
func breakOverlap(start, end time.Time) time.Duration {
	if !end.After(start) {
		return 0
	}

	loc := start.Location()
	cursor := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	endInLoc := end.In(loc)
	lastDay := time.Date(endInLoc.Year(), endInLoc.Month(), endInLoc.Day(), 0, 0, 0, 0, loc)

	var total time.Duration
	for !cursor.After(lastDay) {
		breakStart := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 12, 0, 0, 0, loc)
		breakEnd := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 13, 0, 0, 0, loc)

		overlapStart := start
		if breakStart.After(overlapStart) {
			overlapStart = breakStart
		}
		overlapEnd := end
		if breakEnd.Before(overlapEnd) {
			overlapEnd = breakEnd
		}
		if overlapEnd.After(overlapStart) {
			total += overlapEnd.Sub(overlapStart)
		}

		cursor = cursor.AddDate(0, 0, 1)
	}
	return total
}
