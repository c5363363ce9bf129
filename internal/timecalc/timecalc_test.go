package timecalc

import "testing"

func TestParseTimeToMinutes(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantOK  bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"9:30", 0, false},
		{"09-30", 0, false},
		{"", 0, false},
		{"ab:cd", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseTimeToMinutes(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ParseTimeToMinutes(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestFormatMinutesToTime(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{570, "09:30"},
		{1439, "23:59"},
		{1440, "00:00"},
		{1470, "00:30"},
		{-30, "23:30"},
	}
	for _, tc := range cases {
		if got := FormatMinutesToTime(tc.in); got != tc.want {
			t.Errorf("FormatMinutesToTime(%d) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestCalculateEndTimeSkipsBreak(t *testing.T) {
	got, ok := CalculateEndTime("09:30", 405)
	if !ok || got != "17:15" {
		t.Fatalf("CalculateEndTime(09:30, 405) = %q, %v; want 17:15", got, ok)
	}
}

func TestCalculateEndTimeWrapsMidnight(t *testing.T) {
	got, ok := CalculateEndTime("23:30", 60)
	if !ok || got != "00:30" {
		t.Fatalf("CalculateEndTime(23:30, 60) = %q, %v; want 00:30", got, ok)
	}
}

func TestCalculateEndTimeInvalid(t *testing.T) {
	if _, ok := CalculateEndTime("xx:yy", 60); ok {
		t.Fatal("expected not ok for unparsable start")
	}
	if _, ok := CalculateEndTime("09:30", 0); ok {
		t.Fatal("expected not ok for zero minutes")
	}
	if _, ok := CalculateEndTime("09:30", -5); ok {
		t.Fatal("expected not ok for negative minutes")
	}
}

func TestCalculateDurationMinutes(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"09:30", "17:15", 405},
		{"23:30", "00:30", 60},
		{"12:00", "13:00", 0},
		{"11:30", "13:30", 60},
		{"09:00", "09:00", 0},
		{"bad", "17:00", 0},
		{"09:00", "bad", 0},
	}
	for _, tc := range cases {
		if got := CalculateDurationMinutes(tc.start, tc.end); got != tc.want {
			t.Errorf("CalculateDurationMinutes(%q, %q) = %d; want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestCalculateDurationMinutesCrossingMidnightIntoBreak(t *testing.T) {
	// 23:00 -> 14:00 next day spans the next day's break window.
	if got := CalculateDurationMinutes("23:00", "14:00"); got != 14*60 {
		t.Fatalf("got %d; want %d", got, 14*60)
	}
}

func TestCalculateActualDurationMinutes(t *testing.T) {
	if got := CalculateActualDurationMinutes("09:30", "17:15", 30); got != 375 {
		t.Fatalf("got %d; want 375", got)
	}
	if got := CalculateActualDurationMinutes("09:30", "17:15", 1000); got != 0 {
		t.Fatalf("suspend overflow: got %d; want 0", got)
	}
	if got := CalculateActualDurationMinutes("09:30", "17:15", -15); got != 405 {
		t.Fatalf("negative suspend: got %d; want 405", got)
	}
}

func TestDurationEndTimeRoundTrip(t *testing.T) {
	starts := []string{"00:00", "08:15", "09:30", "11:59", "12:30", "13:00", "23:30"}
	for _, start := range starts {
		for _, minutes := range []int{1, 30, 60, 405, 720} {
			end, ok := CalculateEndTime(start, minutes)
			if !ok {
				t.Fatalf("CalculateEndTime(%q, %d) not ok", start, minutes)
			}
			if got := CalculateDurationMinutes(start, end); got != minutes {
				t.Errorf("round trip %q + %d -> %q -> %d", start, minutes, end, got)
			}
		}
	}
}

func TestCalculateElapsedMinutes(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		want       int
	}{
		{"plain hour", "2026-02-18T09:00:00Z", "2026-02-18T10:00:00Z", 60},
		{"spans break", "2026-02-18T11:30:00Z", "2026-02-18T13:30:00Z", 60},
		{"inside break", "2026-02-18T12:10:00Z", "2026-02-18T12:50:00Z", 0},
		{"floors seconds", "2026-02-18T09:00:00Z", "2026-02-18T09:01:30Z", 1},
		{"end before start", "2026-02-18T10:00:00Z", "2026-02-18T09:00:00Z", 0},
		{"equal", "2026-02-18T09:00:00Z", "2026-02-18T09:00:00Z", 0},
		{"invalid start", "garbage", "2026-02-18T09:00:00Z", 0},
		{"invalid end", "2026-02-18T09:00:00Z", "garbage", 0},
		{"multi day", "2026-02-18T11:00:00Z", "2026-02-20T14:00:00Z", 51*60 - 3*60},
	}
	for _, tc := range cases {
		if got := CalculateElapsedMinutes(tc.start, tc.end); got != tc.want {
			t.Errorf("%s: CalculateElapsedMinutes = %d; want %d", tc.name, got, tc.want)
		}
	}
}

func TestPresentationHelpers(t *testing.T) {
	if got := FormatMinutesAsHourMinute(405); got != "6h45m" {
		t.Errorf("hour-minute: got %q", got)
	}
	if got := FormatMinutesAsHourMinute(-10); got != "0h00m" {
		t.Errorf("hour-minute negative: got %q", got)
	}
	if got := FormatMinutesAsDecimalHoursValue(405); got != "6.75" {
		t.Errorf("decimal value: got %q", got)
	}
	if got := FormatMinutesAsDecimalHoursValue(100); got != "1.67" {
		t.Errorf("decimal rounding: got %q", got)
	}
	if got := FormatMinutesAsDecimalHours(90); got != "1.50h" {
		t.Errorf("decimal hours: got %q", got)
	}
}
