package gcal

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

func TestCalendarLabelStripsAddressDomain(t *testing.T) {
	cases := []struct {
		summary, id, want string
	}{
		{"Team", "team@group.calendar.google.com", "Team"},
		{"", "alex@example.com", "alex"},
		{"alex@example.com", "", "alex"},
	}
	for _, c := range cases {
		got := calendarLabel(&calendar.CalendarListEntry{Summary: c.summary, Id: c.id})
		if got != c.want {
			t.Errorf("calendarLabel(%q,%q) = %q, want %q", c.summary, c.id, got, c.want)
		}
	}
}

func TestEventTimeLabel(t *testing.T) {
	allDay := &calendar.Event{Start: &calendar.EventDateTime{Date: "2026-02-18"}}
	if got := eventTimeLabel(allDay); got != allDayMarker {
		t.Fatalf("all-day label = %q", got)
	}

	start := time.Date(2026, 2, 18, 9, 0, 0, 0, time.Local).Format(time.RFC3339)
	end := time.Date(2026, 2, 18, 9, 30, 0, 0, time.Local).Format(time.RFC3339)
	timed := &calendar.Event{
		Start: &calendar.EventDateTime{DateTime: start},
		End:   &calendar.EventDateTime{DateTime: end},
	}
	if got := eventTimeLabel(timed); got != "09:00-09:30" {
		t.Fatalf("timed label = %q", got)
	}
}

func TestToRowFallsBackToUntitled(t *testing.T) {
	cal := &calendar.CalendarListEntry{Summary: "Team"}
	row := toRow(cal, &calendar.Event{Summary: "  ", Start: &calendar.EventDateTime{Date: "2026-02-18"}})
	if row.Subject != untitledSubject {
		t.Fatalf("subject = %q", row.Subject)
	}
	if row.CalendarName != "Team" || row.DateTime != allDayMarker {
		t.Fatalf("row = %+v", row)
	}
}
