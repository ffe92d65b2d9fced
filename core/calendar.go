package core

import (
	ics "github.com/arran4/golang-ical"
)

const calendarProductId = "-//tzevents//shared event//EN"

// EventCalendar renders event as a single VEVENT calendar. Times are written
// in UTC; the event zone travels as X-WR-TIMEZONE.
func EventCalendar(event *Event, url string) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductId)
	cal.SetXWRTimezone(event.Timezone)

	vevent := cal.AddEvent(event.ShareableId + "@tzevents")
	vevent.SetDtStampTime(event.UpdatedAt)
	vevent.SetCreatedTime(event.CreatedAt)
	vevent.SetModifiedAt(event.UpdatedAt)
	vevent.SetStartAt(event.StartTime)

	if event.EndTime != nil {
		vevent.SetEndAt(*event.EndTime)
	} else {
		vevent.SetEndAt(event.StartTime)
	}

	vevent.SetSummary(event.Title)

	if event.Description != nil && *event.Description != "" {
		vevent.SetDescription(*event.Description)
	}

	if url != "" {
		vevent.SetURL(url)
	}

	return cal.Serialize()
}
