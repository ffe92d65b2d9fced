package core

import "time"

// Event start and end are absolute instants; Timezone is the zone the event
// is expressed in when shown to people.
type Event struct {
	Id          string     `json:"id"`
	ShareableId string     `json:"shareableId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Timezone    string     `json:"timezone"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserId      *string    `json:"userId"`
	User        *UserRef   `json:"user"`
}

type UserRef struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// CreateEventRequest is the accepted body of POST /api/events. Times are
// RFC 3339 text or naive wall clock text resolved in Timezone.
type CreateEventRequest struct {
	Title       string  `json:"title"       validate:"required"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	StartTime   string  `json:"startTime"   validate:"required"`
	EndTime     *string `json:"endTime"`
	Timezone    string  `json:"timezone"    validate:"omitempty,max=100,iana_timezone"`
	ShareableId string  `json:"shareableId" validate:"omitempty,shareable_id"`
	UserId      *string `json:"userId"      validate:"omitempty,uuid"`
}

type ConvertResponse struct {
	InputTime      string `json:"inputTime"`
	InputTimezone  string `json:"inputTimezone"`
	OutputTime     string `json:"outputTime"`
	OutputTimezone string `json:"outputTimezone"`
	UtcTime        string `json:"utcTime"`
}
