package model

import (
	"time"
)

type CalendarEvent struct {
	ID            string    `db:"id" json:"id"`
	ProID         string    `db:"pro_id" json:"proId"`
	RequestID     string    `db:"request_id" json:"requestId"`
	Title         string    `db:"title" json:"title"`
	ScheduledDate time.Time `db:"scheduled_date" json:"scheduledDate"`
	ScheduledTime *string   `db:"scheduled_time" json:"scheduledTime,omitempty"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertCalendarEventParams struct {
	ProID         string
	RequestID     string
	Title         string
	ScheduledDate time.Time
	ScheduledTime string
}
