package model

import (
	"time"
)

// ServiceRequest is a client's posted job that professionals are matched against.
type ServiceRequest struct {
	ID             string        `db:"id" json:"id"`
	CreatedBy      string        `db:"created_by" json:"createdBy"`
	Title          string        `db:"title" json:"title"`
	Status         RequestStatus `db:"status" json:"status"`
	ProfessionalID *string       `db:"professional_id" json:"professionalId,omitempty"`
	IsExplorable   bool          `db:"is_explorable" json:"isExplorable"`
	RequiredAt     *time.Time    `db:"required_at" json:"requiredAt,omitempty"`
	ScheduledDate  *time.Time    `db:"scheduled_date" json:"scheduledDate,omitempty"`
	ScheduledTime  *string       `db:"scheduled_time" json:"scheduledTime,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}
