package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/handypro/marketplace-server/internal/model"
)

type CalendarRepository interface {
	UpsertForRequest(ctx context.Context, params model.UpsertCalendarEventParams) (*model.CalendarEvent, error)
}

type calendarRepo struct {
	db *sqlx.DB
}

func NewCalendarRepository(db *sqlx.DB) CalendarRepository {
	return &calendarRepo{db: db}
}

func (r *calendarRepo) UpsertForRequest(ctx context.Context, params model.UpsertCalendarEventParams) (*model.CalendarEvent, error) {
	var event model.CalendarEvent
	err := r.db.GetContext(ctx, &event, `
		INSERT INTO pro_calendar_events (pro_id, request_id, title, scheduled_date, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, 'scheduled')
		ON CONFLICT (request_id) DO UPDATE SET
			pro_id = EXCLUDED.pro_id,
			title = EXCLUDED.title,
			scheduled_date = EXCLUDED.scheduled_date,
			scheduled_time = EXCLUDED.scheduled_time,
			status = 'scheduled',
			updated_at = NOW()
		RETURNING *
	`, params.ProID, params.RequestID, params.Title, params.ScheduledDate, params.ScheduledTime)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
