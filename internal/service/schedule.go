package service

import (
	"fmt"
	"time"

	"github.com/handypro/marketplace-server/internal/model"
)

// DefaultServiceTime is used when nothing else provides a time of day.
const DefaultServiceTime = "09:00"

type Schedule struct {
	Date time.Time
	Time string
}

func (s Schedule) String() string {
	return fmt.Sprintf("%s at %s", s.Date.Format(time.DateOnly), s.Time)
}

// deriveSchedule picks the first available date: the offer's service date, the
// request's schedule, the request's required-by date, then today.
func deriveSchedule(offer *model.Offer, req *model.ServiceRequest, now time.Time) Schedule {
	var reqTime *string
	if req != nil {
		reqTime = req.ScheduledTime
	}

	switch {
	case offer.ServiceDate != nil:
		return Schedule{Date: dateOnly(*offer.ServiceDate), Time: firstValidTime(offer.ServiceTime, reqTime)}
	case req != nil && req.ScheduledDate != nil:
		return Schedule{Date: dateOnly(*req.ScheduledDate), Time: firstValidTime(reqTime, offer.ServiceTime)}
	case req != nil && req.RequiredAt != nil:
		return Schedule{Date: dateOnly(*req.RequiredAt), Time: firstValidTime(offer.ServiceTime)}
	default:
		return Schedule{Date: dateOnly(now), Time: firstValidTime(offer.ServiceTime)}
	}
}

func firstValidTime(candidates ...*string) string {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if t, err := time.Parse("15:04", *c); err == nil {
			return t.Format("15:04")
		}
	}
	return DefaultServiceTime
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
