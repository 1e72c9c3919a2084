package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventOfferCreated      EventType = "offer_created"
	EventOfferAccepted     EventType = "offer_accepted"
	EventOfferAcceptDenied EventType = "offer_accept_denied"
	EventOfferCancelled    EventType = "offer_cancelled"
	EventOfferPaid         EventType = "offer_paid"
	EventDisputeOpened     EventType = "dispute_opened"
	EventDisputeResolved   EventType = "dispute_resolved"
	EventWebhookInvalid    EventType = "webhook_signature_invalid"
	EventCronAuthFailure   EventType = "cron_auth_failure"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
	EventAuthFailure       EventType = "auth_failure"
)

type Event struct {
	Type      EventType
	UserID    string
	OfferID   string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// Log writes an audit event. ctx is reserved for request scoped fields.
func Log(_ context.Context, event Event) {
	logger := log.With().
		Str("audit", "marketplace").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.OfferID != "" {
		logger = logger.With().Str("offer_id", event.OfferID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills client details. RemoteAddr is already resolved by the RealIP middleware.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
