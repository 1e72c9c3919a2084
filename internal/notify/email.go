package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
)

type Email struct {
	To      string
	Subject string
	HTML    string
}

type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, email Email) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	log.Info().Str("emailId", sent.Id).Str("subject", email.Subject).Msg("email sent")
	return nil
}

// LogSender drops emails. Used when no email provider is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, email Email) error {
	log.Warn().Str("subject", email.Subject).Msg("email provider not configured, dropping email")
	return nil
}
