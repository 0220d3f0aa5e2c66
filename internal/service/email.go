package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email service not configured (missing RESEND_API_KEY)")

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appURL    string
	appName   string
}

// NewEmailService sends through Resend. In development, or without an API key,
// messages are only logged.
func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
	}
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	subject, body := welcomeEmailTemplate(name, s.appURL+"/onboarding", s.appName)
	return s.send(ctx, "welcome", email, subject, body)
}

func (s *EmailService) SendSubmissionReceivedEmail(ctx context.Context, email, name string) error {
	subject, body := submissionReceivedTemplate(name, s.appName)
	return s.send(ctx, "submission_received", email, subject, body)
}

func (s *EmailService) SendReportReadyEmail(ctx context.Context, email, name string) error {
	subject, body := reportReadyTemplate(name, s.appURL+"/analysis", s.appName)
	return s.send(ctx, "report_ready", email, subject, body)
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject)
		return nil
	}
	if s.client == nil {
		return ErrEmailNotConfigured
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	slog.Info("email sent", "type", kind, "to", to)
	return nil
}
