// Package contact delivers storefront contact form messages by email.
package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/resend"
)

const maxMessageLength = 5000

type Message struct {
	Name    string
	Email   string
	Message string
}

type mailer interface {
	Send(ctx context.Context, email resend.Email) (string, error)
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

type service struct {
	cfg      config.MailConfig
	mailer   mailer
	logg     *logger.Logger
	validate *validator.Validate
}

// NewService builds the contact service. A nil mailer is built from the
// config when an API key is present; otherwise Send reports a configuration
// error.
func NewService(cfg config.MailConfig, client mailer, logg *logger.Logger) Service {
	if client == nil && strings.TrimSpace(cfg.ResendAPIKey) != "" {
		built, err := resend.NewClient(cfg.ResendAPIKey, resend.WithBaseURL(cfg.ResendBaseURL))
		if err == nil {
			client = built
		}
	}
	return &service{cfg: cfg, mailer: client, logg: logg, validate: validator.New()}
}

func (s *service) Send(ctx context.Context, msg Message) error {
	name := sanitizeHeader(msg.Name)
	email := sanitizeHeader(msg.Email)
	body := strings.TrimSpace(msg.Message)
	if name == "" || email == "" || body == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name, email, and message are required")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "please provide a valid email address")
	}
	if len(body) > maxMessageLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message must be at most %d characters", maxMessageLength))
	}
	if s.mailer == nil || !s.cfg.Configured() {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "email service is not configured")
	}

	id, err := s.mailer.Send(ctx, resend.Email{
		From:    sanitizeHeader(fmt.Sprintf("%s <%s>", name, strings.TrimSpace(s.cfg.From))),
		To:      []string{strings.TrimSpace(s.cfg.ContactTo)},
		ReplyTo: email,
		Subject: sanitizeHeader("New contact message from " + name),
		Text:    fmt.Sprintf("Name: %s\nEmail: %s\n\n%s", name, email, body),
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "contact email failed", err)
		}
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "message_id", id), "contact email sent")
	}
	return nil
}

// sanitizeHeader folds line breaks so user input cannot inject headers.
func sanitizeHeader(value string) string {
	return strings.TrimSpace(strings.Join(strings.FieldsFunc(value, func(r rune) bool {
		return r == '\r' || r == '\n'
	}), " "))
}
