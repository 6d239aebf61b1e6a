package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/inkwell/internal/form"
	"github.com/sakif/inkwell/internal/mail"
)

// DefaultContactSubject is used when the sender leaves the subject empty.
const DefaultContactSubject = "New message from the blog"

// ContactService forwards contact-form messages to the blog's inbox. It
// never touches the database.
type ContactService struct {
	mailer     mail.Mailer
	sender     string
	recipients []string
	logger     *slog.Logger
}

func NewContactService(mailer mail.Mailer, sender string, recipients []string, logger *slog.Logger) *ContactService {
	return &ContactService{
		mailer:     mailer,
		sender:     sender,
		recipients: recipients,
		logger:     logger,
	}
}

// Submit validates the form and mails it. Invalid input is returned as a
// validation error for the first offending field and nothing is sent.
// Delivery failures are returned unchanged.
func (s *ContactService) Submit(ctx context.Context, f form.ContactForm) error {
	if errs := form.Validate(&f); errs != nil {
		return errs.Err()
	}

	subject := f.Subject
	if subject == "" {
		subject = DefaultContactSubject
	}

	msg := mail.Message{
		From:    s.sender,
		To:      s.recipients,
		ReplyTo: f.Email,
		Subject: subject,
		Body:    ContactBody(f.Name, f.Email, f.Message),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send contact message",
			slog.String("from", f.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("sending contact message: %w", err)
	}

	s.logger.Info("contact message sent", slog.String("from", f.Email))
	return nil
}

// ContactBody formats the plain-text body of a contact message.
func ContactBody(name, email, message string) string {
	return fmt.Sprintf("From: %s <%s>\n\n%s", name, email, message)
}
