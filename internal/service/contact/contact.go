package contact

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/mail"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	"github.com/Skotchmaster/stone_shop/internal/validate"
)

type ContactService struct {
	Repo     *repo.GormRepo
	Mail     mail.Sender
	ShopName string
	// Operator receives every contact message.
	Operator                string
	NewsletterRequiresLogin bool
}

type Message struct {
	Subject   string `validate:"required,max=200"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"required,email"`
	Body      string `validate:"required"`
}

func (s *ContactService) Subscribe(ctx context.Context, userID uint, email string) error {
	l := logging.FromContext(ctx).With("svc", "contact.subscribe")

	if userID == 0 && s.NewsletterRequiresLogin {
		return fmt.Errorf("%w: log in to subscribe to the newsletter", apperr.ErrAuth)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Email(email); err != nil {
		return err
	}

	exists, err := s.Repo.Subscribed(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: This email is already subscribed to the newsletter.", apperr.ErrConflict)
	}
	if err := s.Repo.Subscribe(ctx, email); err != nil {
		if apperr.IsUniqueViolation(err) {
			return fmt.Errorf("%w: This email is already subscribed to the newsletter.", apperr.ErrConflict)
		}
		l.Error("subscribe_failed", "status", 500, "error", err)
		return err
	}
	return nil
}

// Compose builds the operator email for a customer message.
func (s *ContactService) Compose(m Message) mail.Message {
	return mail.Message{
		To:      s.Operator,
		ReplyTo: m.Email,
		Subject: fmt.Sprintf("%s | %s", s.ShopName, m.Subject),
		Body: fmt.Sprintf("This is a %s customer message\n\nName: %s %s\nEmail Address: %s\n\n%s",
			s.ShopName, m.FirstName, m.LastName, m.Email, m.Body),
	}
}

func (s *ContactService) SendMessage(ctx context.Context, userID uint, m Message) error {
	l := logging.FromContext(ctx).With("svc", "contact.send")

	if userID == 0 {
		return fmt.Errorf("%w: log in to send us a message", apperr.ErrAuth)
	}
	m.Email = strings.TrimSpace(m.Email)
	if err := validate.Struct(m); err != nil {
		return err
	}

	if err := s.Mail.Send(ctx, s.Compose(m)); err != nil {
		l.Error("contact_delivery_failed", "status", 503, "error", err)
		return &apperr.DeliveryError{Message: "Sorry, your message could not be sent. Please try again later.", Err: err}
	}
	l.Info("contact_message_sent", "user_id", userID)
	return nil
}
