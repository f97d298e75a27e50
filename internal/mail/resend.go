package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

type emailService interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend delivers through the Resend HTTP API.
type Resend struct {
	From   string
	emails emailService
}

func NewResend(apiKey, from string) *Resend {
	client := resend.NewClient(apiKey)
	return &Resend{From: from, emails: client.Emails}
}

func (r *Resend) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    r.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
		ReplyTo: msg.ReplyTo,
	}
	if _, err := r.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
