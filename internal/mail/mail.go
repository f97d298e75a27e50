package mail

import "context"

// Message is a plain-text email to a single recipient.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
