package contact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/mail"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	"github.com/Skotchmaster/stone_shop/internal/testutil"
)

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func newTestContact(t *testing.T) (*ContactService, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	return &ContactService{
		Repo:                    repo.New(testutil.NewDB(t)),
		Mail:                    sender,
		ShopName:                "Sticks & Stones",
		Operator:                "owner@example.com",
		NewsletterRequiresLogin: true,
	}, sender
}

func validMessage() Message {
	return Message{
		Subject:   "Order question",
		FirstName: "Ada",
		LastName:  "Stone",
		Email:     "ada@example.com",
		Body:      "Do you ship marble?",
	}
}

func TestSendMessage(t *testing.T) {
	svc, sender := newTestContact(t)

	require.NoError(t, svc.SendMessage(context.Background(), 1, validMessage()))
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, "owner@example.com", m.To)
	assert.Equal(t, "Sticks & Stones | Order question", m.Subject)
	assert.Equal(t, "This is a Sticks & Stones customer message\n\nName: Ada Stone\nEmail Address: ada@example.com\n\nDo you ship marble?", m.Body)
}

func TestSendMessage_Errors(t *testing.T) {
	svc, sender := newTestContact(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.SendMessage(ctx, 0, validMessage()), apperr.ErrAuth)

	bad := validMessage()
	bad.Email = "nope"
	require.ErrorIs(t, svc.SendMessage(ctx, 1, bad), apperr.ErrValidation)

	sender.err = errors.New("connection refused")
	err := svc.SendMessage(ctx, 1, validMessage())
	require.ErrorIs(t, err, apperr.ErrDelivery)
	assert.NotContains(t, apperr.Message(err), "refused")
}

func TestSubscribe(t *testing.T) {
	svc, _ := newTestContact(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Subscribe(ctx, 0, "a@example.com"), apperr.ErrAuth)
	require.ErrorIs(t, svc.Subscribe(ctx, 1, "not-an-email"), apperr.ErrValidation)

	require.NoError(t, svc.Subscribe(ctx, 1, "A@example.com"))
	err := svc.Subscribe(ctx, 2, "a@example.com")
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.True(t, apperr.IsValidation(err))
}

func TestSubscribe_AnonymousWhenAllowed(t *testing.T) {
	svc, _ := newTestContact(t)
	svc.NewsletterRequiresLogin = false

	require.NoError(t, svc.Subscribe(context.Background(), 0, "guest@example.com"))
}
