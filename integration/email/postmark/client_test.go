package postmark_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pm "github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/integration/email/postmark"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) SendEmail(ctx context.Context, email pm.Email) (pm.EmailResponse, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(pm.EmailResponse), args.Error(1)
}

func validConfig() postmark.Config {
	return postmark.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
		AlertEmail:           "security@example.com",
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*postmark.Config)
	}{
		{name: "missing server token", modify: func(c *postmark.Config) { c.PostmarkServerToken = "" }},
		{name: "missing account token", modify: func(c *postmark.Config) { c.PostmarkAccountToken = "" }},
		{name: "invalid sender", modify: func(c *postmark.Config) { c.SenderEmail = "nope" }},
		{name: "invalid support", modify: func(c *postmark.Config) { c.SupportEmail = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(&cfg)
			_, err := postmark.New(cfg)
			require.ErrorIs(t, err, postmark.ErrInvalidConfig)
		})
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		c, err := postmark.New(validConfig())
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("must panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { postmark.MustNewClient(postmark.Config{}) })
	})
}

func TestClientSendEmail(t *testing.T) {
	t.Parallel()

	params := postmark.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Hello",
		Tag:      "test",
		BodyHTML: "<p>hi</p>",
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		api := &mockAPI{}
		api.On("SendEmail", mock.Anything, mock.MatchedBy(func(e pm.Email) bool {
			return e.From == "noreply@example.com" &&
				e.ReplyTo == "support@example.com" &&
				e.To == "user@example.com" &&
				e.Subject == "Hello" &&
				e.HTMLBody == "<p>hi</p>"
		})).Return(pm.EmailResponse{}, nil).Once()

		c := postmark.MustNewClient(validConfig(), postmark.WithAPI(api))
		require.NoError(t, c.SendEmail(context.Background(), params))
		api.AssertExpectations(t)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		api := &mockAPI{}
		api.On("SendEmail", mock.Anything, mock.Anything).
			Return(pm.EmailResponse{}, errors.New("dial tcp: refused")).Once()

		c := postmark.MustNewClient(validConfig(), postmark.WithAPI(api))
		err := c.SendEmail(context.Background(), params)
		require.ErrorIs(t, err, postmark.ErrFailedToSendEmail)
	})

	t.Run("api error code", func(t *testing.T) {
		t.Parallel()
		api := &mockAPI{}
		api.On("SendEmail", mock.Anything, mock.Anything).
			Return(pm.EmailResponse{ErrorCode: 300, Message: "Invalid email request"}, nil).Once()

		c := postmark.MustNewClient(validConfig(), postmark.WithAPI(api))
		err := c.SendEmail(context.Background(), params)
		require.ErrorIs(t, err, postmark.ErrFailedToSendEmail)
		assert.Contains(t, err.Error(), "300")
	})

	t.Run("invalid params skip api", func(t *testing.T) {
		t.Parallel()
		api := &mockAPI{}
		c := postmark.MustNewClient(validConfig(), postmark.WithAPI(api))
		err := c.SendEmail(context.Background(), postmark.SendEmailParams{SendTo: "x"})
		require.ErrorIs(t, err, postmark.ErrInvalidParams)
		api.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})
}

type recordingSender struct {
	sent chan postmark.SendEmailParams
	err  error
}

func (r *recordingSender) SendEmail(_ context.Context, p postmark.SendEmailParams) error {
	r.sent <- p
	return r.err
}

func TestAlerter(t *testing.T) {
	t.Parallel()

	t.Run("invalid recipient", func(t *testing.T) {
		t.Parallel()
		_, err := postmark.NewAlerter(&recordingSender{}, "bad", nil)
		require.ErrorIs(t, err, postmark.ErrInvalidConfig)
	})

	t.Run("alerts only on high risk", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sender := &recordingSender{sent: make(chan postmark.SendEmailParams, 4)}
		alerter, err := postmark.NewAlerter(sender, "security@example.com", nil)
		require.NoError(t, err)

		b := broadcast.NewMemoryBroadcaster[session.Notice](8)
		defer func() { _ = b.Close() }()
		sub := b.Subscribe(ctx)

		done := make(chan error, 1)
		go func() { done <- alerter.Run(ctx, sub) }()

		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, b.Broadcast(ctx, broadcast.Message[session.Notice]{Data: session.Notice{
			Kind: session.NoticeSecurity, SessionRef: "0123456789ab", Username: "alice", Timestamp: now,
		}}))
		require.NoError(t, b.Broadcast(ctx, broadcast.Message[session.Notice]{Data: session.Notice{
			Kind:       session.NoticeHighRisk,
			SessionRef: "0123456789ab",
			Username:   "alice",
			RiskScore:  80,
			IPAddress:  "203.0.113.9",
			Timestamp:  now,
			Events: []security.Event{{
				Type: security.EventIPChange, Details: "IP changed from 10.0.0.5 to 203.0.113.9",
			}},
		}}))

		select {
		case p := <-sender.sent:
			assert.Equal(t, "security@example.com", p.SendTo)
			assert.Equal(t, "session-high-risk", p.Tag)
			assert.Contains(t, p.Subject, "alice")
			assert.Contains(t, p.Subject, "80")
			assert.Contains(t, p.BodyHTML, "203.0.113.9")
			assert.Contains(t, p.BodyHTML, "IP changed from 10.0.0.5 to 203.0.113.9")
			assert.Contains(t, p.BodyHTML, "0123456789ab")
		case <-time.After(2 * time.Second):
			t.Fatal("alert was not sent")
		}

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
		}
		assert.Empty(t, sender.sent)
	})

	t.Run("send failure keeps running", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sender := &recordingSender{sent: make(chan postmark.SendEmailParams, 4), err: errors.New("boom")}
		alerter, err := postmark.NewAlerter(sender, "security@example.com", nil)
		require.NoError(t, err)

		b := broadcast.NewMemoryBroadcaster[session.Notice](8)
		sub := b.Subscribe(ctx)
		done := make(chan error, 1)
		go func() { done <- alerter.Run(ctx, sub) }()

		for range 2 {
			require.NoError(t, b.Broadcast(ctx, broadcast.Message[session.Notice]{Data: session.Notice{
				Kind: session.NoticeHighRisk, SessionRef: "s2", Username: "bob", Timestamp: time.Now(),
			}}))
			select {
			case <-sender.sent:
			case <-time.After(2 * time.Second):
				t.Fatal("alert was not attempted")
			}
		}

		require.NoError(t, b.Close())
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after broadcaster closed")
		}
	})
}
