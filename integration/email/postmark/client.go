package postmark

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"
)

// Config holds Postmark credentials and addresses.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	AlertEmail           string `env:"POSTMARK_ALERT_EMAIL"` // recipient of high risk alerts
}

// Enabled reports whether a server token is configured.
func (c Config) Enabled() bool {
	return c.PostmarkServerToken != ""
}

// SendEmailParams describes one transactional e-mail.
type SendEmailParams struct {
	SendTo   string
	Subject  string
	Tag      string
	BodyHTML string
}

// Validate checks the required fields.
func (p SendEmailParams) Validate() error {
	switch {
	case !isValidEmail(p.SendTo):
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	case p.Subject == "":
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	case p.BodyHTML == "":
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}

// EmailSender sends transactional e-mail.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// API is the part of the Postmark SDK client used here.
type API interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type Client struct {
	client API
	config Config
}

var _ EmailSender = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPI replaces the Postmark SDK client. Used by tests.
func WithAPI(api API) ClientOption {
	return func(c *Client) {
		c.client = api
	}
}

// New creates a Postmark-backed email sender. Both tokens and both addresses are required.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	c := &Client{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustNewClient creates a Postmark client that panics on invalid config.
func MustNewClient(cfg Config, opts ...ClientOption) *Client {
	client, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail implements EmailSender using Postmark's transactional API.
// Reply-To is set to the support address.
func (c *Client) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: false,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// emailRegex is a simple regex for validating email addresses.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
