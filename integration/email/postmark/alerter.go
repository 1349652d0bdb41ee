package postmark

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
)

var alertTemplate = template.Must(template.New("alert").Parse(`<h2>High risk session activity</h2>
<table>
<tr><td>User</td><td>{{.Username}}</td></tr>
<tr><td>Session</td><td>{{.SessionRef}}</td></tr>
<tr><td>Risk score</td><td>{{.RiskScore}}</td></tr>
<tr><td>IP address</td><td>{{.IPAddress}}</td></tr>
<tr><td>Time</td><td>{{.Timestamp.Format "2006-01-02 15:04:05 MST"}}</td></tr>
</table>
{{if .Events}}<h3>Events</h3>
<ul>{{range .Events}}<li>{{.Severity}} {{.Type}}: {{.Details}}</li>{{end}}</ul>{{end}}`))

// Alerter e-mails high risk session notices.
type Alerter struct {
	sender  EmailSender
	to      string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAlerter creates an alerter sending to the given address.
func NewAlerter(sender EmailSender, to string, log *slog.Logger) (*Alerter, error) {
	if !isValidEmail(to) {
		return nil, fmt.Errorf("%w: alert recipient must be a valid email address", ErrInvalidConfig)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Alerter{sender: sender, to: to, timeout: 10 * time.Second, logger: log}, nil
}

// Alert sends one e-mail for n.
func (a *Alerter) Alert(ctx context.Context, n session.Notice) error {
	var body bytes.Buffer
	if err := alertTemplate.Execute(&body, n); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   a.to,
		Subject:  fmt.Sprintf("High risk session for %s (score %d)", n.Username, n.RiskScore),
		Tag:      "session-high-risk",
		BodyHTML: body.String(),
	})
}

// Run consumes notices from sub and alerts on high risk ones until ctx is
// done or the subscription closes. Send failures are logged, never returned.
func (a *Alerter) Run(ctx context.Context, sub broadcast.Subscriber[session.Notice]) error {
	defer func() { _ = sub.Close() }()
	ch := sub.Receive(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Data.Kind != session.NoticeHighRisk {
				continue
			}
			if err := a.Alert(ctx, msg.Data); err != nil {
				a.logger.ErrorContext(ctx, "failed to send high risk alert",
					logger.SessionID(msg.Data.SessionRef), logger.Error(err))
			}
		}
	}
}
