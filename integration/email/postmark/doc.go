// Package postmark sends transactional e-mail through Postmark and turns high
// risk session notices into alert e-mails.
//
// # Configuration
//
//	type Config struct {
//		PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
//		PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
//		SenderEmail          string `env:"SENDER_EMAIL"`
//		SupportEmail         string `env:"SUPPORT_EMAIL"`
//		AlertEmail           string `env:"POSTMARK_ALERT_EMAIL"`
//	}
//
// Alerting is disabled when no server token is set (see Config.Enabled).
//
// # Usage
//
//	client, err := postmark.New(cfg)
//	if err != nil {
//		return err
//	}
//	alerter, err := postmark.NewAlerter(client, cfg.AlertEmail, log)
//	if err != nil {
//		return err
//	}
//	sub := notices.Subscribe(ctx)
//	go alerter.Run(ctx, sub)
//
// Run only reacts to session.NoticeHighRisk notices. Send failures are logged
// and never stop the loop.
//
// # Errors
//
//   - ErrInvalidConfig: missing tokens or malformed addresses
//   - ErrInvalidParams: SendEmailParams failed validation
//   - ErrFailedToSendEmail: Postmark rejected the message or the request failed
package postmark
