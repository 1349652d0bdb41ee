package postmark

import "errors"

var (
	ErrInvalidConfig     = errors.New("postmark: invalid configuration")
	ErrInvalidParams     = errors.New("postmark: invalid email parameters")
	ErrFailedToSendEmail = errors.New("postmark: failed to send email")
)
