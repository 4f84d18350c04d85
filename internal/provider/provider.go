package provider

import "context"

// Mailer is the outbound email delivery port.
type Mailer interface {
	Name() string
	Send(ctx context.Context, email OutboundEmail) (*SendResult, error)
}

// OutboundEmail is one rendered message for one recipient.
type OutboundEmail struct {
	From    string
	To      string
	Subject string
	HTML    string
	Tags    map[string]string
}

// SendResult carries the provider message id that later webhooks refer to.
type SendResult struct {
	StatusCode int
	MessageID  string
}
