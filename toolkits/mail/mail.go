// Package mail provides the send_mail tool.
package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"

	"github.com/skosovsky/agentry"
)

// Message is one email.
type Message struct {
	Recipient string `json:"recipient" description:"The email address of the recipient."`
	Sender    string `json:"sender" description:"The email address of the sender."`
	Subject   string `json:"subject" description:"The subject of the email."`
	Body      string `json:"body" description:"The body of the email."`
}

// Validate checks both addresses.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.Recipient); err != nil {
		return &agentry.FieldError{Field: "recipient", Message: "invalid email address"}
	}
	if _, err := mail.ParseAddress(m.Sender); err != nil {
		return &agentry.FieldError{Field: "sender", Message: "invalid email address"}
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogSender writes messages to a logger instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "sending email",
		slog.String("recipient", msg.Recipient),
		slog.String("sender", msg.Sender),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body))
	return nil
}

// Tool returns send_mail. The tool reports true once sender accepted the message.
func Tool(sender Sender) (agentry.Tool, error) {
	if sender == nil {
		return nil, errors.New("mail: nil sender")
	}
	return agentry.NewTool("send_mail", "Send an email to the given recipient.",
		func(ctx context.Context, msg Message) (bool, error) {
			if err := sender.Send(ctx, msg); err != nil {
				return false, err
			}
			return true, nil
		},
		agentry.WithDangerous(),
		agentry.WithTags("mail"))
}
