// Package mail delivers transactional email through SMTP, with a logging
// sender for local runs where no relay is configured.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	gomail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPSender implements Sender over an SMTP relay using go-mail.
type SMTPSender struct {
	configuration SMTPConfig
}

// NewSMTPSender constructs an SMTP-backed sender.
func NewSMTPSender(configuration SMTPConfig) *SMTPSender {
	return &SMTPSender{configuration: configuration}
}

// Send dials the relay and delivers one plain-text message. go-mail has no
// context support, so cancellation is honored only before the dial.
func (sender *SMTPSender) Send(ctx context.Context, to string, subject string, body string) error {
	if contextErr := ctx.Err(); contextErr != nil {
		return fmt.Errorf("mail.smtp.send: %w", contextErr)
	}
	message := gomail.NewMessage()
	message.SetHeader("From", sender.configuration.From)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", body)

	dialer := gomail.NewDialer(sender.configuration.Host, sender.configuration.Port, sender.configuration.Username, sender.configuration.Password)
	dialer.TLSConfig = &tls.Config{ServerName: sender.configuration.Host}

	if sendErr := dialer.DialAndSend(message); sendErr != nil {
		return fmt.Errorf("mail.smtp.send: %w", sendErr)
	}
	return nil
}

// LogSender logs messages instead of delivering them, for dev and tests.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (sender *LogSender) Send(ctx context.Context, to string, subject string, body string) error {
	sender.logger.Info("mail (log sender, not delivered)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}
