package mail

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	t.Parallel()

	sender := NewLogSender(zaptest.NewLogger(t))
	if sendErr := sender.Send(context.Background(), "to@example.com", "subject", "body"); sendErr != nil {
		t.Fatalf("unexpected send error: %v", sendErr)
	}

	// A nil logger falls back to a no-op logger instead of panicking.
	bare := NewLogSender(nil)
	if sendErr := bare.Send(context.Background(), "to@example.com", "subject", "body"); sendErr != nil {
		t.Fatalf("unexpected send error: %v", sendErr)
	}
}

func TestSMTPSenderHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if sendErr := sender.Send(ctx, "to@example.com", "subject", "body"); sendErr == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
