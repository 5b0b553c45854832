package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// Sender delivers a raw message over SMTP
type Sender interface {
	Send(ctx context.Context, sender string, recipients []string, data []byte) error
}

// MailNotifier mails an alert for every blacklisted record
type MailNotifier struct {
	sender Sender
	from   string
	to     []string
	logger *zap.Logger
}

// NewMailNotifier creates a new mail notifier
func NewMailNotifier(sender Sender, from string, to []string, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{
		sender: sender,
		from:   from,
		to:     to,
		logger: logger,
	}
}

// Notify mails the notification when it reports a blacklist verdict
func (m *MailNotifier) Notify(ctx context.Context, notification *core.Notification) error {
	if notification.Verdict != core.VerdictBlacklist || len(m.to) == 0 {
		return nil
	}

	if err := m.sender.Send(ctx, m.from, m.to, m.message(notification)); err != nil {
		return fmt.Errorf("failed to mail alert for %s: %w", notification.SubjectKey, err)
	}

	m.logger.Debug("Mailed alert",
		zap.String("key", notification.SubjectKey),
		zap.Strings("to", m.to))
	return nil
}

func (m *MailNotifier) message(n *core.Notification) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	for _, to := range m.to {
		fmt.Fprintf(&buf, "To: %s\r\n", to)
	}
	fmt.Fprintf(&buf, "Subject: [%s] %s\r\n", n.Title, n.Message)
	fmt.Fprintf(&buf, "Date: %s\r\n", n.CreatedAt.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@phish-alert>\r\n", uuid.NewString())
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&buf, "\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", n.Message)
	fmt.Fprintf(&buf, "Kind: %s\r\n", n.Kind)
	fmt.Fprintf(&buf, "Subject key: %s\r\n", n.SubjectKey)
	fmt.Fprintf(&buf, "Verdict: %s\r\n", n.Verdict)
	return buf.Bytes()
}
