// Package smtprelay delivers raw messages to an SMTP next hop.
package smtprelay

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const (
	dialTimeout = 10 * time.Second
	ioTimeout   = 30 * time.Second
)

// Relay sends messages to a single SMTP server
type Relay struct {
	address string
	port    int
	logger  *zap.Logger
}

// NewRelay creates a relay to address:port
func NewRelay(address string, port int, logger *zap.Logger) *Relay {
	return &Relay{
		address: address,
		port:    port,
		logger:  logger,
	}
}

// Addr returns the host:port of the next hop
func (r *Relay) Addr() string {
	return net.JoinHostPort(r.address, fmt.Sprint(r.port))
}

// Send delivers data from sender to recipients. Rejected recipients are
// logged and skipped; it fails only when every recipient is rejected.
func (r *Relay) Send(ctx context.Context, sender string, recipients []string, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.Addr())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", r.Addr(), err)
	}

	deadline := time.Now().Add(ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			r.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// the message is already accepted at this point
	if err := c.Quit(); err != nil {
		r.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}
