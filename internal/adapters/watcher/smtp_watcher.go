package watcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

const (
	smtpProcessTimeout = 30 * time.Second
	verdictExcluded    = "excluded"
)

// Forwarder delivers a processed message to the next hop
type Forwarder interface {
	Send(ctx context.Context, sender string, recipients []string, data []byte) error
}

// SMTPWatcher accepts mail over SMTP, classifies each message and tags it
// with a verdict header before handing it to the next hop
type SMTPWatcher struct {
	pipeline      EmailProcessor
	forwarder     Forwarder
	logger        *zap.Logger
	listenAddr    string
	verdictHeader string

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
	done     chan struct{}
}

// NewSMTPWatcher creates a new SMTP intake watcher. A nil forwarder
// classifies and drops messages after tagging them.
func NewSMTPWatcher(
	pipeline EmailProcessor,
	forwarder Forwarder,
	logger *zap.Logger,
	listenAddr string,
	verdictHeader string,
) *SMTPWatcher {
	return &SMTPWatcher{
		pipeline:      pipeline,
		forwarder:     forwarder,
		logger:        logger,
		listenAddr:    listenAddr,
		verdictHeader: verdictHeader,
	}
}

// Start listens on the configured address and serves SMTP in the background
func (w *SMTPWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, err := net.Listen("tcp", w.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.listenAddr, err)
	}

	server := smtp.NewServer(&smtpBackend{watcher: w})
	server.Addr = l.Addr().String()
	server.Domain = "localhost"
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = 30 * 1024 * 1024
	server.MaxRecipients = 50

	w.server = server
	w.listener = l
	w.done = make(chan struct{})

	w.logger.Info("SMTP watcher starting", zap.String("address", l.Addr().String()))

	go func() {
		defer close(w.done)
		if err := server.Serve(l); err != nil && err != smtp.ErrServerClosed {
			w.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the watcher listens on, once started
func (w *SMTPWatcher) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return w.listenAddr
	}
	return w.listener.Addr().String()
}

// Stop stops the SMTP server
func (w *SMTPWatcher) Stop() error {
	w.mu.Lock()
	server, done := w.server, w.done
	w.server = nil
	w.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Close()
	<-done
	return err
}

// process classifies one raw message and returns it with the verdict header prepended
func (w *SMTPWatcher) process(ctx context.Context, envelopeFrom string, raw []byte) ([]byte, *core.Outcome, error) {
	candidate, err := ParseMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}
	if envelopeFrom != "" {
		candidate.Sender = envelopeFrom
	}

	out := w.pipeline.ProcessEmail(ctx, candidate)

	verdict := string(out.Verdict())
	if out.Excluded {
		verdict = verdictExcluded
	}

	var tagged bytes.Buffer
	fmt.Fprintf(&tagged, "%s: %s\r\n", w.verdictHeader, verdict)
	tagged.Write(raw)
	return tagged.Bytes(), out, nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	watcher *SMTPWatcher
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{watcher: b.watcher}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	watcher    *SMTPWatcher
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data classifies the message and forwards it
func (s *smtpSession) Data(r io.Reader) error {
	w := s.watcher
	raw, err := io.ReadAll(r)
	if err != nil {
		w.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), smtpProcessTimeout)
	defer cancel()

	tagged, out, err := w.process(ctx, s.sender, raw)
	if err != nil {
		w.logger.Error("Failed to process message", zap.Error(err), zap.String("sender", s.sender))
		return &smtp.SMTPError{Code: 554, EnhancedCode: smtp.EnhancedCode{5, 6, 0}, Message: "Malformed message"}
	}

	if w.forwarder != nil {
		if err := w.forwarder.Send(ctx, s.sender, s.recipients, tagged); err != nil {
			w.logger.Error("Failed to forward message",
				zap.Error(err),
				zap.String("sender", s.sender))
			return &smtp.SMTPError{Code: 451, EnhancedCode: smtp.EnhancedCode{4, 4, 0}, Message: "Next hop unavailable"}
		}
	}

	w.logger.Info("Processed email",
		zap.String("from", s.sender),
		zap.String("sender_domain", senderDomain(s.sender)),
		zap.String("verdict", string(out.Verdict())),
		zap.Bool("excluded", out.Excluded),
		zap.Bool("forwarded", w.forwarder != nil))
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}

func senderDomain(sender string) string {
	if i := strings.LastIndex(sender, "@"); i >= 0 {
		return strings.Trim(sender[i+1:], "> ")
	}
	return "unknown"
}
