package watcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// fakePipeline records the candidates it is asked to process
type fakePipeline struct {
	mu      sync.Mutex
	urls    []string
	emails  []*core.EmailCandidate
	calls   atomic.Int32
	block   chan struct{}
	verdict core.Verdict
}

func (p *fakePipeline) ProcessURL(ctx context.Context, url string) *core.Outcome {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	p.mu.Lock()
	p.urls = append(p.urls, url)
	p.mu.Unlock()
	return &core.Outcome{Record: &core.Record{SubjectKey: url, Kind: core.KindURL, Verdict: p.verdict}}
}

func (p *fakePipeline) ProcessEmail(ctx context.Context, email *core.EmailCandidate) *core.Outcome {
	p.calls.Add(1)
	p.mu.Lock()
	p.emails = append(p.emails, email)
	p.mu.Unlock()
	return &core.Outcome{Record: &core.Record{SubjectKey: "email_1", Kind: core.KindEmail, Verdict: p.verdict}}
}

func (p *fakePipeline) processedURLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

func (p *fakePipeline) processedEmails() []*core.EmailCandidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*core.EmailCandidate(nil), p.emails...)
}

func TestNavigationWatcher_IgnoresInactiveAndEmptyUpdates(t *testing.T) {
	p := &fakePipeline{verdict: core.VerdictBlacklist}
	w := NewNavigationWatcher(p, zap.NewNop())
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.False(t, w.HandleTabUpdate(TabUpdate{TabID: 1, URL: "", Active: true}))
	assert.False(t, w.HandleTabUpdate(TabUpdate{TabID: 2, URL: "http://evil.test/login", Active: false}))
	assert.True(t, w.HandleTabUpdate(TabUpdate{TabID: 3, URL: "http://evil.test/login", Active: true}))
	w.Wait()

	assert.Equal(t, []string{"http://evil.test/login"}, p.processedURLs())
}

func TestNavigationWatcher_DispatchesWithoutBlocking(t *testing.T) {
	p := &fakePipeline{block: make(chan struct{}), verdict: core.VerdictWhitelist}
	w := NewNavigationWatcher(p, zap.NewNop())

	var outcomes atomic.Int32
	w.OnOutcome = func(update TabUpdate, out *core.Outcome) { outcomes.Add(1) }

	returned := make(chan struct{})
	go func() {
		w.HandleTabUpdate(TabUpdate{TabID: 1, URL: "http://a.test/", Active: true})
		w.HandleTabUpdate(TabUpdate{TabID: 1, URL: "http://b.test/", Active: true})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("HandleTabUpdate blocked on the pipeline")
	}

	assert.Eventually(t, func() bool { return p.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), outcomes.Load())

	close(p.block)
	w.Wait()
	assert.Equal(t, int32(2), outcomes.Load())
	assert.ElementsMatch(t, []string{"http://a.test/", "http://b.test/"}, p.processedURLs())
}

func TestNavigationWatcher_StopCancelsAndRejects(t *testing.T) {
	p := &fakePipeline{block: make(chan struct{})}
	w := NewNavigationWatcher(p, zap.NewNop())

	w.HandleTabUpdate(TabUpdate{TabID: 1, URL: "http://slow.test/", Active: true})
	assert.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.HandleTabUpdate(TabUpdate{TabID: 1, URL: "http://late.test/", Active: true}))
	assert.Equal(t, int32(1), p.calls.Load())
	require.NoError(t, w.Stop())
}

type fakeExtractor struct {
	candidate *core.EmailCandidate
	err       error
}

func (f *fakeExtractor) Extract(html string) (*core.EmailCandidate, error) {
	return f.candidate, f.err
}

func TestContentWatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing extracted never reaches the pipeline", func(t *testing.T) {
		p := &fakePipeline{}
		w := NewContentWatcher(&fakeExtractor{candidate: &core.EmailCandidate{Sender: "  "}}, p, zap.NewNop())

		out, err := w.Scan(ctx, "<html></html>")
		assert.ErrorIs(t, err, ErrNoContent)
		assert.Nil(t, out)
		assert.Equal(t, int32(0), p.calls.Load())
	})

	t.Run("extraction failure is no content", func(t *testing.T) {
		p := &fakePipeline{}
		w := NewContentWatcher(&fakeExtractor{err: errors.New("bad page")}, p, zap.NewNop())

		_, err := w.Scan(ctx, "")
		assert.ErrorIs(t, err, ErrNoContent)
		assert.Equal(t, int32(0), p.calls.Load())
	})

	t.Run("partial fields are forwarded", func(t *testing.T) {
		p := &fakePipeline{verdict: core.VerdictBlacklist}
		w := NewContentWatcher(&fakeExtractor{candidate: &core.EmailCandidate{Subject: " Reset your password "}}, p, zap.NewNop())

		out, err := w.Scan(ctx, "<html></html>")
		require.NoError(t, err)
		assert.Equal(t, core.VerdictBlacklist, out.Verdict())

		emails := p.processedEmails()
		require.Len(t, emails, 1)
		assert.Equal(t, &core.EmailCandidate{Subject: "Reset your password"}, emails[0])
	})

	t.Run("nil fields", func(t *testing.T) {
		w := NewContentWatcher(&fakeExtractor{}, &fakePipeline{}, zap.NewNop())
		_, err := w.ScanFields(ctx, nil)
		assert.ErrorIs(t, err, ErrNoContent)
	})
}

type recordingForwarder struct {
	mu   sync.Mutex
	data []string
	err  error
}

func (f *recordingForwarder) Send(ctx context.Context, sender string, recipients []string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data = append(f.data, string(data))
	return nil
}

func (f *recordingForwarder) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.data...)
}

const rawMessage = "From: Bank <alerts@bank.test>\r\n" +
	"To: me@local\r\n" +
	"Subject: =?UTF-8?Q?Verify_your_account?=\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Click the link to verify.\r\n"

func startSMTPWatcher(t *testing.T, p *fakePipeline, fwd Forwarder) *SMTPWatcher {
	t.Helper()
	w := NewSMTPWatcher(p, fwd, zap.NewNop(), "127.0.0.1:0", "X-Phish-Verdict")
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestSMTPWatcher_ClassifiesAndForwards(t *testing.T) {
	p := &fakePipeline{verdict: core.VerdictBlacklist}
	fwd := &recordingForwarder{}
	w := startSMTPWatcher(t, p, fwd)

	err := smtp.SendMail(w.Addr(), nil, "alerts@bank.test", []string{"me@local"}, strings.NewReader(rawMessage))
	require.NoError(t, err)

	emails := p.processedEmails()
	require.Len(t, emails, 1)
	assert.Equal(t, "alerts@bank.test", emails[0].Sender)
	assert.Equal(t, "Verify your account", emails[0].Subject)
	assert.Contains(t, emails[0].Body, "Click the link to verify.")

	sent := fwd.sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "X-Phish-Verdict: blacklist\r\n"))
	assert.Contains(t, sent[0], "Subject: =?UTF-8?Q?Verify_your_account?=")
}

func TestSMTPWatcher_ForwardFailureIsTemporary(t *testing.T) {
	p := &fakePipeline{verdict: core.VerdictWhitelist}
	w := startSMTPWatcher(t, p, &recordingForwarder{err: errors.New("connection refused")})

	err := smtp.SendMail(w.Addr(), nil, "a@b.test", []string{"me@local"}, strings.NewReader(rawMessage))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 451, smtpErr.Code)
}

func TestSMTPWatcher_WithoutForwarder(t *testing.T) {
	p := &fakePipeline{verdict: core.VerdictWhitelist}
	w := startSMTPWatcher(t, p, nil)

	require.NoError(t, smtp.SendMail(w.Addr(), nil, "a@b.test", []string{"me@local"}, strings.NewReader(rawMessage)))
	assert.Equal(t, int32(1), p.calls.Load())
	require.NoError(t, w.Stop())
}
