package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/utils"
)

// EmailPolicy decides which classified emails are written to the store
type EmailPolicy string

const (
	// EmailPolicyAll stores every classified email
	EmailPolicyAll EmailPolicy = "all"
	// EmailPolicyBlacklistOnly stores only blacklisted emails
	EmailPolicyBlacklistOnly EmailPolicy = "blacklist_only"
)

// ParseEmailPolicy parses the pipeline.email_policy setting
func ParseEmailPolicy(s string) (EmailPolicy, error) {
	switch p := EmailPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case EmailPolicyAll, EmailPolicyBlacklistOnly:
		return p, nil
	}
	return "", fmt.Errorf("unsupported email policy: %s", s)
}

// Policy controls which resolved records are persisted
type Policy struct {
	PersistUnknownURLs bool
	EmailPolicy        EmailPolicy
	ExcerptSize        int
}

// Notification copy
const (
	NotificationTitle  = "Phish Alert"
	NotificationButton = "Open PhishTank to review"

	MessageSuspiciousSite  = "Suspicious site detected!"
	MessageSafeSite        = "This site looks safe."
	MessageSuspiciousEmail = "Suspicious email detected!"
	MessageSafeEmail       = "This email looks safe."
)

// Pipeline runs candidates through filter, classification, persistence and notification
type Pipeline struct {
	classifier    Classifier
	store         Store
	notifier      Notifier
	exclusions    Exclusions
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	policy        Policy
	now           func() time.Time
	emailKeys     emailKeySequence
}

// emailKeySequence hands out unique email keys. Scans landing on the same
// millisecond get a counter suffix.
type emailKeySequence struct {
	mu     sync.Mutex
	lastMs int64
	seq    int
}

func (s *emailKeySequence) next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := t.UnixMilli()
	if ms > s.lastMs {
		s.lastMs, s.seq = ms, 0
		return EmailKey(t)
	}
	s.seq++
	return fmt.Sprintf("%s_%d", EmailKey(time.UnixMilli(s.lastMs)), s.seq)
}

// NewPipeline creates a new classification pipeline
func NewPipeline(
	classifier Classifier,
	store Store,
	notifier Notifier,
	exclusions Exclusions,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	policy Policy,
) *Pipeline {
	return &Pipeline{
		classifier:    classifier,
		store:         store,
		notifier:      notifier,
		exclusions:    exclusions,
		textProcessor: textProcessor,
		logger:        logger,
		policy:        policy,
		now:           time.Now,
	}
}

// SetClock replaces the clock used for record timestamps and email keys
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// ProcessURL classifies a URL and persists the verdict
func (p *Pipeline) ProcessURL(ctx context.Context, url string) *Outcome {
	out := &Outcome{}
	out.enter(StateFiltered)
	if p.exclusions != nil && p.exclusions.ExcludeURL(url) {
		p.logger.Debug("Skipping excluded URL", zap.String("url", url))
		out.Excluded = true
		return out
	}

	out.enter(StatePending)
	verdict := p.classifier.ClassifyURL(ctx, url)

	out.enter(StateResolved)
	out.Record = &Record{
		SubjectKey:   url,
		Kind:         KindURL,
		Verdict:      p.ensureVerdict(verdict),
		ClassifiedAt: p.now(),
	}

	if out.Record.Verdict == VerdictUnknown && !p.policy.PersistUnknownURLs {
		p.logger.Info("Not persisting unknown URL verdict", zap.String("url", url))
		out.Skipped = true
		return out
	}

	p.persist(ctx, out)
	return out
}

// ProcessEmail classifies an email and persists the verdict according to the email policy
func (p *Pipeline) ProcessEmail(ctx context.Context, email *EmailCandidate) *Outcome {
	out := &Outcome{}
	out.enter(StateFiltered)
	if p.exclusions != nil && p.exclusions.ExcludeSender(email.Sender) {
		p.logger.Debug("Skipping email from trusted sender", zap.String("sender", email.Sender))
		out.Excluded = true
		return out
	}

	out.enter(StatePending)
	verdict := p.classifier.ClassifyEmail(ctx, email.Sender, email.Subject, email.Body)

	out.enter(StateResolved)
	now := p.now()
	out.Record = &Record{
		SubjectKey: p.emailKeys.next(now),
		Kind:       KindEmail,
		Verdict:    p.ensureVerdict(verdict),
		Email: &EmailMeta{
			Sender:      email.Sender,
			Subject:     email.Subject,
			BodyExcerpt: p.textProcessor.Excerpt(email.Body, p.policy.ExcerptSize),
		},
		ClassifiedAt: now,
	}

	if p.policy.EmailPolicy == EmailPolicyBlacklistOnly && out.Record.Verdict != VerdictBlacklist {
		p.logger.Info("Not persisting email verdict",
			zap.String("sender", email.Sender),
			zap.String("verdict", string(out.Record.Verdict)),
			zap.String("policy", string(p.policy.EmailPolicy)))
		out.Skipped = true
		return out
	}

	p.persist(ctx, out)
	return out
}

// ensureVerdict guards the store against values outside the verdict enum
func (p *Pipeline) ensureVerdict(v Verdict) Verdict {
	if !v.Valid() {
		p.logger.Warn("Classifier returned invalid verdict", zap.String("verdict", string(v)))
		return VerdictUnknown
	}
	return v
}

func (p *Pipeline) persist(ctx context.Context, out *Outcome) {
	rec := out.Record
	if err := p.store.Set(ctx, rec); err != nil {
		p.logger.Error("Failed to persist classification",
			zap.Error(err),
			zap.String("key", rec.SubjectKey),
			zap.String("verdict", string(rec.Verdict)))
		out.Err = fmt.Errorf("failed to persist %s: %w", rec.SubjectKey, err)
		return
	}
	out.enter(StatePersisted)

	p.logger.Info("Classification stored",
		zap.String("key", rec.SubjectKey),
		zap.String("kind", string(rec.Kind)),
		zap.String("verdict", string(rec.Verdict)))

	out.Notification = p.notification(rec)
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, out.Notification); err != nil {
		p.logger.Warn("Failed to raise notification", zap.Error(err), zap.String("key", rec.SubjectKey))
	}
}

func (p *Pipeline) notification(rec *Record) *Notification {
	var msg string
	switch {
	case rec.Kind == KindEmail && rec.Verdict == VerdictBlacklist:
		msg = MessageSuspiciousEmail
	case rec.Kind == KindEmail:
		msg = MessageSafeEmail
	case rec.Verdict == VerdictBlacklist:
		msg = MessageSuspiciousSite
	default:
		msg = MessageSafeSite
	}
	return &Notification{
		ID:          uuid.NewString(),
		Title:       NotificationTitle,
		Message:     msg,
		ButtonTitle: NotificationButton,
		SubjectKey:  rec.SubjectKey,
		Kind:        rec.Kind,
		Verdict:     rec.Verdict,
		CreatedAt:   p.now(),
	}
}
