package core_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/notify"
	"github.com/mikey/phish-alert/internal/adapters/store"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
	"github.com/mikey/phish-alert/internal/whitelist"
)

var reservedSchemes = []string{"chrome", "chrome-extension", "about", "edge", "file", "data", "javascript", "view-source", "devtools", "moz-extension"}

// countingClassifier returns a fixed verdict and counts calls
type countingClassifier struct {
	verdict core.Verdict
	calls   atomic.Int32
}

func (c *countingClassifier) ClassifyURL(ctx context.Context, url string) core.Verdict {
	c.calls.Add(1)
	return c.verdict
}

func (c *countingClassifier) ClassifyEmail(ctx context.Context, sender, subject, body string) core.Verdict {
	c.calls.Add(1)
	return c.verdict
}

// failingStore rejects every write
type failingStore struct {
	*store.MemoryStore
}

func (s failingStore) Set(ctx context.Context, r *core.Record) error {
	return errors.New("quota exceeded")
}

type fixture struct {
	pipeline   *core.Pipeline
	classifier *countingClassifier
	store      *store.MemoryStore
	inbox      *notify.Inbox
}

func newFixture(verdict core.Verdict, policy core.Policy) *fixture {
	logger := zap.NewNop()
	f := &fixture{
		classifier: &countingClassifier{verdict: verdict},
		store:      store.NewMemoryStore(logger),
		inbox:      notify.NewInbox(100),
	}
	f.pipeline = core.NewPipeline(
		f.classifier,
		f.store,
		f.inbox,
		whitelist.NewChecker(reservedSchemes, []string{"mail.google.com"}, logger),
		utils.NewTextProcessor(logger),
		logger,
		policy,
	)
	return f
}

func defaultPolicy() core.Policy {
	return core.Policy{PersistUnknownURLs: true, EmailPolicy: core.EmailPolicyAll, ExcerptSize: 500}
}

func (f *fixture) records(t *testing.T) []*core.Record {
	t.Helper()
	all, err := f.store.GetAll(context.Background())
	require.NoError(t, err)
	return all
}

func TestProperty_ExcludedURLsNeverReachClassifier(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	pathGen := gen.SliceOf(gen.AlphaNumChar()).Map(func(chars []rune) string { return string(chars) })

	properties.Property("reserved_schemes_are_filtered", prop.ForAll(
		func(scheme, path string) bool {
			f := newFixture(core.VerdictBlacklist, defaultPolicy())
			out := f.pipeline.ProcessURL(context.Background(), scheme+"://"+path)
			all, _ := f.store.GetAll(context.Background())
			return out.Excluded && out.State == core.StateFiltered &&
				f.classifier.calls.Load() == 0 && len(all) == 0 && len(f.inbox.Pending()) == 0
		},
		gen.OneConstOf("chrome", "chrome-extension", "about", "edge", "file", "view-source", "devtools", "moz-extension"),
		pathGen,
	))

	properties.Property("trusted_hosts_are_filtered", prop.ForAll(
		func(sub, path string) bool {
			f := newFixture(core.VerdictBlacklist, defaultPolicy())
			host := "mail.google.com"
			if sub != "" {
				host = sub + "." + host
			}
			out := f.pipeline.ProcessURL(context.Background(), "https://"+host+"/"+path)
			return out.Excluded && f.classifier.calls.Load() == 0
		},
		gen.AlphaString(),
		pathGen,
	))

	properties.TestingRun(t)
}

func TestProperty_PredictionMapping(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("only_known_labels_resolve", prop.ForAll(
		func(label string) bool {
			v := core.VerdictFromPrediction(label)
			switch label {
			case "phishing", "blacklist":
				return v == core.VerdictBlacklist
			case "legitimate", "whitelist":
				return v == core.VerdictWhitelist
			default:
				return v == core.VerdictUnknown
			}
		},
		gen.OneGenOf(
			gen.OneConstOf("phishing", "legitimate", "blacklist", "whitelist"),
			gen.AlphaString(),
		),
	))

	properties.Property("stored_verdict_is_always_valid", prop.ForAll(
		func(raw string) bool {
			f := newFixture(core.Verdict(raw), defaultPolicy())
			out := f.pipeline.ProcessURL(context.Background(), "http://a.test/")
			rec, err := f.store.Get(context.Background(), "http://a.test/")
			return err == nil && rec.Verdict.Valid() && out.Verdict().Valid()
		},
		gen.OneGenOf(
			gen.OneConstOf("whitelist", "blacklist", "unknown"),
			gen.AlphaString(),
		),
	))

	properties.TestingRun(t)
}

func TestProcessURL_PhishingScenario(t *testing.T) {
	f := newFixture(core.VerdictBlacklist, defaultPolicy())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.pipeline.SetClock(func() time.Time { return fixed })

	out := f.pipeline.ProcessURL(context.Background(), "http://evil.test/login")

	assert.Equal(t, []core.State{core.StateFiltered, core.StatePending, core.StateResolved, core.StatePersisted}, out.Trace)
	assert.NoError(t, out.Err)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, &core.Record{
		SubjectKey:   "http://evil.test/login",
		Kind:         core.KindURL,
		Verdict:      core.VerdictBlacklist,
		ClassifiedAt: fixed,
	}, recs[0])

	require.NotNil(t, out.Notification)
	assert.Equal(t, "Phish Alert", out.Notification.Title)
	assert.Equal(t, "Suspicious site detected!", out.Notification.Message)
	assert.Equal(t, "Open PhishTank to review", out.Notification.ButtonTitle)
	assert.NotEmpty(t, out.Notification.ID)
	assert.Len(t, f.inbox.Pending(), 1)
}

func TestProcessURL_SafeSiteMessage(t *testing.T) {
	f := newFixture(core.VerdictWhitelist, defaultPolicy())
	out := f.pipeline.ProcessURL(context.Background(), "https://example.test/")
	require.NotNil(t, out.Notification)
	assert.Equal(t, core.MessageSafeSite, out.Notification.Message)
}

func TestProcessURL_ReservedScheme(t *testing.T) {
	f := newFixture(core.VerdictBlacklist, defaultPolicy())

	out := f.pipeline.ProcessURL(context.Background(), "chrome://settings")

	assert.True(t, out.Excluded)
	assert.Equal(t, []core.State{core.StateFiltered}, out.Trace)
	assert.Equal(t, int32(0), f.classifier.calls.Load())
	assert.Empty(t, f.records(t))
	assert.Empty(t, f.inbox.Pending())
}

func TestProcessURL_UnknownPolicy(t *testing.T) {
	t.Run("persisted by default", func(t *testing.T) {
		f := newFixture(core.VerdictUnknown, defaultPolicy())
		out := f.pipeline.ProcessURL(context.Background(), "http://down.test/")
		assert.Equal(t, core.StatePersisted, out.State)
		require.Len(t, f.records(t), 1)
		assert.Equal(t, core.VerdictUnknown, f.records(t)[0].Verdict)
	})

	t.Run("skipped when disabled", func(t *testing.T) {
		policy := defaultPolicy()
		policy.PersistUnknownURLs = false
		f := newFixture(core.VerdictUnknown, policy)

		out := f.pipeline.ProcessURL(context.Background(), "http://down.test/")
		assert.True(t, out.Skipped)
		assert.Equal(t, core.StateResolved, out.State)
		assert.Empty(t, f.records(t))
		assert.Empty(t, f.inbox.Pending())
	})
}

func TestProcessURL_Idempotent(t *testing.T) {
	f := newFixture(core.VerdictBlacklist, defaultPolicy())
	ctx := context.Background()

	f.pipeline.ProcessURL(ctx, "http://evil.test/login")
	f.pipeline.ProcessURL(ctx, "http://evil.test/login")

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerdictBlacklist, recs[0].Verdict)
	assert.Len(t, f.inbox.Pending(), 2)
}

func TestProcessURL_ConcurrentRunsLastWriteWins(t *testing.T) {
	f := newFixture(core.VerdictWhitelist, defaultPolicy())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.pipeline.ProcessURL(ctx, "http://race.test/")
		}()
	}
	wg.Wait()

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, core.VerdictWhitelist, recs[0].Verdict)
}

func TestProcessURL_StoreFailure(t *testing.T) {
	logger := zap.NewNop()
	classifier := &countingClassifier{verdict: core.VerdictBlacklist}
	inbox := notify.NewInbox(10)
	p := core.NewPipeline(classifier, failingStore{store.NewMemoryStore(logger)}, inbox,
		whitelist.NewChecker(reservedSchemes, nil, logger), utils.NewTextProcessor(logger), logger, defaultPolicy())

	out := p.ProcessURL(context.Background(), "http://evil.test/login")

	assert.Error(t, out.Err)
	assert.Equal(t, core.StateResolved, out.State)
	assert.Nil(t, out.Notification)
	assert.Empty(t, inbox.Pending())
}

func TestProcessEmail_LegitimateScenario(t *testing.T) {
	f := newFixture(core.VerdictWhitelist, defaultPolicy())
	fixed := time.UnixMilli(1700000000000).UTC()
	f.pipeline.SetClock(func() time.Time { return fixed })

	out := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "a@b.com", Subject: "Hi", Body: "..."})

	assert.Equal(t, core.StatePersisted, out.State)
	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "email_1700000000000", recs[0].SubjectKey)
	assert.Equal(t, core.KindEmail, recs[0].Kind)
	assert.Equal(t, core.VerdictWhitelist, recs[0].Verdict)
	assert.Equal(t, &core.EmailMeta{Sender: "a@b.com", Subject: "Hi", BodyExcerpt: "..."}, recs[0].Email)
	assert.Equal(t, core.MessageSafeEmail, out.Notification.Message)
}

func TestProcessEmail_SameMillisecondKeepsBoth(t *testing.T) {
	f := newFixture(core.VerdictWhitelist, defaultPolicy())
	fixed := time.UnixMilli(1700000000000).UTC()
	f.pipeline.SetClock(func() time.Time { return fixed })

	first := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "a@b.com", Subject: "First"})
	second := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "c@d.com", Subject: "Second"})

	assert.Equal(t, "email_1700000000000", first.Record.SubjectKey)
	assert.Equal(t, "email_1700000000000_1", second.Record.SubjectKey)
	assert.Len(t, f.records(t), 2)

	// A clock step backwards still yields a fresh key
	f.pipeline.SetClock(func() time.Time { return fixed.Add(-time.Second) })
	third := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "e@f.com", Subject: "Third"})
	assert.Equal(t, "email_1700000000000_2", third.Record.SubjectKey)
	assert.Len(t, f.records(t), 3)
}

func TestProcessEmail_ConcurrentKeysUnique(t *testing.T) {
	f := newFixture(core.VerdictWhitelist, defaultPolicy())
	fixed := time.UnixMilli(1700000000000).UTC()
	f.pipeline.SetClock(func() time.Time { return fixed })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "a@b.com"})
		}()
	}
	wg.Wait()
	assert.Len(t, f.records(t), 20)
}

func TestProcessEmail_BlacklistOnlyPolicy(t *testing.T) {
	policy := defaultPolicy()
	policy.EmailPolicy = core.EmailPolicyBlacklistOnly

	for _, v := range []core.Verdict{core.VerdictWhitelist, core.VerdictUnknown} {
		f := newFixture(v, policy)
		out := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "a@b.com", Subject: "Hi", Body: "..."})
		assert.True(t, out.Skipped, v)
		assert.Empty(t, f.records(t), v)
	}

	f := newFixture(core.VerdictBlacklist, policy)
	out := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "x@evil.test", Subject: "Verify", Body: "now"})
	assert.Equal(t, core.StatePersisted, out.State)
	assert.Equal(t, core.MessageSuspiciousEmail, out.Notification.Message)
}

func TestProcessEmail_TrustedSender(t *testing.T) {
	f := newFixture(core.VerdictBlacklist, defaultPolicy())
	out := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "Google <noreply@mail.google.com>"})
	assert.True(t, out.Excluded)
	assert.Equal(t, int32(0), f.classifier.calls.Load())
}

func TestProcessEmail_ExcerptTruncated(t *testing.T) {
	policy := defaultPolicy()
	policy.ExcerptSize = 10
	f := newFixture(core.VerdictBlacklist, policy)

	out := f.pipeline.ProcessEmail(context.Background(), &core.EmailCandidate{Sender: "a@b.com", Body: "one   two\nthree four five"})
	assert.Equal(t, "one two th", out.Record.Email.BodyExcerpt)
}

func TestParseEmailPolicy(t *testing.T) {
	p, err := core.ParseEmailPolicy(" Blacklist_Only ")
	require.NoError(t, err)
	assert.Equal(t, core.EmailPolicyBlacklistOnly, p)

	_, err = core.ParseEmailPolicy("none")
	assert.Error(t, err)
}
