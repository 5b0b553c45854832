package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

func backends() map[string]func(t *testing.T) core.Store {
	return map[string]func(t *testing.T) core.Store{
		"memory": func(t *testing.T) core.Store {
			return NewMemoryStore(zap.NewNop())
		},
		"sqlite": func(t *testing.T) core.Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"), zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(s.Stop)
			return s
		},
		"redis": func(t *testing.T) core.Store {
			mr := miniredis.RunT(t)
			s, err := newRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(s.Stop)
			return s
		},
	}
}

func urlRecord(key string, v core.Verdict) *core.Record {
	return &core.Record{
		SubjectKey:   key,
		Kind:         core.KindURL,
		Verdict:      v,
		ClassifiedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// changeRecorder collects change notifications from any goroutine
type changeRecorder struct {
	mu   sync.Mutex
	keys [][]string
}

func (r *changeRecorder) listen(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys)
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func TestStores(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("set and get", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Set(ctx, urlRecord("http://evil.test/login", core.VerdictBlacklist)))

				got, err := s.Get(ctx, "http://evil.test/login")
				require.NoError(t, err)
				assert.Equal(t, core.VerdictBlacklist, got.Verdict)
				assert.Equal(t, core.KindURL, got.Kind)
				assert.Nil(t, got.Email)
				assert.True(t, got.ClassifiedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
			})

			t.Run("missing key", func(t *testing.T) {
				s := open(t)
				_, err := s.Get(ctx, "http://nowhere.test/")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("last write wins", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Set(ctx, urlRecord("http://a.test/", core.VerdictWhitelist)))
				require.NoError(t, s.Set(ctx, urlRecord("http://a.test/", core.VerdictBlacklist)))

				all, err := s.GetAll(ctx)
				require.NoError(t, err)
				require.Len(t, all, 1)
				assert.Equal(t, core.VerdictBlacklist, all[0].Verdict)
			})

			t.Run("email metadata round trip", func(t *testing.T) {
				s := open(t)
				rec := &core.Record{
					SubjectKey: "email_1700000000000",
					Kind:       core.KindEmail,
					Verdict:    core.VerdictWhitelist,
					Email: &core.EmailMeta{
						Sender:      "a@b.com",
						Subject:     "Hi",
						BodyExcerpt: "...",
					},
					ClassifiedAt: time.Now().UTC(),
				}
				require.NoError(t, s.Set(ctx, rec))

				got, err := s.Get(ctx, rec.SubjectKey)
				require.NoError(t, err)
				require.NotNil(t, got.Email)
				assert.Equal(t, *rec.Email, *got.Email)
			})

			t.Run("remove and clear", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Set(ctx, urlRecord("http://a.test/", core.VerdictWhitelist)))
				require.NoError(t, s.Set(ctx, urlRecord("http://b.test/", core.VerdictBlacklist)))
				require.NoError(t, s.Set(ctx, urlRecord("http://c.test/", core.VerdictUnknown)))

				require.NoError(t, s.Remove(ctx, "http://b.test/"))
				all, err := s.GetAll(ctx)
				require.NoError(t, err)
				assert.Len(t, all, 2)

				require.NoError(t, s.Clear(ctx))
				all, err = s.GetAll(ctx)
				require.NoError(t, err)
				assert.Empty(t, all)
			})

			t.Run("long keys", func(t *testing.T) {
				s := open(t)
				long := "http://evil.test/" + strings.Repeat("a", 2000)
				sibling := long[:len(long)-1] + "b"
				require.NoError(t, s.Set(ctx, urlRecord(long, core.VerdictBlacklist)))
				require.NoError(t, s.Set(ctx, urlRecord(sibling, core.VerdictWhitelist)))

				got, err := s.Get(ctx, long)
				require.NoError(t, err)
				assert.Equal(t, long, got.SubjectKey)
				assert.Equal(t, core.VerdictBlacklist, got.Verdict)

				require.NoError(t, s.Remove(ctx, long))
				_, err = s.Get(ctx, long)
				assert.ErrorIs(t, err, ErrNotFound)

				got, err = s.Get(ctx, sibling)
				require.NoError(t, err)
				assert.Equal(t, core.VerdictWhitelist, got.Verdict)
			})

			t.Run("rejects invalid verdict", func(t *testing.T) {
				s := open(t)
				err := s.Set(ctx, urlRecord("http://a.test/", core.Verdict("suspicious")))
				assert.Error(t, err)
			})

			t.Run("subscribers see writes", func(t *testing.T) {
				s := open(t)
				rec := &changeRecorder{}
				unsubscribe := s.Subscribe(rec.listen)

				require.NoError(t, s.Set(ctx, urlRecord("http://a.test/", core.VerdictWhitelist)))
				require.NoError(t, s.Remove(ctx, "http://a.test/"))
				assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)

				unsubscribe()
				require.NoError(t, s.Set(ctx, urlRecord("http://b.test/", core.VerdictWhitelist)))
				time.Sleep(50 * time.Millisecond)
				assert.Equal(t, 2, rec.count())
			})
		})
	}
}

func TestKeyHash(t *testing.T) {
	prefix := strings.Repeat("x", 768)
	a, b := keyHash(prefix+"a"), keyHash(prefix+"b")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, keyHash(prefix+"a"))
}

func TestRedisStore_ClearKeepsConcurrentWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := newRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, s.Set(ctx, urlRecord(fmt.Sprintf("http://w%d.test/", i), core.VerdictUnknown)))
		}
	}()
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Clear(ctx))
	}
	wg.Wait()

	// Every stored record is still reachable through the index
	indexed, err := s.client.SMembers(ctx, s.indexKey()).Result()
	require.NoError(t, err)
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "test:record:") {
			assert.Contains(t, indexed, strings.TrimPrefix(key, "test:record:"))
		}
	}

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Set(ctx, urlRecord("http://after.test/", core.VerdictBlacklist)))
	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "http://after.test/", all[0].SubjectKey)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, urlRecord("http://a.test/", core.VerdictWhitelist)))

	got, err := s.Get(ctx, "http://a.test/")
	require.NoError(t, err)
	got.Verdict = core.VerdictBlacklist

	again, err := s.Get(ctx, "http://a.test/")
	require.NoError(t, err)
	assert.Equal(t, core.VerdictWhitelist, again.Verdict)
}
