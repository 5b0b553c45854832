package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/utils"
)

func newTestClient(srv *httptest.Server, timeout time.Duration) *HTTPClient {
	logger := zap.NewNop()
	return NewHTTPClient(
		srv.URL+"/predict",
		srv.URL+"/predict_email",
		srv.URL+"/health",
		timeout,
		4096,
		logger,
		utils.NewTextProcessor(logger),
	)
}

func respond(body string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestClassifyURL_MapsPredictions(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   core.Verdict
	}{
		{"phishing", `{"url":"x","prediction":"phishing","label":1}`, http.StatusOK, core.VerdictBlacklist},
		{"legitimate", `{"prediction":"legitimate","label":0}`, http.StatusOK, core.VerdictWhitelist},
		{"legacy blacklist", `{"classification":"blacklist"}`, http.StatusOK, core.VerdictBlacklist},
		{"legacy whitelist", `{"classification":"whitelist"}`, http.StatusOK, core.VerdictWhitelist},
		{"unrecognised label", `{"prediction":"maybe"}`, http.StatusOK, core.VerdictUnknown},
		{"missing field", `{"label":1}`, http.StatusOK, core.VerdictUnknown},
		{"malformed json", `{"prediction":`, http.StatusOK, core.VerdictUnknown},
		{"server error", `{"detail":"Model not loaded"}`, http.StatusServiceUnavailable, core.VerdictUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(respond(tt.body, tt.status))
			defer srv.Close()

			got := newTestClient(srv, 0).ClassifyURL(context.Background(), "http://evil.test/login")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyURL_SendsURLPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"prediction":"phishing"}`))
	}))
	defer srv.Close()

	newTestClient(srv, 0).ClassifyURL(context.Background(), "http://evil.test/login")

	assert.Equal(t, "/predict", gotPath)
	assert.Equal(t, map[string]string{"url": "http://evil.test/login"}, gotBody)
}

func TestClassifyEmail_SendsEmailPayload(t *testing.T) {
	var gotPath string
	var gotBody emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"prediction":"legitimate","confidence":0.98}`))
	}))
	defer srv.Close()

	got := newTestClient(srv, 0).ClassifyEmail(context.Background(), "a@b.com", "Hi", "...")

	assert.Equal(t, core.VerdictWhitelist, got)
	assert.Equal(t, "/predict_email", gotPath)
	assert.Equal(t, emailRequest{Sender: "a@b.com", Subject: "Hi", Body: "..."}, gotBody)
}

func TestClassify_UnreachableServiceIsUnknown(t *testing.T) {
	srv := httptest.NewServer(respond(`{}`, http.StatusOK))
	client := newTestClient(srv, 0)
	srv.Close()

	assert.Equal(t, core.VerdictUnknown, client.ClassifyURL(context.Background(), "http://a.test/"))
	assert.Equal(t, core.VerdictUnknown, client.ClassifyEmail(context.Background(), "a@b.com", "s", "b"))
}

func TestClassify_TimeoutIsUnknown(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	got := newTestClient(srv, 50*time.Millisecond).ClassifyURL(context.Background(), "http://slow.test/")
	assert.Equal(t, core.VerdictUnknown, got)
}

func TestClassify_CancelledContextIsUnknown(t *testing.T) {
	srv := httptest.NewServer(respond(`{"prediction":"phishing"}`, http.StatusOK))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, core.VerdictUnknown, newTestClient(srv, 0).ClassifyURL(ctx, "http://a.test/"))
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(srv, 0).Health(context.Background()))

	srv.Close()
	assert.Error(t, newTestClient(srv, 0).Health(context.Background()))
}
