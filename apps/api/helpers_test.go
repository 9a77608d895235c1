package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/S-troup10/westBasketball/libs/mailer"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	testAdminPassword = "west123"
	testTokenSecret   = "dev-secret"
	testReceiver      = "inbox@westbasketball.example"
	testSender        = "noreply@westbasketball.example"
)

type memoryContentStore struct {
	mu    sync.Mutex
	doc   json.RawMessage
	seeds int
	puts  int
}

func (m *memoryContentStore) Get(context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, ErrContentNotFound
	}
	return append(json.RawMessage(nil), m.doc...), nil
}

func (m *memoryContentStore) Put(_ context.Context, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.doc = append(json.RawMessage(nil), doc...)
	return nil
}

func (m *memoryContentStore) EnsureSeeded(_ context.Context, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		m.seeds++
		m.doc = append(json.RawMessage(nil), doc...)
	}
	return nil
}

func (m *memoryContentStore) Ping(context.Context) error { return nil }
func (m *memoryContentStore) Close() error               { return nil }

var errStoreDown = errors.New("store unavailable")

type failingContentStore struct{}

func (failingContentStore) Get(context.Context) (json.RawMessage, error) { return nil, errStoreDown }
func (failingContentStore) Put(context.Context, json.RawMessage) error   { return errStoreDown }
func (failingContentStore) EnsureSeeded(context.Context, json.RawMessage) error {
	return errStoreDown
}
func (failingContentStore) Ping(context.Context) error { return errStoreDown }
func (failingContentStore) Close() error               { return nil }

// recordingMailProvider captures messages. failOn is the 1-based call that fails.
type recordingMailProvider struct {
	mu     sync.Mutex
	sent   []mailer.Message
	calls  int
	failOn int
}

func (p *recordingMailProvider) Name() string { return "recording" }

func (p *recordingMailProvider) Send(_ context.Context, msg mailer.Message) (mailer.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failOn == p.calls {
		return mailer.SendResult{}, errors.New("smtp: connection refused")
	}
	p.sent = append(p.sent, msg)
	return mailer.SendResult{ProviderMessageID: "rec"}, nil
}

func (p *recordingMailProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testConfig() *Config {
	return &Config{
		Env:                  "test",
		StorageURL:           "site-data.db",
		AdminPassword:        testAdminPassword,
		TokenSecret:          testTokenSecret,
		SMTPFrom:             testSender,
		ContactReceiverEmail: testReceiver,
		ContactSiteName:      "West Basketball Club",
		ContactSiteLocation:  "Newcastle • Australia",
		RateLimitRPS:         0.2,
		RateLimitBurst:       5,
	}
}

func newTestApp(t *testing.T, store ContentStore, provider mailer.Provider) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	auth, err := NewAuthenticator(cfg.AdminPassword, cfg.TokenSecret)
	if err != nil {
		t.Fatalf("build authenticator: %v", err)
	}
	registry := prometheus.NewRegistry()

	return &App{
		cfg:            cfg,
		log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		content:        store,
		defaultContent: emptyContentDocument,
		auth:           auth,
		mailer:         mailer.New(provider, cfg.SMTPFrom),
		registry:       registry,
		metrics:        newAppMetrics(registry),
	}
}

func testRouter(t *testing.T, app *App) *gin.Engine {
	t.Helper()
	r, err := app.newRouter()
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return r
}

func doRequest(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
