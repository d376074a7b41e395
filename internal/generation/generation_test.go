package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

const testContent = `[{"output":{"Title":"Harbour Morning","Words":[{"word":"quay"}],"Body":"Boats rocked."}}]`

func newArticles(t *testing.T) *learning.Articles {
	t.Helper()
	articles, err := learning.NewArticles(learning.ArticleOptions{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new articles: %v", err)
	}
	return articles
}

func fixedID(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}

// engineFunc adapts a function to Notifier.
type engineFunc func(ctx context.Context, message, requestID string) error

func (f engineFunc) Generate(ctx context.Context, message, requestID string) error {
	return f(ctx, message, requestID)
}

func writeArtifacts(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "content.json"), []byte(testContent), 0o644); err != nil {
		t.Errorf("write content: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.png"), nil, 0o644); err != nil {
		t.Errorf("write cover: %v", err)
	}
}

func TestPollerReadyAfterArtifactsAppear(t *testing.T) {
	var probes atomic.Int32
	p := Poller{Interval: 50 * time.Millisecond, MaxAttempts: 10}
	attempts, err := p.Wait(context.Background(), func(context.Context) (bool, error) {
		return probes.Add(1) >= 4, nil
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected ready on attempt 4, got %d", attempts)
	}
}

func TestPollerTimesOut(t *testing.T) {
	p := Poller{Interval: 5 * time.Millisecond, MaxAttempts: 3}
	probeErr := errors.New("stat failed")
	attempts, err := p.Wait(context.Background(), func(context.Context) (bool, error) {
		return false, probeErr
	})
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("expected ErrGenerationTimeout, got %v", err)
	}
	if !errors.Is(err, probeErr) {
		t.Fatalf("expected last probe error attached, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Poller{Interval: time.Hour, MaxAttempts: 5}
	done := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx, func(context.Context) (bool, error) { return false, nil })
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("wait did not return after cancel")
	}
}

func TestGenerateReadyRegistersArticle(t *testing.T) {
	articles := newArticles(t)
	var gotMessage string
	engine := engineFunc(func(_ context.Context, message, requestID string) error {
		gotMessage = message
		dir := filepath.Join(articles.Base(), requestID)
		go func() {
			time.Sleep(120 * time.Millisecond)
			writeArtifacts(t, dir)
		}()
		return nil
	})
	gen := NewArticleGenerator(articles, engine, GeneratorOptions{
		Poller: Poller{Interval: 50 * time.Millisecond, MaxAttempts: 10},
		NewID:  fixedID("a1b2c3"),
	})

	article, err := gen.Generate(context.Background(), "  a story about harbours ")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotMessage != "a story about harbours" {
		t.Fatalf("expected trimmed message, got %q", gotMessage)
	}
	if article.ID != "a1b2c3" || article.Title != "Harbour Morning" || !article.Complete {
		t.Fatalf("unexpected article: %+v", article)
	}
	ids, err := articles.IDs(context.Background())
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a1b2c3" {
		t.Fatalf("expected article indexed, got %v", ids)
	}
}

func TestGenerateTimeoutKeepsFolder(t *testing.T) {
	articles := newArticles(t)
	engine := engineFunc(func(context.Context, string, string) error { return nil })
	gen := NewArticleGenerator(articles, engine, GeneratorOptions{
		Poller: Poller{Interval: 10 * time.Millisecond, MaxAttempts: 3},
		NewID:  fixedID("slow"),
	})

	_, err := gen.Generate(context.Background(), "never finishes")
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("expected ErrGenerationTimeout, got %v", err)
	}
	var timeout *TimeoutError
	if !errors.As(err, &timeout) || timeout.ID != "slow" || timeout.Attempts != 3 {
		t.Fatalf("expected TimeoutError for slow, got %#v", err)
	}
	if _, statErr := os.Stat(filepath.Join(articles.Base(), "slow")); statErr != nil {
		t.Fatalf("expected folder to remain, got %v", statErr)
	}
	ids, _ := articles.IDs(context.Background())
	if len(ids) != 0 {
		t.Fatalf("expected nothing indexed, got %v", ids)
	}

	// Content arriving later is picked up by reconciliation.
	writeArtifacts(t, filepath.Join(articles.Base(), "slow"))
	report, err := articles.SyncIndex(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.Added) != 1 || report.Added[0] != "slow" {
		t.Fatalf("expected slow to be added, got %+v", report)
	}
}

func TestGenerateNotifyFailureRemovesFolder(t *testing.T) {
	articles := newArticles(t)
	engine := engineFunc(func(context.Context, string, string) error {
		return &HTTPError{StatusCode: http.StatusInternalServerError}
	})
	gen := NewArticleGenerator(articles, engine, GeneratorOptions{NewID: fixedID("doomed")})

	_, err := gen.Generate(context.Background(), "hello")
	if !errors.Is(err, ErrNotifyFailed) {
		t.Fatalf("expected ErrNotifyFailed, got %v", err)
	}
	if !IsHTTPStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected engine status preserved, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(articles.Base(), "doomed")); !os.IsNotExist(statErr) {
		t.Fatalf("expected folder removed, got %v", statErr)
	}
	ids, _ := articles.IDs(context.Background())
	if len(ids) != 0 {
		t.Fatalf("expected empty index, got %v", ids)
	}
}

func TestGenerateRejectsEmptyMessage(t *testing.T) {
	gen := NewArticleGenerator(newArticles(t), engineFunc(func(context.Context, string, string) error {
		t.Fatalf("engine must not be called")
		return nil
	}), GeneratorOptions{})
	if _, err := gen.Generate(context.Background(), "   "); !errors.Is(err, entitystore.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEngineGenerateSendsPayload(t *testing.T) {
	var got map[string]string
	var correlation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/webhook/english/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		correlation = r.Header.Get("X-Correlation-Id")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	client := NewEngineClient(EngineOptions{BaseURL: srv.URL + "/webhook/"})
	if err := client.Generate(context.Background(), "write about tides", "req-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got["message"] != "write about tides" || got["request_id"] != "req-1" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if correlation != "req-1" {
		t.Fatalf("expected correlation id req-1, got %q", correlation)
	}
}

func TestEngineRetriesOnlyGatewayStatuses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewEngineClient(EngineOptions{BaseURL: srv.URL, MaxRetries: 3})
	client.baseDelay = time.Millisecond
	if err := client.Generate(context.Background(), "m", "r"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}

	calls.Store(0)
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "workflow crashed", http.StatusInternalServerError)
	}))
	defer failing.Close()
	client = NewEngineClient(EngineOptions{BaseURL: failing.URL, MaxRetries: 3})
	err := client.Generate(context.Background(), "m", "r")
	if !IsHTTPStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry on 500, got %d calls", calls.Load())
	}
}

func TestEngineForwardRelaysResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/english/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	client := NewEngineClient(EngineOptions{BaseURL: srv.URL})
	resp, err := client.Forward(context.Background(), "english/translate", []byte(`{"word":"quay"}`))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"word":"quay"}` {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
	if !client.Reachable(context.Background()) {
		t.Fatalf("expected engine reachable")
	}
}

func TestEngineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	client := NewEngineClient(EngineOptions{BaseURL: url})
	if client.Reachable(context.Background()) {
		t.Fatalf("expected closed server to be unreachable")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("expected 0 for garbage, got %s", got)
	}
	c := NewEngineClient(EngineOptions{})
	if got := c.retryDelay(10, ""); got != c.maxDelay {
		t.Fatalf("expected delay capped at %s, got %s", c.maxDelay, got)
	}
}
