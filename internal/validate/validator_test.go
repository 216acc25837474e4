package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/originpoint/internal/classify"
	"github.com/ppiankov/originpoint/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	validateSleepFunc = func(d time.Duration) {}
}

func newTestValidator(robots bool) *Validator {
	return NewValidator(Options{Timeout: 5 * time.Second, Workers: 4, RespectRobots: robots}, nil)
}

func TestValidator_CheckSingle_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "OriginPoint/") {
			t.Errorf("Unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(false).checkSingle(context.Background(), server.URL, false)

	if !result.IsAccessible || result.IsDead {
		t.Errorf("Expected accessible link, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", result.StatusCode)
	}
}

func TestValidator_CheckSingle_404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := newTestValidator(false).checkSingle(context.Background(), server.URL, false)

	if result.IsAccessible {
		t.Error("Expected 404 link not to be accessible")
	}
	if !result.IsDead {
		t.Error("Expected 404 link to be marked as dead")
	}
}

func TestValidator_CheckSingle_HeadNotAllowedFallsBackToGet(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(false).checkSingle(context.Background(), server.URL, false)

	if !result.IsAccessible {
		t.Errorf("Expected GET fallback to succeed, got %+v", result)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != "HEAD,GET" {
		t.Errorf("Unexpected request methods: %v", methods)
	}
}

func TestValidator_CheckSingle_Redirect(t *testing.T) {
	finalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer finalServer.Close()

	redirectServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalServer.URL, http.StatusMovedPermanently)
	}))
	defer redirectServer.Close()

	result := newTestValidator(false).checkSingle(context.Background(), redirectServer.URL, false)

	if !result.IsAccessible {
		t.Error("Expected redirect target to be accessible")
	}
	if !strings.HasPrefix(result.RedirectURL, finalServer.URL) {
		t.Errorf("Expected redirect URL %s, got %s", finalServer.URL, result.RedirectURL)
	}
}

func TestValidator_CheckSingle_ReadsTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET when a title is wanted, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>\n  County Probate\n Court &amp; Records </title></head><body>x</body></html>"))
	}))
	defer server.Close()

	result := newTestValidator(false).checkSingle(context.Background(), server.URL, true)

	if result.PageTitle != "County Probate Court & Records" {
		t.Errorf("Unexpected page title %q", result.PageTitle)
	}
}

func TestValidator_CheckSingle_RobotsBlocked(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /archive\n"))
			return
		}
		pageHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(true).checkSingle(context.Background(), server.URL+"/archive/1", false)

	if !result.BlockedRobots || result.IsAccessible {
		t.Errorf("Expected blocked by robots, got %+v", result)
	}
	if pageHits.Load() != 0 {
		t.Error("A disallowed page must not be requested")
	}
}

func TestValidator_Audit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /blocked\n"))
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/titled":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<title>1880 Federal Census Index</title>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	sources := []model.GroundingSource{
		{Title: "Ok page", URI: server.URL + "/ok", Category: model.CategoryWeb},
		{Title: "Web Source", URI: server.URL + "/titled", Category: model.CategoryWeb},
		{Title: "Blocked", URI: server.URL + "/blocked", Category: model.CategoryWeb},
		{Title: "Gone", URI: server.URL + "/gone", Category: model.CategoryWeb},
	}

	report := newTestValidator(true).Audit(context.Background(), sources, classify.NewArchival())

	if len(report.Checks) != 4 {
		t.Fatalf("Expected 4 checks, got %d", len(report.Checks))
	}
	// (1 + 1 + 0.5 + 0) / 4 = 62.5 -> 63
	if report.Score == nil || *report.Score != 63 {
		t.Errorf("Unexpected score %v", report.Score)
	}
	if report.Sources[1].Title != "1880 Federal Census Index" {
		t.Errorf("Expected title refined from page, got %q", report.Sources[1].Title)
	}
	if report.Sources[1].Category != model.CategoryCensus {
		t.Errorf("Expected reclassification to census, got %s", report.Sources[1].Category)
	}
	if sources[1].Title != "Web Source" {
		t.Error("Audit must not modify the caller's sources")
	}
	if report.Sources[0].Category != model.CategoryWeb {
		t.Errorf("Unrefined source should keep its category, got %s", report.Sources[0].Category)
	}
}

func TestValidator_Audit_Empty(t *testing.T) {
	report := newTestValidator(false).Audit(context.Background(), nil, nil)
	if report.Score != nil {
		t.Errorf("Expected no score for no sources, got %d", *report.Score)
	}
	if len(report.Checks) != 0 {
		t.Errorf("Expected no checks, got %d", len(report.Checks))
	}
}

func TestValidator_Audit_Concurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sources := make([]model.GroundingSource, 12)
	for i := range sources {
		sources[i] = model.GroundingSource{Title: "t", URI: server.URL + "/" + string(rune('a'+i))}
	}

	v := NewValidator(Options{Timeout: 5 * time.Second, Workers: 3}, nil)
	report := v.Audit(context.Background(), sources, nil)

	if *report.Score != 100 {
		t.Errorf("Expected all accessible, got score %d", *report.Score)
	}
	if peak.Load() > 3 {
		t.Errorf("Expected at most 3 concurrent checks, saw %d", peak.Load())
	}
}

func TestCheckWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestValidator(false).checkWithRetry(context.Background(), server.URL, false)

	if !result.IsAccessible {
		t.Errorf("Expected success after retries, got %+v", result)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_PermanentFailureNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	result := newTestValidator(false).checkWithRetry(context.Background(), server.URL, false)

	if !result.IsDead {
		t.Error("Expected 410 to be dead")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestCheckWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_ = newTestValidator(false).checkWithRetry(context.Background(), server.URL, false)

	if attempts.Load() != validateMaxRetries {
		t.Errorf("Expected %d attempts, got %d", validateMaxRetries, attempts.Load())
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []model.SourceCheck
		want   int
	}{
		{"empty", nil, 0},
		{"all accessible", []model.SourceCheck{{IsAccessible: true}, {IsAccessible: true}}, 100},
		{"all dead", []model.SourceCheck{{IsDead: true}}, 0},
		{"robots half", []model.SourceCheck{{BlockedRobots: true}, {IsAccessible: true}}, 75},
		{"thirds", []model.SourceCheck{{IsAccessible: true}, {IsDead: true}, {IsDead: true}}, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.checks); got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNeedsTitle(t *testing.T) {
	tests := []struct {
		src  model.GroundingSource
		want bool
	}{
		{model.GroundingSource{Title: "", URI: "https://a.example.com/x"}, true},
		{model.GroundingSource{Title: "Web Source", URI: "https://a.example.com/x"}, true},
		{model.GroundingSource{Title: "a.example.com", URI: "https://www.a.example.com/x"}, true},
		{model.GroundingSource{Title: "County deed index", URI: "https://a.example.com/x"}, false},
	}
	for _, tt := range tests {
		if got := needsTitle(tt.src); got != tt.want {
			t.Errorf("needsTitle(%+v) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		result model.SourceCheck
		want   bool
	}{
		{model.SourceCheck{StatusCode: 500}, true},
		{model.SourceCheck{StatusCode: 429}, true},
		{model.SourceCheck{StatusCode: 404}, false},
		{model.SourceCheck{Error: "request failed: dial tcp: i/o timeout"}, true},
		{model.SourceCheck{Error: "connection refused"}, true},
		{model.SourceCheck{Error: "unsupported protocol scheme"}, false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.result); got != tt.want {
			t.Errorf("isRetryable(%+v) = %v, want %v", tt.result, got, tt.want)
		}
	}
}
