package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"quizforge/internal/bank"
)

type staticSource []string

func (s staticSource) Load(ctx context.Context) ([]string, error) {
	return []string(s), nil
}

func newSmokeRouter(t *testing.T) http.Handler {
	t.Helper()
	return newSmokeRouterWithConfig(t, Config{
		CSRFEnforced:           false,
		SelectRateLimitPerMin:  60,
		SessionRateLimitPerMin: 60,
		SessionTTLMinutes:      5,
	})
}

func newSmokeRouterWithConfig(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	reg := bank.NewRegistry(zap.NewNop())
	reg.Register("demo", staticSource{
		"question: What is 2+2?\n4, 3, 5, 6",
		"question: Capital of France?\nParis, London, Berlin, Rome",
	})
	return NewRouter(cfg, Deps{Banks: reg, Logger: zap.NewNop()})
}

func TestFrontendSmokePublicRoutes(t *testing.T) {
	restore := chdirToRepoRoot(t)
	defer restore()

	router := newSmokeRouter(t)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{name: "home", method: http.MethodGet, target: "/", wantStatus: http.StatusOK},
		{name: "quiz_page", method: http.MethodGet, target: "/quiz/demo", wantStatus: http.StatusOK},
		{name: "quiz_page_unknown_bank", method: http.MethodGet, target: "/quiz/nope", wantStatus: http.StatusNotFound},
		{name: "healthz", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK},
		{name: "static_css", method: http.MethodGet, target: "/static/css/app.css?v=test", wantStatus: http.StatusOK},
		{name: "static_js", method: http.MethodGet, target: "/static/js/quiz.js?v=test", wantStatus: http.StatusOK},
		{name: "banks", method: http.MethodGet, target: "/api/v1/banks", wantStatus: http.StatusOK},
		{name: "session_invalid_body", method: http.MethodPost, target: "/api/v1/sessions", wantStatus: http.StatusBadRequest},
		{name: "session_bad_id", method: http.MethodGet, target: "/api/v1/sessions/123", wantStatus: http.StatusBadRequest},
		{name: "admin_reload_disabled", method: http.MethodPost, target: "/api/v1/admin/banks/reload", wantStatus: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("%s %s: got status %d, want %d", tc.method, tc.target, w.Code, tc.wantStatus)
			}
		})
	}
}

func TestFrontendQuizPageMountsMarkup(t *testing.T) {
	restore := chdirToRepoRoot(t)
	defer restore()

	router := newSmokeRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/quiz/demo", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`id="quiz-container"`,
		`<div class="question" id="q1">`,
		`<div class="question" id="q2">`,
		`name="q2" value="d"`,
		`/static/js/quiz.js`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("quiz page missing %q", want)
		}
	}
	if strings.Contains(body, "&lt;div class=") {
		t.Fatalf("question markup was escaped twice")
	}

	var csrf bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrf = true
		}
	}
	if !csrf {
		t.Fatalf("quiz page should issue a csrf cookie")
	}
}

func TestFrontendQuizPageIsRateLimited(t *testing.T) {
	restore := chdirToRepoRoot(t)
	defer restore()

	router := newSmokeRouterWithConfig(t, Config{
		SelectRateLimitPerMin:  60,
		SessionRateLimitPerMin: 1,
		SessionTTLMinutes:      5,
	})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/quiz/demo", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("load %d: got status %d, want %d", i+1, w.Code, want)
		}
	}
}

func chdirToRepoRoot(t *testing.T) func() {
	t.Helper()

	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		if fileExists(filepath.Join(dir, "go.mod")) && fileExists(filepath.Join(dir, "web", "templates", "layout", "base.html")) {
			if err := os.Chdir(dir); err != nil {
				t.Fatalf("chdir to repo root %s: %v", dir, err)
			}
			return func() {
				_ = os.Chdir(start)
			}
		}

		next := filepath.Dir(dir)
		if next == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = next
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
