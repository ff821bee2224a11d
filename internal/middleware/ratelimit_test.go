package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/jobmatch/internal/model"
)

func newTestRateLimiter(t *testing.T, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Limit(1.0 / 60.0),
		Burst:           burst,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/users/1", nil)
	if userID == "" {
		return req
	}
	ctx := ContextWithPrincipal(context.Background(), &model.Principal{UserID: userID, Source: model.PrincipalSourceSession})
	return req.WithContext(ctx)
}

func TestRateLimiter_BurstExceeded_Returns429(t *testing.T) {
	rl := newTestRateLimiter(t, 2)
	handler := rl.Middleware(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestRateLimiter_IndependentPerUser(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	handler := rl.Middleware(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("user-2: status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := rl.LimiterCount(); got != 2 {
		t.Errorf("LimiterCount() = %d, want %d", got, 2)
	}
}

func TestRateLimiter_AnonymousKeyedByIP(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	handler := rl.Middleware(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(""))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimiter_Cleanup_RemovesStaleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 5)
	rl.getOrCreate("user:stale")

	rl.cleanup(time.Now().Add(3 * time.Minute))

	if got := rl.LimiterCount(); got != 0 {
		t.Errorf("LimiterCount() = %d, want 0", got)
	}
}

func TestRateLimiter_StopTwice_DoesNotPanic(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	rl.Stop()
	rl.Stop()
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120)
	if cfg.Rate != rate.Limit(2) {
		t.Errorf("Rate = %v, want %v", cfg.Rate, rate.Limit(2))
	}
	if cfg.Burst != 120 {
		t.Errorf("Burst = %d, want %d", cfg.Burst, 120)
	}
}
