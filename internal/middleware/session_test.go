package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// fakeSessionStore is an in-memory SessionStore that records every
// mutation the guard performs.
type fakeSessionStore struct {
	token      *string
	lastActive *time.Time
	findErr    error
	clearErr   error
	touchErr   error

	clears  int
	touches int
	touched time.Time
}

func (f *fakeSessionStore) FindSession(ctx context.Context, userID uint64) (*string, *time.Time, error) {
	if f.findErr != nil {
		return nil, nil, f.findErr
	}
	return f.token, f.lastActive, nil
}

func (f *fakeSessionStore) ClearSession(ctx context.Context, userID uint64) error {
	f.clears++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.token = nil
	f.lastActive = nil
	return nil
}

func (f *fakeSessionStore) TouchSession(ctx context.Context, userID uint64, now time.Time) error {
	f.touches++
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = now
	f.lastActive = &now
	return nil
}

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

const testLoginURL = "/login"

func guardConfig(now time.Time) SessionGuardConfig {
	return SessionGuardConfig{
		IdleTimeout:   600 * time.Second,
		TouchInterval: 60 * time.Second,
		LoginURL:      testLoginURL,
		Now:           func() time.Time { return now },
	}
}

// runGuard pushes one request carrying the given credential through the
// guard and reports whether the wrapped handler ran.
func runGuard(t *testing.T, store SessionStore, cfg SessionGuardConfig, token string) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(CtxUserID, uint64(1))
	c.Set(CtxSessionToken, token)

	reached := false
	h := SessionGuard(store, cfg)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("guard returned error: %v", err)
	}
	return rec, reached
}

func wantRedirect(t *testing.T, rec *httptest.ResponseRecorder, reason string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location header: %v", err)
	}
	if loc.Path != testLoginURL {
		t.Errorf("redirect path = %q, want %q", loc.Path, testLoginURL)
	}
	if got := loc.Query().Get("reason"); got != reason {
		t.Errorf("reason = %q, want %q", got, reason)
	}
}

// A session idle strictly past the timeout is rejected as expired and
// the stored session is cleared.
func TestSessionGuardExpiresAfterIdleTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		token:      strPtr("tok"),
		lastActive: timePtr(now.Add(-601 * time.Second)),
	}

	rec, reached := runGuard(t, store, guardConfig(now), "tok")

	if reached {
		t.Fatal("handler ran on an expired session")
	}
	wantRedirect(t, rec, ReasonExpired)
	if store.clears != 1 {
		t.Errorf("clears = %d, want 1", store.clears)
	}
}

// Exactly at the timeout boundary the session is still alive: expiry
// requires idle time strictly greater than the limit.
func TestSessionGuardBoundaryIsNotExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		token:      strPtr("tok"),
		lastActive: timePtr(now.Add(-600 * time.Second)),
	}

	rec, reached := runGuard(t, store, guardConfig(now), "tok")

	if !reached {
		t.Fatalf("handler did not run; status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	if store.clears != 0 {
		t.Errorf("clears = %d, want 0", store.clears)
	}
	// 600s idle is well past the touch interval, so activity refreshes.
	if store.touches != 1 {
		t.Errorf("touches = %d, want 1", store.touches)
	}
}

// A token that does not match the stored one is rejected as invalid and
// the stored session is cleared.
func TestSessionGuardRejectsMismatchedToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		token:      strPtr("current"),
		lastActive: timePtr(now.Add(-5 * time.Second)),
	}

	rec, reached := runGuard(t, store, guardConfig(now), "stale")

	if reached {
		t.Fatal("handler ran with a mismatched token")
	}
	wantRedirect(t, rec, ReasonInvalid)
	if store.clears != 1 {
		t.Errorf("clears = %d, want 1", store.clears)
	}
}

// No stored session at all (logged out elsewhere) rejects as invalid.
func TestSessionGuardRejectsWhenNoStoredSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{}

	rec, reached := runGuard(t, store, guardConfig(now), "tok")

	if reached {
		t.Fatal("handler ran without a stored session")
	}
	wantRedirect(t, rec, ReasonInvalid)
}

// An unknown user rejects as invalid, not as a store error.
func TestSessionGuardRejectsUnknownUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{findErr: sql.ErrNoRows}

	rec, reached := runGuard(t, store, guardConfig(now), "tok")

	if reached {
		t.Fatal("handler ran for an unknown user")
	}
	wantRedirect(t, rec, ReasonInvalid)
}

// Activity within the touch interval produces no write at all.
func TestSessionGuardDebouncesRecentActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Second)
	store := &fakeSessionStore{
		token:      strPtr("tok"),
		lastActive: timePtr(last),
	}

	_, reached := runGuard(t, store, guardConfig(now), "tok")

	if !reached {
		t.Fatal("handler did not run on a live session")
	}
	if store.touches != 0 {
		t.Errorf("touches = %d, want 0 inside the debounce window", store.touches)
	}
	if !store.lastActive.Equal(last) {
		t.Errorf("lastActive moved to %v, want unchanged %v", store.lastActive, last)
	}
}

// Activity past the touch interval but inside the idle timeout refreshes
// the timestamp to now.
func TestSessionGuardTouchesStaleActivity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		token:      strPtr("tok"),
		lastActive: timePtr(now.Add(-90 * time.Second)),
	}

	_, reached := runGuard(t, store, guardConfig(now), "tok")

	if !reached {
		t.Fatal("handler did not run on a live session")
	}
	if store.touches != 1 {
		t.Fatalf("touches = %d, want 1", store.touches)
	}
	if !store.touched.Equal(now) {
		t.Errorf("touched = %v, want %v", store.touched, now)
	}
}

// A failed heartbeat write is not fatal: the session was already proven
// live, so the request proceeds.
func TestSessionGuardProceedsWhenTouchFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		token:      strPtr("tok"),
		lastActive: timePtr(now.Add(-90 * time.Second)),
		touchErr:   errors.New("write timeout"),
	}

	_, reached := runGuard(t, store, guardConfig(now), "tok")

	if !reached {
		t.Fatal("handler did not run after a failed heartbeat write")
	}
}

// A store lookup failure rejects with the error reason.  The guard never
// lets an unverifiable session through.
func TestSessionGuardFailsClosedOnStoreError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{findErr: errors.New("connection refused")}

	rec, reached := runGuard(t, store, guardConfig(now), "tok")

	if reached {
		t.Fatal("handler ran while the store was unreachable")
	}
	wantRedirect(t, rec, ReasonError)
}

// A session with no recorded activity timestamp counts as stale.
func TestSessionGuardTreatsMissingTimestampAsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{token: strPtr("tok")}

	rec, reached := runGuard(t, store, guardConfig(now), "tok")

	if reached {
		t.Fatal("handler ran with no activity timestamp on record")
	}
	wantRedirect(t, rec, ReasonExpired)
}

// Requests with no credential in the context pass through untouched.
func TestSessionGuardIgnoresUnauthenticatedRequests(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	store := &fakeSessionStore{findErr: errors.New("must not be called")}
	reached := false
	h := SessionGuard(store, guardConfig(time.Now()))(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("guard returned error: %v", err)
	}
	if !reached {
		t.Fatal("handler did not run without a credential")
	}
}
