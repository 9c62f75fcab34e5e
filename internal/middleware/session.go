package middleware

import (
    "context"
    "database/sql"
    "net/http"
    "net/url"
    "time"

    "github.com/labstack/echo/v4"
)

// Session rejection reason codes.  The guard attaches one of these to the
// login redirect so the page can explain why re-authentication is needed.
const (
    ReasonInvalid = "SessionInvalid" // presented credential is not the live one
    ReasonExpired = "SessionExpired" // credential was live but idle too long
    ReasonError   = "SessionError"   // store failure; ambiguity resolves to reject
)

// SessionStore is the minimal persistence surface the guard needs.  It is
// implemented by repository.UserRepo; tests substitute an in-memory fake.
// FindSession returns nil pointers for absent token or timestamp and an
// error (including sql.ErrNoRows for a missing user) on lookup failure.
type SessionStore interface {
    FindSession(ctx context.Context, userID uint64) (token *string, lastActive *time.Time, err error)
    ClearSession(ctx context.Context, userID uint64) error
    TouchSession(ctx context.Context, userID uint64, now time.Time) error
}

// SessionGuardConfig carries the guard's thresholds and redirect target.
type SessionGuardConfig struct {
    IdleTimeout   time.Duration // inactivity after which the session dies (600 s)
    TouchInterval time.Duration // minimum gap between activity writes (60 s)
    LoginURL      string        // redirect target for rejections
    Now           func() time.Time // clock; nil means time.Now
}

// SessionGuard returns an Echo middleware enforcing the single-live-session
// model.  It must run after JWTAuth, which proves the credential's
// signature and puts the user ID and raw token in the context.  The guard
// then checks two things against the store: that the presented token is
// the canonical one on record for the user, and that the session has not
// been idle past the configured timeout.
//
// Outcomes:
//   - token matches and the session was active within TouchInterval:
//     proceed with no write.
//   - token matches, idle for more than TouchInterval but not past
//     IdleTimeout: refresh last-activity to now (debounced heartbeat) and
//     proceed.
//   - idle strictly past IdleTimeout: clear the stored session and
//     redirect with reason SessionExpired.  A missing timestamp counts as
//     infinitely stale.
//   - token mismatch or stored token absent: clear the stored session
//     defensively and redirect with reason SessionInvalid.  An unknown
//     user rejects the same way, with nothing left to clear.
//   - any store failure: redirect with reason SessionError.  The guard
//     fails closed; "unknown" never resolves to "valid".
//
// Requests with no credential in the context pass through untouched: the
// guard only applies where JWTAuth ran before it.
func SessionGuard(store SessionStore, cfg SessionGuardConfig) echo.MiddlewareFunc {
    now := cfg.Now
    if now == nil {
        now = time.Now
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uidVal := c.Get(CtxUserID)
            tokVal := c.Get(CtxSessionToken)
            if uidVal == nil || tokVal == nil {
                return next(c)
            }
            uid, okU := uidVal.(uint64)
            presented, okT := tokVal.(string)
            if !okU || !okT || uid == 0 || presented == "" {
                return next(c)
            }

            ctx := c.Request().Context()
            stored, lastActive, err := store.FindSession(ctx, uid)
            if err == sql.ErrNoRows {
                // The credential names a user that no longer exists.
                return reject(c, cfg.LoginURL, ReasonInvalid)
            }
            if err != nil {
                return reject(c, cfg.LoginURL, ReasonError)
            }
            if stored == nil || *stored != presented {
                _ = store.ClearSession(ctx, uid)
                return reject(c, cfg.LoginURL, ReasonInvalid)
            }

            // Missing timestamp means the session predates activity
            // tracking; treat it as infinitely stale.
            t := now().UTC()
            elapsed := cfg.IdleTimeout + time.Second
            if lastActive != nil {
                elapsed = t.Sub(lastActive.UTC())
            }
            if elapsed > cfg.IdleTimeout {
                _ = store.ClearSession(ctx, uid)
                return reject(c, cfg.LoginURL, ReasonExpired)
            }
            if elapsed > cfg.TouchInterval {
                if err := store.TouchSession(ctx, uid, t); err != nil {
                    // The heartbeat is best-effort; the session stays
                    // valid and the next request retries the write.
                    c.Logger().Warnf("session touch failed for user %d: %v", uid, err)
                }
            }
            return next(c)
        }
    }
}

// reject redirects the caller to the login page with the reason code as a
// query parameter.
func reject(c echo.Context, loginURL, reason string) error {
    return c.Redirect(http.StatusSeeOther, loginURL+"?reason="+url.QueryEscape(reason))
}
