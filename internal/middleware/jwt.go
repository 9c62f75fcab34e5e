package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strconv"  // numeric claim conversion
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// Context keys populated by JWTAuth for downstream middleware and handlers.
const (
    CtxUserID       = "user_id"       // uint64 user identifier from the sub claim
    CtxRole         = "role"          // role claim string
    CtxSessionToken = "session_token" // the raw presented credential
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the subject, role and the raw token string into the request
// context.  The provided secret must match the one used when issuing
// tokens.  This middleware only establishes structural validity (signature
// and exp claim); the session guard that runs after it decides whether the
// credential is still the live one for the user.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Parse with the HS256 secret.  The callback pins the signing
            // method; tokens signed with anything else are rejected.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            // The sub claim is the numeric user ID.  JSON numbers decode
            // as float64; strings are parsed for tolerance.
            var uid uint64
            switch sub := claims["sub"].(type) {
            case float64:
                uid = uint64(sub)
            case string:
                if parsed, err := strconv.ParseUint(sub, 10, 64); err == nil {
                    uid = parsed
                }
            }
            if uid == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
            }

            role, _ := claims["role"].(string)
            c.Set(CtxUserID, uid)
            c.Set(CtxRole, role)
            c.Set(CtxSessionToken, raw)
            return next(c)
        }
    }
}
