package handler

import (
    "errors"

    "github.com/labstack/echo/v4"

    "github.com/my-roadmap/roadmap-api/internal/middleware"
)

// getUserID extracts the authenticated user's ID placed in the context by
// the JWT middleware.  An error means the route was wired without
// authentication, which handlers report as 401.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get(middleware.CtxUserID)
    id, ok := v.(uint64)
    if !ok || id == 0 {
        return 0, errors.New("no authenticated user in context")
    }
    return id, nil
}
