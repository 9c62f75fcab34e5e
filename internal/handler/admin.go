package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/my-roadmap/roadmap-api/internal/repository"
)

// AdminHandler holds endpoints restricted to the ADMIN role.
type AdminHandler struct {
	Users *repository.UserRepo
}

func NewAdminHandler(u *repository.UserRepo) *AdminHandler {
	return &AdminHandler{Users: u}
}

type grantReq struct {
	Credits int64 `json:"credits"`
}

// GrantCredits adds credits to a user's balance outside the payment
// flow, for support and promotional use.
func (h *AdminHandler) GrantCredits(c echo.Context) error {
	uid, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || uid == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req grantReq
	if err := c.Bind(&req); err != nil || req.Credits <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credits must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	balance, err := h.Users.Grant(ctx, uid, req.Credits)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "grant failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "credits": balance})
}
