package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/my-roadmap/roadmap-api/internal/config"
	"github.com/my-roadmap/roadmap-api/internal/model"
	"github.com/my-roadmap/roadmap-api/internal/queue"
	"github.com/my-roadmap/roadmap-api/internal/repository"
	queue_publisher "github.com/my-roadmap/roadmap-api/internal/service"
)

// RoadmapStore is the persistence surface the roadmap endpoints need.
// *repository.RoadmapRepo satisfies it against MySQL.
type RoadmapStore interface {
	CreateWithDebit(ctx context.Context, rm *model.Roadmap) (int64, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Roadmap, error)
	GetForUser(ctx context.Context, id uint64, userID uint64) (model.Roadmap, error)
	MarkFailed(ctx context.Context, id uint64, now time.Time) (bool, error)
}

// RoadmapHandler owns roadmap creation and retrieval.  Publish defaults
// to the RabbitMQ publisher and is a field so tests can swap it out.
type RoadmapHandler struct {
	Cfg      config.Config
	Roadmaps RoadmapStore
	Publish  func(ctx context.Context, ev queue.RoadmapRequestedEvent) error
}

func NewRoadmapHandler(cfg config.Config, store RoadmapStore) *RoadmapHandler {
	return &RoadmapHandler{
		Cfg:      cfg,
		Roadmaps: store,
		Publish:  queue_publisher.PublishRoadmapRequested,
	}
}

type createRoadmapReq struct {
	TargetRole    string `json:"target_role"`
	TargetCompany string `json:"target_company"`
	Experience    string `json:"experience"`
	Focus         string `json:"focus"`
}

type roadmapResp struct {
	ID            uint64     `json:"id"`
	TargetRole    string     `json:"target_role"`
	TargetCompany string     `json:"target_company,omitempty"`
	Status        string     `json:"status"`
	Content       string     `json:"content,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

func toRoadmapResp(rm *model.Roadmap, withContent bool) roadmapResp {
	resp := roadmapResp{
		ID:            rm.ID,
		TargetRole:    rm.TargetRole,
		TargetCompany: rm.TargetCompany,
		Status:        rm.Status,
		CreatedAt:     rm.CreatedAt,
		ExpiresAt:     rm.ExpiresAt,
	}
	if withContent && rm.Content.Valid {
		resp.Content = rm.Content.String
	}
	if rm.CompletedAt.Valid {
		t := rm.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

// Create spends one credit and queues a roadmap for generation.  The
// debit and the row insert commit in one database transaction, so a
// user without credits never gets a roadmap and a failed insert never
// costs a credit.  The queue publish happens after commit; if it fails
// the roadmap is marked FAILED rather than left stuck in PROCESSING.
func (h *RoadmapHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createRoadmapReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.TargetRole = strings.TrimSpace(req.TargetRole)
	if req.TargetRole == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "target_role required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	rm := &model.Roadmap{
		UserID:        uid,
		TargetRole:    req.TargetRole,
		TargetCompany: strings.TrimSpace(req.TargetCompany),
		Experience:    strings.TrimSpace(req.Experience),
		Focus:         strings.TrimSpace(req.Focus),
		Status:        model.RoadmapProcessing,
		CreatedAt:     now,
		ExpiresAt:     now.AddDate(0, 0, h.Cfg.RoadmapTTLDays),
	}

	balance, err := h.Roadmaps.CreateWithDebit(ctx, rm)
	if err != nil {
		if err == repository.ErrInsufficientCredits {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient credits"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create roadmap failed"})
	}

	ev := queue.RoadmapRequestedEvent{
		RoadmapID:     rm.ID,
		UserID:        uid,
		TargetRole:    rm.TargetRole,
		TargetCompany: rm.TargetCompany,
		Experience:    rm.Experience,
		Focus:         rm.Focus,
		RequestedAt:   now,
	}
	if err := h.Publish(ctx, ev); err != nil {
		log.Printf("roadmap %d: publish failed: %v", rm.ID, err)
		if _, mErr := h.Roadmaps.MarkFailed(ctx, rm.ID, time.Now().UTC()); mErr != nil {
			log.Printf("roadmap %d: mark failed after publish error: %v", rm.ID, mErr)
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "generation queue unavailable"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"roadmap": toRoadmapResp(rm, false),
		"credits": balance,
	})
}

// List returns the caller's roadmaps without content.
func (h *RoadmapHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Roadmaps.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list roadmaps failed"})
	}
	out := make([]roadmapResp, 0, len(items))
	for i := range items {
		out = append(out, toRoadmapResp(&items[i], false))
	}
	return c.JSON(http.StatusOK, echo.Map{"roadmaps": out})
}

// Get returns a single roadmap owned by the caller.  Content is
// withheld once the roadmap has passed its expiry date; the row itself
// is still visible.
func (h *RoadmapHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid roadmap id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rm, err := h.Roadmaps.GetForUser(ctx, id, uid)
	if err != nil {
		if err == repository.ErrRoadmapNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "roadmap not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load roadmap failed"})
	}

	withContent := time.Now().UTC().Before(rm.ExpiresAt)
	resp := toRoadmapResp(&rm, withContent)
	if !withContent {
		return c.JSON(http.StatusOK, echo.Map{"roadmap": resp, "expired": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"roadmap": resp})
}
