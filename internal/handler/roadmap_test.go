package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/my-roadmap/roadmap-api/internal/config"
	"github.com/my-roadmap/roadmap-api/internal/middleware"
	"github.com/my-roadmap/roadmap-api/internal/model"
	"github.com/my-roadmap/roadmap-api/internal/queue"
	"github.com/my-roadmap/roadmap-api/internal/repository"
)

// fakeRoadmapStore keeps roadmaps and a single user's credit balance in
// memory.  The mutex makes debit-plus-insert atomic the way the real
// repository's database transaction is.
type fakeRoadmapStore struct {
	mu      sync.Mutex
	nextID  uint64
	credits int64
	rows    map[uint64]*model.Roadmap
}

func newFakeRoadmapStore(credits int64) *fakeRoadmapStore {
	return &fakeRoadmapStore{credits: credits, rows: make(map[uint64]*model.Roadmap)}
}

func (f *fakeRoadmapStore) CreateWithDebit(ctx context.Context, rm *model.Roadmap) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credits <= 0 {
		return 0, repository.ErrInsufficientCredits
	}
	f.credits--
	f.nextID++
	rm.ID = f.nextID
	cp := *rm
	f.rows[rm.ID] = &cp
	return f.credits, nil
}

func (f *fakeRoadmapStore) ListByUser(ctx context.Context, userID uint64) ([]model.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Roadmap, 0, len(f.rows))
	for _, rm := range f.rows {
		if rm.UserID == userID {
			out = append(out, *rm)
		}
	}
	return out, nil
}

func (f *fakeRoadmapStore) GetForUser(ctx context.Context, id, userID uint64) (model.Roadmap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.rows[id]
	if !ok || rm.UserID != userID {
		return model.Roadmap{}, repository.ErrRoadmapNotFound
	}
	return *rm, nil
}

func (f *fakeRoadmapStore) MarkFailed(ctx context.Context, id uint64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.rows[id]
	if !ok || rm.Status != model.RoadmapProcessing {
		return false, nil
	}
	rm.Status = model.RoadmapFailed
	rm.CompletedAt = sql.NullTime{Time: now, Valid: true}
	return true, nil
}

func (f *fakeRoadmapStore) balance() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credits
}

func (f *fakeRoadmapStore) statusOf(id uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rm, ok := f.rows[id]; ok {
		return rm.Status
	}
	return ""
}

func testRoadmapHandler(store RoadmapStore) *RoadmapHandler {
	return &RoadmapHandler{
		Cfg:      config.Config{RoadmapTTLDays: 30},
		Roadmaps: store,
		Publish:  func(ctx context.Context, ev queue.RoadmapRequestedEvent) error { return nil },
	}
}

func createRequest(h *RoadmapHandler, uid uint64, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/roadmaps", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxUserID, uid)
	_ = h.Create(c)
	return rec
}

// With K credits and N>K concurrent requests, exactly K roadmaps are
// created and the balance lands on zero.  No interleaving may overspend.
func TestCreateRoadmapConcurrentDebits(t *testing.T) {
	const credits = 3
	const requests = 12

	store := newFakeRoadmapStore(credits)
	h := testRoadmapHandler(store)

	codes := make([]int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := createRequest(h, 1, `{"target_role":"Backend Engineer"}`)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	created, denied := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusPaymentRequired:
			denied++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if created != credits {
		t.Errorf("created = %d, want %d", created, credits)
	}
	if denied != requests-credits {
		t.Errorf("denied = %d, want %d", denied, requests-credits)
	}
	if got := store.balance(); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

// A zero-credit user gets 402 and no roadmap row.
func TestCreateRoadmapInsufficientCredits(t *testing.T) {
	store := newFakeRoadmapStore(0)
	h := testRoadmapHandler(store)

	rec := createRequest(h, 1, `{"target_role":"Data Engineer"}`)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
	if len(store.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(store.rows))
	}
}

func TestCreateRoadmapRequiresTargetRole(t *testing.T) {
	store := newFakeRoadmapStore(5)
	h := testRoadmapHandler(store)

	rec := createRequest(h, 1, `{"target_role":"  "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := store.balance(); got != 5 {
		t.Errorf("balance = %d, want 5 (validation must not debit)", got)
	}
}

// When the queue publish fails the roadmap flips to FAILED instead of
// sitting in PROCESSING forever.  The credit stays spent; support
// handles refunds.
func TestCreateRoadmapMarksFailedOnPublishError(t *testing.T) {
	store := newFakeRoadmapStore(1)
	h := testRoadmapHandler(store)
	h.Publish = func(ctx context.Context, ev queue.RoadmapRequestedEvent) error {
		return errors.New("broker down")
	}

	rec := createRequest(h, 1, `{"target_role":"SRE"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := store.statusOf(1); got != model.RoadmapFailed {
		t.Errorf("status = %q, want FAILED", got)
	}
}

// The published event carries the request fields and the request time,
// so the consumer can build the prompt without another database read.
func TestCreateRoadmapPublishesEvent(t *testing.T) {
	store := newFakeRoadmapStore(1)
	h := testRoadmapHandler(store)
	var published queue.RoadmapRequestedEvent
	h.Publish = func(ctx context.Context, ev queue.RoadmapRequestedEvent) error {
		published = ev
		return nil
	}

	rec := createRequest(h, 7, `{"target_role":"Backend Engineer","target_company":"Acme","focus":"system design"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if published.RoadmapID != 1 || published.UserID != 7 {
		t.Errorf("event ids = %d/%d, want 1/7", published.RoadmapID, published.UserID)
	}
	if published.TargetRole != "Backend Engineer" || published.TargetCompany != "Acme" || published.Focus != "system design" {
		t.Errorf("event fields = %+v", published)
	}
	if published.RequestedAt.IsZero() {
		t.Error("event carries no request time")
	}
}

// Past expires_at the row is still readable with its status, but the
// generated content is withheld.
func TestGetRoadmapWithholdsExpiredContent(t *testing.T) {
	store := newFakeRoadmapStore(0)
	now := time.Now().UTC()
	store.rows[1] = &model.Roadmap{
		ID:          1,
		UserID:      1,
		TargetRole:  "Backend Engineer",
		Status:      model.RoadmapCompleted,
		Content:     sql.NullString{String: "Week 1: fundamentals", Valid: true},
		CreatedAt:   now.AddDate(0, 0, -40),
		CompletedAt: sql.NullTime{Time: now.AddDate(0, 0, -40), Valid: true},
		ExpiresAt:   now.AddDate(0, 0, -10),
	}
	h := testRoadmapHandler(store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/roadmaps/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxUserID, uint64(1))
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.Get(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Roadmap map[string]any `json:"roadmap"`
		Expired bool           `json:"expired"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Expired {
		t.Error("response does not flag the roadmap as expired")
	}
	if body.Roadmap["status"] != model.RoadmapCompleted {
		t.Errorf("status = %v, want COMPLETED", body.Roadmap["status"])
	}
	if _, ok := body.Roadmap["content"]; ok {
		t.Error("expired roadmap response carries content")
	}
}

func TestGetRoadmapScopedToOwner(t *testing.T) {
	store := newFakeRoadmapStore(2)
	h := testRoadmapHandler(store)

	if rec := createRequest(h, 1, `{"target_role":"Platform Engineer"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", rec.Code)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/roadmaps/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxUserID, uint64(2)) // not the owner
	c.SetParamNames("id")
	c.SetParamValues("1")
	_ = h.Get(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d for another user's roadmap", rec.Code, http.StatusNotFound)
	}
}
