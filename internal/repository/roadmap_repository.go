package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/my-roadmap/roadmap-api/internal/model"
)

// RoadmapRepo provides CRUD operations for roadmaps.  Creation is coupled
// to the credit debit: a roadmap row in PROCESSING state only ever exists
// alongside a durably applied debit, and the two are written in one
// database transaction so no concurrent reader can observe one without
// the other.  All timestamp fields are stored in UTC.
type RoadmapRepo struct {
    db    *sql.DB
    users *UserRepo
}

// NewRoadmapRepo returns a RoadmapRepo bound to the given database.
func NewRoadmapRepo(db *sql.DB, users *UserRepo) *RoadmapRepo {
    return &RoadmapRepo{db: db, users: users}
}

// DB exposes the underlying handle for callers that need to open their
// own transactions.
func (r *RoadmapRepo) DB() *sql.DB { return r.db }

// CreateWithDebit atomically debits one credit from the owner and inserts
// the roadmap in PROCESSING state.  It populates the generated ID on the
// provided record and returns the post-debit balance.  When the owner's
// balance is zero it returns ErrInsufficientCredits and writes nothing.
func (r *RoadmapRepo) CreateWithDebit(ctx context.Context, rm *model.Roadmap) (int64, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    applied, err := r.users.DebitCreditTx(ctx, tx, rm.UserID)
    if err != nil {
        return 0, err
    }
    if !applied {
        return 0, ErrInsufficientCredits
    }

    const q = `INSERT INTO roadmaps
               (user_id, target_role, target_company, experience, focus, status, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, rm.UserID, rm.TargetRole, rm.TargetCompany,
        rm.Experience, rm.Focus, model.RoadmapProcessing, rm.ExpiresAt.UTC())
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    rm.ID = uint64(id)
    rm.Status = model.RoadmapProcessing

    balance, err := r.users.CreditsTx(ctx, tx, rm.UserID)
    if err != nil {
        return 0, err
    }
    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true
    return balance, nil
}

// GetForUser returns a roadmap owned by the given user.
// ErrRoadmapNotFound is returned when no such row exists; a roadmap owned
// by someone else is indistinguishable from a missing one.
func (r *RoadmapRepo) GetForUser(ctx context.Context, roadmapID, userID uint64) (model.Roadmap, error) {
    const q = `SELECT id, user_id, target_role, target_company, experience, focus,
                      status, content, created_at, completed_at, expires_at
               FROM roadmaps WHERE id = ? AND user_id = ? LIMIT 1`
    var rm model.Roadmap
    err := r.db.QueryRowContext(ctx, q, roadmapID, userID).Scan(
        &rm.ID, &rm.UserID, &rm.TargetRole, &rm.TargetCompany, &rm.Experience, &rm.Focus,
        &rm.Status, &rm.Content, &rm.CreatedAt, &rm.CompletedAt, &rm.ExpiresAt)
    if err == sql.ErrNoRows {
        return model.Roadmap{}, ErrRoadmapNotFound
    }
    return rm, err
}

// ListByUser returns all of a user's roadmaps, newest first, without the
// content column (listings only need metadata).
func (r *RoadmapRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Roadmap, error) {
    const q = `SELECT id, user_id, target_role, target_company, experience, focus,
                      status, created_at, completed_at, expires_at
               FROM roadmaps WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Roadmap, 0)
    for rows.Next() {
        var rm model.Roadmap
        if err := rows.Scan(&rm.ID, &rm.UserID, &rm.TargetRole, &rm.TargetCompany,
            &rm.Experience, &rm.Focus, &rm.Status, &rm.CreatedAt, &rm.CompletedAt,
            &rm.ExpiresAt); err != nil {
            return nil, err
        }
        out = append(out, rm)
    }
    return out, rows.Err()
}

// Get returns a roadmap by ID regardless of owner.  Used by the
// generation consumer, which receives the ID from the queue.
func (r *RoadmapRepo) Get(ctx context.Context, roadmapID uint64) (model.Roadmap, error) {
    const q = `SELECT id, user_id, target_role, target_company, experience, focus,
                      status, content, created_at, completed_at, expires_at
               FROM roadmaps WHERE id = ? LIMIT 1`
    var rm model.Roadmap
    err := r.db.QueryRowContext(ctx, q, roadmapID).Scan(
        &rm.ID, &rm.UserID, &rm.TargetRole, &rm.TargetCompany, &rm.Experience, &rm.Focus,
        &rm.Status, &rm.Content, &rm.CreatedAt, &rm.CompletedAt, &rm.ExpiresAt)
    if err == sql.ErrNoRows {
        return model.Roadmap{}, ErrRoadmapNotFound
    }
    return rm, err
}

// MarkCompleted sets the generated content and the COMPLETED status, but
// only while the roadmap is still PROCESSING.  Content is therefore set
// exactly once; a duplicate delivery of the generation event is a no-op.
// It reports whether the transition was applied.
func (r *RoadmapRepo) MarkCompleted(ctx context.Context, roadmapID uint64, content string, now time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        "UPDATE roadmaps SET status=?, content=?, completed_at=? WHERE id=? AND status=?",
        model.RoadmapCompleted, content, now.UTC(), roadmapID, model.RoadmapProcessing)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n == 1, err
}

// MarkFailed moves a PROCESSING roadmap to FAILED without touching
// content.  It reports whether the transition was applied.
func (r *RoadmapRepo) MarkFailed(ctx context.Context, roadmapID uint64, now time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        "UPDATE roadmaps SET status=?, completed_at=? WHERE id=? AND status=?",
        model.RoadmapFailed, now.UTC(), roadmapID, model.RoadmapProcessing)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n == 1, err
}
