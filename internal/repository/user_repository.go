package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/my-roadmap/roadmap-api/internal/model"
	"github.com/my-roadmap/roadmap-api/internal/utils"
)

// UserRepo owns all SQL against the users table: account lifecycle,
// the canonical session token/last-activity pair, and credit balance
// mutations. Balance changes are single conditional UPDATE statements so
// concurrent debits and credits cannot lose updates.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id,email,password_hash,role,credits,session_token,last_active_at,
is_verified,verify_token,verify_expires,reset_token,reset_expires,created_at,updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Credits,
		&u.SessionToken, &u.LastActiveAt,
		&u.IsVerified, &u.VerifyToken, &u.VerifyExpires,
		&u.ResetToken, &u.ResetExpires, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts an unverified user with zero credits and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, credits) VALUES (?,?,?,0)",
		email, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// ----- session token / activity -----

// SetSession stores a new canonical session token and activity timestamp,
// replacing whatever was there. A login therefore invalidates any other
// live session for the user.
func (r *UserRepo) SetSession(ctx context.Context, userID uint64, token string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET session_token=?, last_active_at=? WHERE id=?",
		token, now.UTC(), userID)
	return err
}

// FindSession returns the stored session token and last-activity timestamp
// for a user. Either value may be absent. sql.ErrNoRows is returned when
// the user does not exist.
func (r *UserRepo) FindSession(ctx context.Context, userID uint64) (*string, *time.Time, error) {
	var (
		token  sql.NullString
		active sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT session_token, last_active_at FROM users WHERE id=? LIMIT 1",
		userID).Scan(&token, &active)
	if err != nil {
		return nil, nil, err
	}
	var tp *string
	if token.Valid {
		tp = &token.String
	}
	var ap *time.Time
	if active.Valid {
		t := active.Time.UTC()
		ap = &t
	}
	return tp, ap, nil
}

// ClearSession removes the stored token and activity timestamp, logging
// the user out everywhere.
func (r *UserRepo) ClearSession(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET session_token=NULL, last_active_at=NULL WHERE id=?", userID)
	return err
}

// TouchSession refreshes the last-activity timestamp. Concurrent touches
// are last-write-wins, which is sufficient for the debounced heartbeat.
func (r *UserRepo) TouchSession(ctx context.Context, userID uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_active_at=? WHERE id=?", now.UTC(), userID)
	return err
}

// ----- credit balance -----

// DebitCreditTx decrements the balance by one inside the caller's
// transaction, but only when the balance is positive. It reports whether
// the debit was applied; false means the precondition failed and the
// caller must roll back.
func (r *UserRepo) DebitCreditTx(ctx context.Context, tx *sql.Tx, userID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET credits = credits - 1 WHERE id=? AND credits > 0", userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CreditTx increments the balance by qty inside the caller's transaction.
func (r *UserRepo) CreditTx(ctx context.Context, tx *sql.Tx, userID uint64, qty int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET credits = credits + ? WHERE id=?", qty, userID)
	return err
}

// CreditsTx reads the balance inside the caller's transaction, so a debit
// and the returned post-debit balance are observed together.
func (r *UserRepo) CreditsTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	var credits int64
	err := tx.QueryRowContext(ctx,
		"SELECT credits FROM users WHERE id=? LIMIT 1", userID).Scan(&credits)
	return credits, err
}

// Grant adds qty credits outside any purchase flow (admin use) and
// returns the new balance.
func (r *UserRepo) Grant(ctx context.Context, userID uint64, qty int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET credits = credits + ? WHERE id=?", qty, userID)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, sql.ErrNoRows
	}
	var credits int64
	err = r.DB.QueryRowContext(ctx,
		"SELECT credits FROM users WHERE id=? LIMIT 1", userID).Scan(&credits)
	return credits, err
}

// ----- verification / password reset tokens -----

// SetVerifyToken stores a pending email-verification token hash and expiry.
func (r *UserRepo) SetVerifyToken(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET verify_token=?, verify_expires=? WHERE id=?",
		tokenHash, exp.UTC(), userID)
	return err
}

// ConsumeVerifyToken marks the matching user verified and clears the
// token in one statement, so a token can be redeemed at most once. It
// reports whether a live token matched.
func (r *UserRepo) ConsumeVerifyToken(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET is_verified=1, verify_token=NULL, verify_expires=NULL
		 WHERE verify_token=? AND verify_expires > UTC_TIMESTAMP()`, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetResetToken stores a pending password-reset token hash and expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token=?, reset_expires=? WHERE id=?",
		tokenHash, exp.UTC(), userID)
	return err
}

// ConsumeResetToken sets a new password hash for the matching user,
// clears the token and terminates the live session in one statement.
// It reports whether a live token matched.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_token=NULL, reset_expires=NULL,
		 session_token=NULL, last_active_at=NULL
		 WHERE reset_token=? AND reset_expires > UTC_TIMESTAMP()`,
		newPasswordHash, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
