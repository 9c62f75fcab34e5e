package model

import (
    "database/sql"
    "time"
)

// Role names stored in users.role.  The set is closed: anything else in
// the column is a data error.
const (
    RoleStandard = "STANDARD"
    RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  The json tags are omitted
// because these structs are used by the repository layer; handlers define
// separate response types with appropriate JSON tags.
//
// A user holds at most one live session: SessionToken is overwritten on
// every login and cleared on logout, explicit invalidation or inactivity
// expiry.  LastActiveAt records the most recent guarded request and drives
// the inactivity timeout.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique, lowercased email address.
//  PasswordHash  – bcrypt hashed password.
//  Role          – STANDARD or ADMIN.
//  Credits       – current roadmap credit balance, never negative.
//  SessionToken  – canonical session credential, NULL when logged out.
//  LastActiveAt  – timestamp of the last guarded request, NULL when logged out.
//  IsVerified    – whether the email address has been confirmed.
//  VerifyToken   – pending email-verification token hash, NULL once used.
//  VerifyExpires – expiry of the verification token.
//  ResetToken    – pending password-reset token hash, NULL once used.
//  ResetExpires  – expiry of the reset token.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
    ID            uint64         // users.id
    Email         string         // users.email
    PasswordHash  string         // users.password_hash
    Role          string         // users.role
    Credits       int64          // users.credits
    SessionToken  sql.NullString // users.session_token
    LastActiveAt  sql.NullTime   // users.last_active_at
    IsVerified    bool           // users.is_verified
    VerifyToken   sql.NullString // users.verify_token
    VerifyExpires sql.NullTime   // users.verify_expires
    ResetToken    sql.NullString // users.reset_token
    ResetExpires  sql.NullTime   // users.reset_expires
    CreatedAt     time.Time      // users.created_at
    UpdatedAt     time.Time      // users.updated_at
}
