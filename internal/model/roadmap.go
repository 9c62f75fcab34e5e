package model

import (
    "database/sql"
    "time"
)

// Roadmap status values.  A roadmap is created PROCESSING in the same
// transaction that debits the owner's credit, and the generation consumer
// moves it exactly once to COMPLETED (setting content) or FAILED.
const (
    RoadmapProcessing = "PROCESSING"
    RoadmapCompleted  = "COMPLETED"
    RoadmapFailed     = "FAILED"
)

// Roadmap models one generation request/result in the `roadmaps` table.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owner of the roadmap.
//  TargetRole    – role the user is preparing for.
//  TargetCompany – company the user is targeting.
//  Experience    – free-text summary of the user's background.
//  Focus         – optional areas to emphasise.
//  Status        – PROCESSING, COMPLETED or FAILED.
//  Content       – generated text, NULL until COMPLETED, then immutable.
//  CreatedAt     – timestamp of creation.
//  CompletedAt   – timestamp of the terminal transition, NULL while processing.
//  ExpiresAt     – after this point the content is no longer served.
type Roadmap struct {
    ID            uint64         // roadmaps.id
    UserID        uint64         // roadmaps.user_id
    TargetRole    string         // roadmaps.target_role
    TargetCompany string         // roadmaps.target_company
    Experience    string         // roadmaps.experience
    Focus         string         // roadmaps.focus
    Status        string         // roadmaps.status
    Content       sql.NullString // roadmaps.content
    CreatedAt     time.Time      // roadmaps.created_at
    CompletedAt   sql.NullTime   // roadmaps.completed_at
    ExpiresAt     time.Time      // roadmaps.expires_at
}
