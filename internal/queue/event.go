// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns roadmap requests into content.
package queue

import "time"

// RoadmapRequestedEvent is published after a roadmap row is created in
// PROCESSING state and the credit debit has committed.  It carries the
// request fields so the consumer can build the generation prompt without
// an extra database round trip; the roadmap ID remains the source of
// truth for the status transition.
type RoadmapRequestedEvent struct {
    RoadmapID     uint64    `json:"roadmap_id"`
    UserID        uint64    `json:"user_id"`
    TargetRole    string    `json:"target_role"`
    TargetCompany string    `json:"target_company"`
    Experience    string    `json:"experience"`
    Focus         string    `json:"focus"`
    RequestedAt   time.Time `json:"requested_at"`
}
