// Package queue defines message payloads exchanged over the message broker,
// the publisher used by the services and the audit consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Queue names.  Both are durable.
const (
	MatchScoredQueue    = "match.scored"
	FixturesSyncedQueue = "fixtures.synced"
)

// MatchScoredEvent is published after an administrator edits a match result
// and the predictions on it have been rescored.
type MatchScoredEvent struct {
	EventID           string `json:"event_id"`
	MatchID           uint64 `json:"match_id"`
	HomeTeam          string `json:"home_team"`
	AwayTeam          string `json:"away_team"`
	Status            string `json:"status"`
	HomeScore         *int   `json:"home_score"`
	AwayScore         *int   `json:"away_score"`
	Outcome           string `json:"outcome,omitempty"` // empty unless the match is scorable
	PredictionsScored int64  `json:"predictions_scored"`
	ScoredAt          string `json:"scored_at"`
}

// FixturesSyncedEvent summarises one fixture sync run.
type FixturesSyncedEvent struct {
	EventID  string `json:"event_id"`
	Leagues  []int  `json:"leagues"`
	Season   int    `json:"season"`
	Fetched  int    `json:"fetched"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Rescored int    `json:"rescored"`
	SyncedAt string `json:"synced_at"`
}

// NewEventID returns a random id for an outgoing event.
func NewEventID() string { return uuid.NewString() }

// Stamp formats t the way events carry timestamps.
func Stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }
