package model

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the categorical result of a match that a player picks.
type Outcome string

const (
	OutcomeHome Outcome = "HOME"
	OutcomeDraw Outcome = "DRAW"
	OutcomeAway Outcome = "AWAY"
)

// ParseOutcome accepts HOME, DRAW or AWAY (case-insensitive).
func ParseOutcome(raw string) (Outcome, error) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(raw))); o {
	case OutcomeHome, OutcomeDraw, OutcomeAway:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q", raw)
}

// Prediction mirrors a row in the `predictions` table. There is at most
// one row per (UserID, MatchID).
type Prediction struct {
	ID        uint64    // predictions.id
	UserID    uint64    // predictions.user_id
	MatchID   uint64    // predictions.match_id
	Choice    Outcome   // predictions.prediction_result
	Points    int       // predictions.points (derived, default 0)
	CreatedAt time.Time // predictions.created_at
	UpdatedAt time.Time // predictions.updated_at
}

// MatchWithPick is a match as seen by one player, joined with that
// player's prediction when one exists.
type MatchWithPick struct {
	Match
	Choice *Outcome // nil when the player has not predicted yet
	Points int
}

// PredictionRow is one line of the admin predictions dashboard.
type PredictionRow struct {
	ID        uint64
	Username  string
	HomeTeam  string
	HomeLogo  string
	AwayTeam  string
	AwayLogo  string
	KickoffAt time.Time
	Status    Status
	Choice    Outcome
	Points    int
}

// RankingEntry is one player's line on the leaderboard.
type RankingEntry struct {
	UserID   uint64
	Username string
	Points   int
}
