package model

import (
	"fmt"
	"strings"
	"time"
)

// DBTimeLayout is the DATETIME form used when writing timestamps ("YYYY-MM-DD HH:MM:SS", UTC).
const DBTimeLayout = "2006-01-02 15:04:05"

// Status is the lifecycle state of a match, using the fixture provider's
// short codes. The set is closed: values outside it never reach the store.
type Status string

const (
	StatusNotStarted Status = "NS"
	StatusPostponed  Status = "PST"
	StatusFirstHalf  Status = "1H"
	StatusHalfTime   Status = "HT"
	StatusSecondHalf Status = "2H"
	StatusFinished   Status = "FT"
	StatusCancelled  Status = "CANC"
	StatusAbandoned  Status = "ABD"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusNotStarted,
	StatusPostponed,
	StatusFirstHalf,
	StatusHalfTime,
	StatusSecondHalf,
	StatusFinished,
	StatusCancelled,
	StatusAbandoned,
}

// ParseStatus accepts exactly one of the eight status codes (case-insensitive).
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, v := range Statuses {
		if s == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown match status %q", raw)
}

// NormalizeProviderStatus folds the provider's wider status vocabulary onto
// the closed set. Codes with no sensible mapping are rejected.
func NormalizeProviderStatus(raw string) (Status, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	switch code {
	case "TBD":
		return StatusNotStarted, nil
	case "AET", "PEN", "AWD":
		return StatusFinished, nil
	case "ET", "BT", "P", "LIVE":
		return StatusSecondHalf, nil
	case "INT", "SUSP":
		return StatusAbandoned, nil
	case "WO":
		return StatusCancelled, nil
	}
	return ParseStatus(code)
}

// IsOpen reports whether the match is still listed for predictions.
func (s Status) IsOpen() bool {
	switch s {
	case StatusNotStarted, StatusFirstHalf, StatusHalfTime, StatusSecondHalf:
		return true
	case StatusPostponed, StatusFinished, StatusCancelled, StatusAbandoned:
		return false
	}
	return false
}

// Match mirrors a row in the `matches` table.
//
// Fields:
//
//	ID         – primary key assigned by the store.
//	ExternalID – provider fixture id; nil for matches entered by hand.
//	HomeTeam   – home team name.
//	AwayTeam   – away team name.
//	HomeLogo   – crest URL of the home team (may be empty).
//	AwayLogo   – crest URL of the away team (may be empty).
//	KickoffAt  – scheduled kickoff (UTC).
//	Status     – lifecycle status.
//	HomeScore  – goals of the home team, nil until known.
//	AwayScore  – goals of the away team, nil until known.
//	Round      – grouping label such as "Regular Season - 3".
//	IsActive   – whether the match is shown to players.
type Match struct {
	ID         uint64    // matches.id
	ExternalID *int64    // matches.external_id (nullable, unique)
	HomeTeam   string    // matches.home_team
	AwayTeam   string    // matches.away_team
	HomeLogo   string    // matches.home_logo
	AwayLogo   string    // matches.away_logo
	KickoffAt  time.Time // matches.match_date
	Status     Status    // matches.status
	HomeScore  *int      // matches.home_score (nullable)
	AwayScore  *int      // matches.away_score (nullable)
	Round      string    // matches.round
	IsActive   bool      // matches.is_active
}

// FromProvider reports whether the match was created by fixture sync.
func (m Match) FromProvider() bool {
	return m.ExternalID != nil
}

// HasScore reports whether both goal counts are known.
func (m Match) HasScore() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}
