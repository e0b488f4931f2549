package config

import (
	"strconv"
	"time"
)

// FootballConfig configures the API-Football fixture provider and the
// periodic sync job.
type FootballConfig struct {
	BaseURL      string
	APIKey       string
	Leagues      []int         // provider league ids synced by default
	Season       int           // provider season (year the season starts)
	Timezone     string        // timezone passed to the provider
	Timeout      time.Duration // per-request HTTP timeout
	SyncInterval time.Duration // 0 disables the scheduled sync
}

// LoadFootballConfig reads FOOTBALL_* variables.  Malformed league ids are ignored.
func LoadFootballConfig() FootballConfig {
	var leagues []int
	for _, raw := range splitList(envStr("FOOTBALL_LEAGUES", "128")) {
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			leagues = append(leagues, id)
		}
	}
	return FootballConfig{
		BaseURL:      envStr("FOOTBALL_API_URL", "https://v3.football.api-sports.io"),
		APIKey:       envStr("FOOTBALL_API_KEY", envStr("API_FOOTBALL_KEY", "")),
		Leagues:      leagues,
		Season:       envInt("FOOTBALL_SEASON", time.Now().UTC().Year()),
		Timezone:     envStr("FOOTBALL_TIMEZONE", "America/Argentina/Buenos_Aires"),
		Timeout:      envDur("FOOTBALL_TIMEOUT", 15*time.Second),
		SyncInterval: envDur("FOOTBALL_SYNC_INTERVAL", 0),
	}
}

// Enabled reports whether a provider key is configured.
func (c FootballConfig) Enabled() bool {
	return c.APIKey != ""
}
