// Package football is a small client for the API-Football v3 fixtures
// endpoint.  Only the fields the fixture sync consumes are decoded.
package football

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://v3.football.api-sports.io"
	defaultTimezone = "America/Argentina/Buenos_Aires"
	apiKeyHeader    = "x-apisports-key"
	maxBodyBytes    = 8 << 20
)

// ErrTransient marks failures worth retrying: transport errors, 429 and 5xx.
var ErrTransient = crerr.New("football provider transient failure")

// ErrRejected marks a well-formed response carrying provider-side errors
// (bad key, quota exhausted, unknown league).
var ErrRejected = crerr.New("football provider rejected request")

type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Timezone   string
	Timeout    time.Duration
	MaxRetries int
	Logger     *zap.Logger
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timezone   string
	maxRetries int
	log        *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timezone:   tz,
		maxRetries: max(cfg.MaxRetries, 0),
		log:        log.Named("football"),
	}
}

// Fixture is one provider fixture reduced to what the match store keeps.
type Fixture struct {
	ID        int64
	Date      string // ISO-8601 with offset, as sent by the provider
	Status    string // provider short status code
	League    int
	Round     string
	HomeTeam  string
	HomeLogo  string
	AwayTeam  string
	AwayLogo  string
	HomeGoals *int
	AwayGoals *int
}

// Kickoff parses the fixture date and returns it in UTC.
func (f Fixture) Kickoff() (time.Time, error) {
	if strings.TrimSpace(f.Date) == "" {
		return time.Time{}, crerr.New("fixture has no date")
	}
	t, err := time.Parse(time.RFC3339, f.Date)
	if err != nil {
		return time.Time{}, crerr.Wrapf(err, "parse fixture date %q", f.Date)
	}
	return t.UTC(), nil
}

type fixturesEnvelope struct {
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Response []struct {
		Fixture struct {
			ID     int64  `json:"id"`
			Date   string `json:"date"`
			Status struct {
				Short string `json:"short"`
			} `json:"status"`
		} `json:"fixture"`
		League struct {
			ID    int    `json:"id"`
			Round string `json:"round"`
		} `json:"league"`
		Teams struct {
			Home teamRef `json:"home"`
			Away teamRef `json:"away"`
		} `json:"teams"`
		Goals struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"goals"`
	} `json:"response"`
}

type teamRef struct {
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// Fixtures lists every fixture of a league season.
func (c *Client) Fixtures(ctx context.Context, league, season int) ([]Fixture, error) {
	if league <= 0 || season <= 0 {
		return nil, crerr.Newf("league and season must be positive (league=%d season=%d)", league, season)
	}
	q := url.Values{}
	q.Set("league", strconv.Itoa(league))
	q.Set("season", strconv.Itoa(season))
	q.Set("timezone", c.timezone)

	raw, err := c.get(ctx, "/fixtures", q)
	if err != nil {
		return nil, crerr.Wrapf(err, "fetch fixtures league=%d season=%d", league, season)
	}

	var env fixturesEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, crerr.Wrap(err, "decode fixtures payload")
	}
	if msg := providerErrors(env.Errors); msg != "" {
		return nil, crerr.Mark(crerr.Newf("league=%d season=%d: %s", league, season, msg), ErrRejected)
	}

	out := make([]Fixture, 0, len(env.Response))
	for _, item := range env.Response {
		out = append(out, Fixture{
			ID:        item.Fixture.ID,
			Date:      item.Fixture.Date,
			Status:    item.Fixture.Status.Short,
			League:    item.League.ID,
			Round:     item.League.Round,
			HomeTeam:  strings.TrimSpace(item.Teams.Home.Name),
			HomeLogo:  item.Teams.Home.Logo,
			AwayTeam:  strings.TrimSpace(item.Teams.Away.Name),
			AwayLogo:  item.Teams.Away.Logo,
			HomeGoals: item.Goals.Home,
			AwayGoals: item.Goals.Away,
		})
	}
	c.log.Debug("fixtures fetched", zap.Int("league", league), zap.Int("season", season), zap.Int("count", len(out)))
	return out, nil
}

// providerErrors flattens the "errors" member, which the provider sends as
// either an empty array or an object mapping field names to messages.
func providerErrors(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "[]" || trimmed == "{}" || trimmed == "null" {
		return ""
	}
	var asMap map[string]string
	if err := sonic.Unmarshal(raw, &asMap); err == nil {
		parts := make([]string, 0, len(asMap))
		for k, v := range asMap {
			parts = append(parts, k+": "+v)
		}
		return strings.Join(parts, "; ")
	}
	return trimmed
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	fullURL := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		raw, err := c.do(ctx, fullURL)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !crerr.Is(err, ErrTransient) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * time.Second
		c.log.Warn("retrying provider request", zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, crerr.Wrap(err, "build request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, crerr.Mark(crerr.Wrap(err, "send request"), ErrTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, crerr.Mark(crerr.Wrap(err, "read response body"), ErrTransient)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	statusErr := fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviate(raw))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, crerr.Mark(statusErr, ErrTransient)
	}
	return nil, crerr.Mark(statusErr, ErrRejected)
}

func abbreviate(raw []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
