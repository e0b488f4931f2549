package handler

import "github.com/iliyamo/prode-predictions/internal/model"

// matchView is a match as the player frontend reads it.  Goals and points
// are only filled for the history listing.
type matchView struct {
	ID             uint64  `json:"id"`
	Local          string  `json:"local"`
	LogoLocal      string  `json:"logoLocal"`
	Visitante      string  `json:"visitante"`
	LogoVisitante  string  `json:"logoVisitante"`
	Fecha          string  `json:"fecha"`
	Status         string  `json:"status"`
	Round          string  `json:"round,omitempty"`
	MiPronostico   *string `json:"miPronostico"`
	GolesLocal     *int    `json:"golesLocal,omitempty"`
	GolesVisitante *int    `json:"golesVisitante,omitempty"`
	Puntos         *int    `json:"puntos,omitempty"`
}

func newMatchView(m model.MatchWithPick, withResult bool) matchView {
	v := matchView{
		ID:            m.ID,
		Local:         m.HomeTeam,
		LogoLocal:     m.HomeLogo,
		Visitante:     m.AwayTeam,
		LogoVisitante: m.AwayLogo,
		Fecha:         formatTime(m.KickoffAt),
		Status:        string(m.Status),
		Round:         m.Round,
	}
	if m.Choice != nil {
		s := string(*m.Choice)
		v.MiPronostico = &s
	}
	if withResult {
		v.GolesLocal, v.GolesVisitante = m.HomeScore, m.AwayScore
		pts := m.Points
		v.Puntos = &pts
	}
	return v
}

func matchViews(in []model.MatchWithPick, withResult bool) []matchView {
	out := make([]matchView, 0, len(in))
	for _, m := range in {
		out = append(out, newMatchView(m, withResult))
	}
	return out
}

// adminMatchView is the full match row returned to administrators.
type adminMatchView struct {
	ID         uint64 `json:"id"`
	ExternalID *int64 `json:"external_id"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	HomeLogo   string `json:"home_logo"`
	AwayLogo   string `json:"away_logo"`
	MatchDate  string `json:"match_date"`
	Status     string `json:"status"`
	HomeScore  *int   `json:"home_score"`
	AwayScore  *int   `json:"away_score"`
	Round      string `json:"round"`
	IsActive   bool   `json:"is_active"`
}

func newAdminMatchView(m model.Match) adminMatchView {
	return adminMatchView{
		ID: m.ID, ExternalID: m.ExternalID,
		HomeTeam: m.HomeTeam, AwayTeam: m.AwayTeam,
		HomeLogo: m.HomeLogo, AwayLogo: m.AwayLogo,
		MatchDate: formatTime(m.KickoffAt), Status: string(m.Status),
		HomeScore: m.HomeScore, AwayScore: m.AwayScore,
		Round: m.Round, IsActive: m.IsActive,
	}
}

type predictionRowView struct {
	ID               uint64 `json:"id"`
	Username         string `json:"username"`
	HomeTeam         string `json:"home_team"`
	HomeLogo         string `json:"home_logo"`
	AwayTeam         string `json:"away_team"`
	AwayLogo         string `json:"away_logo"`
	MatchDate        string `json:"match_date"`
	Status           string `json:"status"`
	PredictionResult string `json:"prediction_result"`
	Points           int    `json:"points"`
}

type rankingView struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
}

type userView struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func newUserView(u model.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, Role: string(u.Role), IsActive: u.IsActive}
}
