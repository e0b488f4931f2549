package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/prode-predictions/internal/model"
)

// MatchRepo reads and writes the `matches` table.
type MatchRepo struct{ DB DBTX }

func NewMatchRepo(db DBTX) *MatchRepo { return &MatchRepo{DB: db} }

const matchColumns = "m.id, m.external_id, m.home_team, m.away_team, m.home_logo, m.away_logo, " +
	"m.match_date, m.status, m.home_score, m.away_score, m.round, m.is_active"

// closedStatuses are hidden from the open-matches listing.
const closedStatuses = "'FT','PST','CANC','ABD'"

type rowScanner interface {
	Scan(dest ...any) error
}

// matchScan holds the nullable columns of one match row until they are
// folded into a model.Match.
type matchScan struct {
	m          model.Match
	externalID sql.NullInt64
	status     string
	homeScore  sql.NullInt64
	awayScore  sql.NullInt64
}

func (s *matchScan) dest() []any {
	return []any{&s.m.ID, &s.externalID, &s.m.HomeTeam, &s.m.AwayTeam, &s.m.HomeLogo, &s.m.AwayLogo,
		&s.m.KickoffAt, &s.status, &s.homeScore, &s.awayScore, &s.m.Round, &s.m.IsActive}
}

func (s *matchScan) match() model.Match {
	m := s.m
	if s.externalID.Valid {
		v := s.externalID.Int64
		m.ExternalID = &v
	}
	m.Status = model.Status(s.status)
	m.HomeScore = nullIntPtr(s.homeScore)
	m.AwayScore = nullIntPtr(s.awayScore)
	m.KickoffAt = m.KickoffAt.UTC()
	return m
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func intPtrArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64PtrArg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanMatch(r rowScanner) (model.Match, error) {
	var s matchScan
	if err := r.Scan(s.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Match{}, ErrNotFound
		}
		return model.Match{}, err
	}
	return s.match(), nil
}

// GetByID fetches a match by primary key.
func (r *MatchRepo) GetByID(ctx context.Context, id uint64) (model.Match, error) {
	return scanMatch(r.DB.QueryRowContext(ctx,
		"SELECT "+matchColumns+" FROM matches m WHERE m.id=? LIMIT 1", id))
}

// GetByIDForShare reads a match under a shared lock so a concurrent result
// edit cannot move the kickoff while a prediction is being written.  Must
// run inside a transaction.
func (r *MatchRepo) GetByIDForShare(ctx context.Context, id uint64) (model.Match, error) {
	return scanMatch(r.DB.QueryRowContext(ctx,
		"SELECT "+matchColumns+" FROM matches m WHERE m.id=? LOCK IN SHARE MODE", id))
}

// GetByIDForUpdate reads a match under an exclusive lock.  Must run inside
// a transaction.
func (r *MatchRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Match, error) {
	return scanMatch(r.DB.QueryRowContext(ctx,
		"SELECT "+matchColumns+" FROM matches m WHERE m.id=? FOR UPDATE", id))
}

// GetByExternalID fetches a provider-sourced match.
func (r *MatchRepo) GetByExternalID(ctx context.Context, externalID int64) (model.Match, error) {
	return scanMatch(r.DB.QueryRowContext(ctx,
		"SELECT "+matchColumns+" FROM matches m WHERE m.external_id=? LIMIT 1 FOR UPDATE", externalID))
}

// Insert stores a new match and returns its id.
func (r *MatchRepo) Insert(ctx context.Context, m model.Match) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO matches
		   (external_id, home_team, away_team, home_logo, away_logo, match_date, status, home_score, away_score, round, is_active)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		int64PtrArg(m.ExternalID), m.HomeTeam, m.AwayTeam, m.HomeLogo, m.AwayLogo,
		m.KickoffAt.UTC().Format(model.DBTimeLayout), string(m.Status),
		intPtrArg(m.HomeScore), intPtrArg(m.AwayScore), m.Round, m.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateResult writes the fields an administrator may edit.
func (r *MatchRepo) UpdateResult(ctx context.Context, m model.Match) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE matches SET home_score=?, away_score=?, status=?, match_date=? WHERE id=?",
		intPtrArg(m.HomeScore), intPtrArg(m.AwayScore), string(m.Status),
		m.KickoffAt.UTC().Format(model.DBTimeLayout), m.ID)
	return err
}

// UpdateFromProvider refreshes the mutable fields of a synced match.  The
// internal id, team names, round and active flag are preserved.
func (r *MatchRepo) UpdateFromProvider(ctx context.Context, m model.Match) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE matches
		    SET match_date=?, status=?, home_score=?, away_score=?, home_logo=?, away_logo=?
		  WHERE id=?`,
		m.KickoffAt.UTC().Format(model.DBTimeLayout), string(m.Status),
		intPtrArg(m.HomeScore), intPtrArg(m.AwayScore), m.HomeLogo, m.AwayLogo, m.ID)
	return err
}

// ListOpenForUser returns active matches still open for predictions,
// earliest kickoff first, joined with the user's pick when present.
func (r *MatchRepo) ListOpenForUser(ctx context.Context, userID uint64) ([]model.MatchWithPick, error) {
	return r.listWithPick(ctx,
		"SELECT "+matchColumns+`, p.prediction_result, COALESCE(p.points, 0)
		   FROM matches m
		   LEFT JOIN predictions p ON p.match_id = m.id AND p.user_id = ?
		  WHERE m.is_active = TRUE AND m.status NOT IN (`+closedStatuses+`)
		  ORDER BY m.match_date ASC, m.id ASC`, userID)
}

// ListHistory returns every active match the user has predicted, most
// recent kickoff first.
func (r *MatchRepo) ListHistory(ctx context.Context, userID uint64) ([]model.MatchWithPick, error) {
	return r.listWithPick(ctx,
		"SELECT "+matchColumns+`, p.prediction_result, p.points
		   FROM matches m
		   JOIN predictions p ON p.match_id = m.id AND p.user_id = ?
		  WHERE m.is_active = TRUE
		  ORDER BY m.match_date DESC, m.id DESC`, userID)
}

func (r *MatchRepo) listWithPick(ctx context.Context, query string, userID uint64) ([]model.MatchWithPick, error) {
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MatchWithPick{}
	for rows.Next() {
		var (
			s      matchScan
			choice sql.NullString
			points int
		)
		if err := rows.Scan(append(s.dest(), &choice, &points)...); err != nil {
			return nil, err
		}
		item := model.MatchWithPick{Match: s.match(), Points: points}
		if choice.Valid {
			o := model.Outcome(choice.String)
			item.Choice = &o
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteAll removes every match.  Predictions must be deleted first.
func (r *MatchRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM matches")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetAutoIncrement restarts the id sequences of matches and predictions.
// DDL commits implicitly in MySQL, so call it outside any transaction.
func (r *MatchRepo) ResetAutoIncrement(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, "ALTER TABLE predictions AUTO_INCREMENT = 1"); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, "ALTER TABLE matches AUTO_INCREMENT = 1")
	return err
}
