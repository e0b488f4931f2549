package repository

import (
	"context"

	"github.com/iliyamo/prode-predictions/internal/model"
)

// PredictionRepo reads and writes the `predictions` table.
type PredictionRepo struct{ DB DBTX }

func NewPredictionRepo(db DBTX) *PredictionRepo { return &PredictionRepo{DB: db} }

// PointsTable is the score awarded to each possible choice on one match.
type PointsTable struct {
	Home, Draw, Away int
}

// Upsert writes the user's choice for a match.  An existing row is
// overwritten in place; created reports whether a new row was inserted.
func (r *PredictionRepo) Upsert(ctx context.Context, userID, matchID uint64, choice model.Outcome) (created bool, err error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO predictions (user_id, match_id, prediction_result, points)
		 VALUES (?,?,?,0)
		 ON DUPLICATE KEY UPDATE prediction_result = VALUES(prediction_result)`,
		userID, matchID, string(choice))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// 1 = inserted, 2 = updated, 0 = same value rewritten
	return n == 1, nil
}

// ApplyPoints sets the points of every prediction on a match from the
// per-choice table and returns the number of rows touched.
func (r *PredictionRepo) ApplyPoints(ctx context.Context, matchID uint64, t PointsTable) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE predictions
		    SET points = CASE prediction_result WHEN 'HOME' THEN ? WHEN 'DRAW' THEN ? WHEN 'AWAY' THEN ? ELSE 0 END
		  WHERE match_id = ?`,
		t.Home, t.Draw, t.Away, matchID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ranking sums points per user over finished matches.  Users without
// predictions appear with 0.
func (r *PredictionRepo) Ranking(ctx context.Context) ([]model.RankingEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.username,
		        COALESCE(SUM(CASE WHEN m.status = 'FT' THEN p.points ELSE 0 END), 0) AS total
		   FROM users u
		   LEFT JOIN predictions p ON p.user_id = u.id
		   LEFT JOIN matches m ON m.id = p.match_id
		  GROUP BY u.id, u.username
		  ORDER BY total DESC, u.username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RankingEntry{}
	for rows.Next() {
		var e model.RankingEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllRows lists every prediction with its user and match for the admin
// dashboard, latest kickoff first.
func (r *PredictionRepo) AllRows(ctx context.Context) ([]model.PredictionRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, u.username, m.home_team, m.home_logo, m.away_team, m.away_logo,
		        m.match_date, m.status, p.prediction_result, p.points
		   FROM predictions p
		   JOIN users u ON u.id = p.user_id
		   JOIN matches m ON m.id = p.match_id
		  ORDER BY m.match_date DESC, u.username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PredictionRow{}
	for rows.Next() {
		var (
			pr             model.PredictionRow
			status, choice string
		)
		if err := rows.Scan(&pr.ID, &pr.Username, &pr.HomeTeam, &pr.HomeLogo, &pr.AwayTeam, &pr.AwayLogo,
			&pr.KickoffAt, &status, &choice, &pr.Points); err != nil {
			return nil, err
		}
		pr.Status = model.Status(status)
		pr.Choice = model.Outcome(choice)
		pr.KickoffAt = pr.KickoffAt.UTC()
		out = append(out, pr)
	}
	return out, rows.Err()
}

// DeleteAll removes every prediction.
func (r *PredictionRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM predictions")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
