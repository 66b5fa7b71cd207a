package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
)

// ProgressSQL progress records in a SQL table, the whole record is kept as a
// JSON document next to the columns the leaderboard sorts on
type ProgressSQL struct {
	Conn driver.ITransactionalDB
}

var _ ProgressRepository = &ProgressSQL{}

// NewProgressSQL .
func NewProgressSQL(Conn driver.ITransactionalDB) *ProgressSQL {
	return &ProgressSQL{Conn}
}

// Migrate creates the user_progress table and its indexes
func (repo *ProgressSQL) Migrate(ctx context.Context) error {
	_, err := repo.Conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id        VARCHAR(64) NOT NULL PRIMARY KEY,
	version        BIGINT NOT NULL,
	document       TEXT NOT NULL,
	average_wpm    DOUBLE PRECISION NOT NULL DEFAULT 0,
	best_wpm       INTEGER NOT NULL DEFAULT 0,
	total_sessions INTEGER NOT NULL DEFAULT 0,
	updated_at     VARCHAR(40) NOT NULL
)`)
	if err != nil {
		return err
	}
	return driver.CreateIndex(ctx, repo.Conn, "idx_user_progress_average_wpm", "user_progress", "average_wpm")
}

// Load .
func (repo *ProgressSQL) Load(ctx context.Context, userID string) (*UserProgress, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT version, document FROM user_progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrProgressNotFound
	}
	var (
		version  int64
		document string
	)
	if err := rows.Scan(&version, &document); err != nil {
		return nil, err
	}
	p := new(UserProgress)
	if err := json.Unmarshal([]byte(document), p); err != nil {
		return nil, err
	}
	p.Version = version
	return p, nil
}

// Save insert when expectedVersion is 0, otherwise a compare-and-swap on version
func (repo *ProgressSQL) Save(ctx context.Context, p *UserProgress, expectedVersion int64) error {
	next := *p
	next.Version = expectedVersion + 1
	document, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	updatedAt := next.LastUpdated.UTC().Format(time.RFC3339Nano)
	st := next.Statistics

	if expectedVersion == 0 {
		_, err := repo.Conn.ExecContext(ctx, `
INSERT INTO user_progress (user_id, version, document, average_wpm, best_wpm, total_sessions, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			next.UserID, next.Version, string(document), st.AverageWPM, st.BestWPM, st.TotalSessions, updatedAt)
		if driver.IsUniqueViolation(err) {
			return ErrVersionConflict
		}
		if err != nil {
			return err
		}
		p.Version = next.Version
		return nil
	}

	res, err := repo.Conn.ExecContext(ctx, `
UPDATE user_progress
SET version = $1, document = $2, average_wpm = $3, best_wpm = $4, total_sessions = $5, updated_at = $6
WHERE user_id = $7 AND version = $8`,
		next.Version, string(document), st.AverageWPM, st.BestWPM, st.TotalSessions, updatedAt,
		next.UserID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	p.Version = next.Version
	return nil
}

// Leaderboard users with at least one session, fastest average first
func (repo *ProgressSQL) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT user_id, average_wpm, best_wpm, total_sessions
FROM user_progress
WHERE total_sessions > 0
ORDER BY average_wpm DESC, user_id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*LeaderboardEntry{}
	for rows.Next() {
		item := new(LeaderboardEntry)
		if err := rows.Scan(&item.UserID, &item.AverageWPM, &item.BestWPM, &item.TotalSessions); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
