package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
)

// fixed width so that text columns sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SessionSQL sessions in the reading_sessions table
type SessionSQL struct {
	Conn driver.ITransactionalDB
}

var _ SessionRepository = &SessionSQL{}

// NewSessionSQL .
func NewSessionSQL(Conn driver.ITransactionalDB) *SessionSQL {
	return &SessionSQL{Conn}
}

// Migrate .
func (repo *SessionSQL) Migrate(ctx context.Context) error {
	_, err := repo.Conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS reading_sessions (
	id          VARCHAR(64) NOT NULL PRIMARY KEY,
	user_id     VARCHAR(64) NOT NULL,
	activity_id VARCHAR(64) NOT NULL,
	start_time  VARCHAR(40) NOT NULL,
	end_time    VARCHAR(40) NOT NULL,
	total_words INTEGER NOT NULL,
	wpm         INTEGER NOT NULL,
	implausible INTEGER NOT NULL DEFAULT 0,
	document    TEXT NOT NULL,
	created_at  VARCHAR(40) NOT NULL
)`)
	if err != nil {
		return err
	}
	return driver.CreateIndex(ctx, repo.Conn, "idx_reading_sessions_user_end", "reading_sessions", "user_id", "end_time")
}

// Save .
func (repo *SessionSQL) Save(ctx context.Context, r *Record) error {
	document, err := json.Marshal(r)
	if err != nil {
		return err
	}
	implausible := 0
	if r.Metrics.Implausible {
		implausible = 1
	}
	_, err = repo.Conn.ExecContext(ctx, `
INSERT INTO reading_sessions (id, user_id, activity_id, start_time, end_time, total_words, wpm, implausible, document, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.UserID, r.ActivityID, formatTime(r.StartTime), formatTime(r.EndTime),
		r.TotalWords, r.Metrics.WordsPerMinute, implausible, string(document), formatTime(r.CreatedAt))
	return err
}

// Delete .
func (repo *SessionSQL) Delete(ctx context.Context, userID, id string) error {
	_, err := repo.Conn.ExecContext(ctx, `DELETE FROM reading_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

// Get .
func (repo *SessionSQL) Get(ctx context.Context, userID, id string) (*Record, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT document FROM reading_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}
	return scanRecord(rows)
}

// ListByUser .
func (repo *SessionSQL) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Record, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT document FROM reading_sessions
WHERE user_id = $1
ORDER BY end_time DESC, id DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRecord(rows driver.ISQLRows) (*Record, error) {
	var document string
	if err := rows.Scan(&document); err != nil {
		return nil, err
	}
	r := new(Record)
	if err := json.Unmarshal([]byte(document), r); err != nil {
		return nil, err
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
