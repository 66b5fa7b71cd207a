// Package session stores finished reading sessions and runs them through the
// metrics and progress engine on submission.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/reading"
)

// ErrSessionNotFound no session with that id for the user
var ErrSessionNotFound = errors.New("Session not found")

// list page bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Record a stored session with the metrics computed at submission
type Record struct {
	reading.Session `bson:",inline"`
	Metrics         reading.Metrics `json:"metrics" bson:"metrics"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
}

// SubmitResult everything the client needs to render a finished session
type SubmitResult struct {
	Session  *Record                `json:"session"`
	Progress *progress.UserProgress `json:"progress"`
	Unlocked []progress.Achievement `json:"unlocked_achievements"`
	Warning  string                 `json:"warning,omitempty"`
}

// AchievementEvent pushed to the user's open notification channels
type AchievementEvent struct {
	Type         string                 `json:"type"`
	SessionID    string                 `json:"session_id"`
	Achievements []progress.Achievement `json:"achievements"`
}

// EventAchievementsUnlocked AchievementEvent.Type
const EventAchievementsUnlocked = "achievements_unlocked"

// Notifier delivers events to a user, delivery is best effort
type Notifier interface {
	Notify(userID string, event interface{})
}

// SessionRepository .
type SessionRepository interface {
	Save(ctx context.Context, r *Record) error
	// Delete removes a stored session, missing ones are not an error
	Delete(ctx context.Context, userID, id string) error
	Get(ctx context.Context, userID, id string) (*Record, error)
	// ListByUser newest first by end time
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Record, error)
}

// SessionUseCase .
type SessionUseCase interface {
	Submit(ctx context.Context, userID string, s *reading.Session) (*SubmitResult, error)
	Get(ctx context.Context, userID, id string) (*Record, error)
	List(ctx context.Context, userID string, page, pageSize int) ([]*Record, error)
}
