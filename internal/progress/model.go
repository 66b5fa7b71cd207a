package progress

import (
	"context"
	"errors"
	"time"

	"github.com/pot-code/speedread/internal/reading"
)

// ErrProgressNotFound no progress record stored for the user
var ErrProgressNotFound = errors.New("Progress not found")

// ErrVersionConflict progress was modified since it was loaded
var ErrVersionConflict = errors.New("Progress was modified concurrently")

// ErrOutOfOrderSession session is dated before the last aggregated session
var ErrOutOfOrderSession = errors.New("Session is older than the last recorded session")

// Statistics lifetime aggregates of a user
type Statistics struct {
	TotalSessions            int       `json:"total_sessions" bson:"total_sessions"`
	TotalReadingTimeMinutes  float64   `json:"total_reading_time_minutes" bson:"total_reading_time_minutes"`
	AverageWPM               float64   `json:"average_wpm" bson:"average_wpm"`
	AverageComprehension     float64   `json:"average_comprehension" bson:"average_comprehension"`
	ComprehensionSampleCount int       `json:"comprehension_sample_count" bson:"comprehension_sample_count"`
	BestWPM                  int       `json:"best_wpm" bson:"best_wpm"`
	BestComprehension        float64   `json:"best_comprehension" bson:"best_comprehension"`
	CurrentStreak            int       `json:"current_streak" bson:"current_streak"`
	LongestStreak            int       `json:"longest_streak" bson:"longest_streak"`
	LastSessionDate          time.Time `json:"last_session_date" bson:"last_session_date"`
}

// WeeklyBucket aggregates of one ISO week, keyed by its Monday
type WeeklyBucket struct {
	WeekStart                time.Time `json:"week_start" bson:"week_start"`
	SessionsCount            int       `json:"sessions_count" bson:"sessions_count"`
	ReadingTimeMinutes       float64   `json:"reading_time_minutes" bson:"reading_time_minutes"`
	AverageWPM               float64   `json:"average_wpm" bson:"average_wpm"`
	AverageComprehension     float64   `json:"average_comprehension" bson:"average_comprehension"`
	ComprehensionSampleCount int       `json:"comprehension_sample_count" bson:"comprehension_sample_count"`
}

// Achievement an unlocked achievement
type Achievement struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	UnlockedAt  time.Time `json:"unlocked_at" bson:"unlocked_at"`
}

// Goals user-defined training targets
type Goals struct {
	TargetWPM           int     `json:"target_wpm" bson:"target_wpm" validate:"min=0,max=2000"`
	TargetComprehension float64 `json:"target_comprehension" bson:"target_comprehension" validate:"min=0,max=100"`
	DailyReadingMinutes int     `json:"daily_reading_minutes" bson:"daily_reading_minutes" validate:"min=0,max=1440"`
	WeeklySessions      int     `json:"weekly_sessions" bson:"weekly_sessions" validate:"min=0,max=500"`
}

// UserProgress durable progress record, one per user
type UserProgress struct {
	UserID        string         `json:"user_id" bson:"user_id"`
	Version       int64          `json:"version" bson:"version"`
	Statistics    Statistics     `json:"statistics" bson:"statistics"`
	WeeklyBuckets []WeeklyBucket `json:"weekly_buckets" bson:"weekly_buckets"`
	Achievements  []Achievement  `json:"achievements" bson:"achievements"`
	Goals         Goals          `json:"goals" bson:"goals"`
	LastUpdated   time.Time      `json:"last_updated" bson:"last_updated"`
}

// NewUserProgress zero progress for a user that has not finished a session yet
func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:        userID,
		WeeklyBuckets: []WeeklyBucket{},
		Achievements:  []Achievement{},
	}
}

// HasAchievement reports whether id is already unlocked
func (p *UserProgress) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Clone deep copy, so derived states never share slices with their source
func (p UserProgress) Clone() UserProgress {
	out := p
	out.WeeklyBuckets = append(make([]WeeklyBucket, 0, len(p.WeeklyBuckets)), p.WeeklyBuckets...)
	out.Achievements = append(make([]Achievement, 0, len(p.Achievements)), p.Achievements...)
	return out
}

// LeaderboardEntry ranking row ordered by average speed
type LeaderboardEntry struct {
	UserID        string  `json:"user_id"`
	AverageWPM    float64 `json:"average_wpm"`
	BestWPM       int     `json:"best_wpm"`
	TotalSessions int     `json:"total_sessions"`
}

// RecordResult outcome of folding one session into a user's progress
type RecordResult struct {
	Progress *UserProgress `json:"progress"`
	Unlocked []Achievement `json:"unlocked_achievements"`
}

// ProgressRepository persistence of progress records.
//
// Save must only succeed when the stored version equals expectedVersion
// (0 means "no record yet"), it then stores p with Version expectedVersion+1.
type ProgressRepository interface {
	Load(ctx context.Context, userID string) (*UserProgress, error)
	Save(ctx context.Context, p *UserProgress, expectedVersion int64) error
	Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error)
}

// ProgressUseCase .
type ProgressUseCase interface {
	Record(ctx context.Context, userID string, m reading.Metrics, sessionDate time.Time) (*RecordResult, error)
	GetProgress(ctx context.Context, userID string) (*UserProgress, error)
	SetGoals(ctx context.Context, userID string, goals Goals) (*UserProgress, error)
	Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error)
	Catalog() Catalog
}
