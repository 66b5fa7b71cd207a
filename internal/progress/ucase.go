package progress

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"github.com/pot-code/speedread/internal/reading"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// leaderboard page bounds
const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// ProgressUseCaseImpl folds sessions into stored progress with optimistic
// concurrency, conflicting writers reload and retry
type ProgressUseCaseImpl struct {
	ProgressRepository ProgressRepository
	Aggregator         *Aggregator
	Rules              Catalog
	MaxRetries         uint
	InitialInterval    time.Duration
	Now                func() time.Time
}

var _ ProgressUseCase = &ProgressUseCaseImpl{}

// NewProgressUseCase .
func NewProgressUseCase(
	ProgressRepository ProgressRepository,
	Aggregator *Aggregator,
	Catalog Catalog,
	MaxRetries uint,
) *ProgressUseCaseImpl {
	if MaxRetries == 0 {
		MaxRetries = 1
	}
	return &ProgressUseCaseImpl{
		ProgressRepository: ProgressRepository,
		Aggregator:         Aggregator,
		Rules:              Catalog,
		MaxRetries:         MaxRetries,
		InitialInterval:    20 * time.Millisecond,
		Now:                time.Now,
	}
}

// Record applies one computed session to the user's progress and unlocks
// achievements that became true
func (pu *ProgressUseCaseImpl) Record(ctx context.Context, userID string, m reading.Metrics, sessionDate time.Time) (*RecordResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.Record", "service")
	defer apmSpan.End()

	res, err := withRetry(ctx, pu, func() (*RecordResult, error) {
		current, err := pu.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		next, err := pu.Aggregator.Apply(*current, m, sessionDate)
		if err != nil {
			return nil, err
		}
		now := pu.Now()
		unlocked := Evaluate(next, pu.Rules, now)
		next = Unlock(next, unlocked)
		next.LastUpdated = now

		if err := pu.ProgressRepository.Save(ctx, &next, current.Version); err != nil {
			return nil, err
		}
		if unlocked == nil {
			unlocked = []Achievement{}
		}
		return &RecordResult{Progress: &next, Unlocked: unlocked}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Unlocked) > 0 {
		ids := make([]string, 0, len(res.Unlocked))
		for _, a := range res.Unlocked {
			ids = append(ids, a.ID)
		}
		logging.ExtractLoggerFromContext(ctx).Info("achievements unlocked",
			zap.String("user.id", userID), zap.Strings("achievement.ids", ids))
	}
	return res, nil
}

// GetProgress stored progress, or a zero record when the user has none yet
func (pu *ProgressUseCaseImpl) GetProgress(ctx context.Context, userID string) (*UserProgress, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetProgress", "service")
	defer apmSpan.End()

	return pu.load(ctx, userID)
}

// SetGoals replaces the user's goals
func (pu *ProgressUseCaseImpl) SetGoals(ctx context.Context, userID string, goals Goals) (*UserProgress, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.SetGoals", "service")
	defer apmSpan.End()

	return withRetry(ctx, pu, func() (*UserProgress, error) {
		current, err := pu.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		next.Goals = goals
		next.LastUpdated = pu.Now()
		if err := pu.ProgressRepository.Save(ctx, &next, current.Version); err != nil {
			return nil, err
		}
		return &next, nil
	})
}

// Leaderboard limit falls back to DefaultLeaderboardSize and is capped at MaxLeaderboardSize
func (pu *ProgressUseCaseImpl) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.Leaderboard", "service")
	defer apmSpan.End()

	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	return pu.ProgressRepository.Leaderboard(ctx, limit)
}

// Catalog .
func (pu *ProgressUseCaseImpl) Catalog() Catalog {
	return pu.Rules
}

func (pu *ProgressUseCaseImpl) load(ctx context.Context, userID string) (*UserProgress, error) {
	p, err := pu.ProgressRepository.Load(ctx, userID)
	if errors.Is(err, ErrProgressNotFound) {
		return NewUserProgress(userID), nil
	}
	return p, err
}

// withRetry reruns op while it fails with ErrVersionConflict, any other error
// stops immediately
func withRetry[T any](ctx context.Context, pu *ProgressUseCaseImpl, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pu.InitialInterval
	b.MaxInterval = 50 * pu.InitialInterval

	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !errors.Is(err, ErrVersionConflict) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(pu.MaxRetries))
}
