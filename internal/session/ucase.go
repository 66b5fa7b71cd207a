package session

import (
	"context"
	"time"

	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/reading"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// SessionUseCaseImpl .
type SessionUseCaseImpl struct {
	SessionRepository SessionRepository
	ProgressUseCase   progress.ProgressUseCase
	Calculator        *reading.Calculator
	UUIDGenerator     uuid.Generator
	Notifier          Notifier
	// RejectImplausible refuse flagged sessions instead of storing them with a warning
	RejectImplausible bool
	Now               func() time.Time
}

var _ SessionUseCase = &SessionUseCaseImpl{}

// NewSessionUseCase .
func NewSessionUseCase(
	SessionRepository SessionRepository,
	ProgressUseCase progress.ProgressUseCase,
	Calculator *reading.Calculator,
	UUIDGenerator uuid.Generator,
	Notifier Notifier,
	RejectImplausible bool,
) *SessionUseCaseImpl {
	return &SessionUseCaseImpl{
		SessionRepository: SessionRepository,
		ProgressUseCase:   ProgressUseCase,
		Calculator:        Calculator,
		UUIDGenerator:     UUIDGenerator,
		Notifier:          Notifier,
		RejectImplausible: RejectImplausible,
		Now:               time.Now,
	}
}

// Submit computes the session metrics, folds them into the user's progress
// and stores the session. The session is dated by its end time.
//
// Rejected sessions (invalid duration, no content, out of order, or
// implausible when RejectImplausible is set) leave nothing behind.
func (su *SessionUseCaseImpl) Submit(ctx context.Context, userID string, s *reading.Session) (*SubmitResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "SessionUseCaseImpl.Submit", "service")
	defer apmSpan.End()

	logger := logging.ExtractLoggerFromContext(ctx)
	m, err := su.Calculator.Compute(s)
	if err != nil {
		return nil, err
	}
	if m.Implausible {
		logger.Warn("implausible reading speed",
			zap.String("user.id", userID), zap.Int("session.wpm", m.WordsPerMinute))
		if su.RejectImplausible {
			return nil, reading.ErrImplausibleReading
		}
	}

	id, err := su.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	record := &Record{Session: *s, Metrics: m, CreatedAt: su.Now()}
	record.ID = id
	record.UserID = userID

	// stored first so that progress never counts a session that is missing
	if err := su.SessionRepository.Save(ctx, record); err != nil {
		return nil, err
	}
	recorded, err := su.ProgressUseCase.Record(ctx, userID, m, s.EndTime)
	if err != nil {
		if derr := su.SessionRepository.Delete(context.Background(), userID, id); derr != nil {
			logger.Error("failed to drop session not counted in progress",
				zap.String("user.id", userID), zap.String("session.id", id), zap.Error(derr))
		}
		return nil, err
	}

	if len(recorded.Unlocked) > 0 && su.Notifier != nil {
		su.Notifier.Notify(userID, &AchievementEvent{
			Type:         EventAchievementsUnlocked,
			SessionID:    id,
			Achievements: recorded.Unlocked,
		})
	}

	result := &SubmitResult{
		Session:  record,
		Progress: recorded.Progress,
		Unlocked: recorded.Unlocked,
	}
	if w := m.Warning(); w != nil {
		result.Warning = w.Error()
	}
	return result, nil
}

// Get .
func (su *SessionUseCaseImpl) Get(ctx context.Context, userID, id string) (*Record, error) {
	apmSpan, _ := apm.StartSpan(ctx, "SessionUseCaseImpl.Get", "service")
	defer apmSpan.End()

	return su.SessionRepository.Get(ctx, userID, id)
}

// List page starts at 1, pageSize falls back to DefaultPageSize and is capped at MaxPageSize
func (su *SessionUseCaseImpl) List(ctx context.Context, userID string, page, pageSize int) ([]*Record, error) {
	apmSpan, _ := apm.StartSpan(ctx, "SessionUseCaseImpl.List", "service")
	defer apmSpan.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return su.SessionRepository.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
}
