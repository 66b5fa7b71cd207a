package progress

import (
	"testing"
	"time"

	"github.com/pot-code/speedread/internal/reading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-04 is a Monday
func day(d int) time.Time {
	return time.Date(2024, 3, d, 18, 30, 0, 0, time.UTC)
}

func wpmMetrics(wpm int) reading.Metrics {
	return reading.Metrics{WordsPerMinute: wpm, DurationMinutes: 2, TotalWords: wpm * 2}
}

func quizMetrics(wpm int, score float64) reading.Metrics {
	m := wpmMetrics(wpm)
	m.HasComprehensionData = true
	m.Accuracy = score
	m.ComprehensionScore = score
	return m
}

func applyAll(t *testing.T, p UserProgress, steps ...func(UserProgress) (UserProgress, error)) UserProgress {
	t.Helper()
	for _, step := range steps {
		var err error
		p, err = step(p)
		require.NoError(t, err)
	}
	return p
}

func TestApply_EndToEnd(t *testing.T) {
	s := &reading.Session{
		StartTime:  day(4),
		EndTime:    day(4).Add(40 * time.Second),
		TotalWords: 200,
		Answers: []reading.Answer{
			{QuestionIndex: 0, Correct: true},
			{QuestionIndex: 1, Correct: true},
			{QuestionIndex: 2, Correct: false},
		},
	}
	m, err := reading.NewCalculator(0).Compute(s)
	require.NoError(t, err)
	assert.Equal(t, 300, m.WordsPerMinute)
	assert.Equal(t, 66.67, m.Accuracy)
	assert.True(t, m.HasComprehensionData)

	p, err := NewAggregator(nil).Apply(*NewUserProgress("u1"), m, s.EndTime)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Statistics.TotalSessions)
	assert.Equal(t, 300.0, p.Statistics.AverageWPM)
	assert.Equal(t, 300, p.Statistics.BestWPM)
	assert.Equal(t, 1, p.Statistics.CurrentStreak)
	assert.Equal(t, 1, p.Statistics.LongestStreak)
	assert.Equal(t, 66.67, p.Statistics.AverageComprehension)
	assert.Equal(t, 1, p.Statistics.ComprehensionSampleCount)
}

func TestApply_StreakLaw(t *testing.T) {
	a := NewAggregator(nil)
	p := *NewUserProgress("u1")

	for _, d := range []int{4, 5, 6} {
		var err error
		p, err = a.Apply(p, wpmMetrics(200), day(d))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, p.Statistics.CurrentStreak)
	assert.Equal(t, 3, p.Statistics.LongestStreak)

	p, err := a.Apply(p, wpmMetrics(200), day(8))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Statistics.CurrentStreak)
	assert.Equal(t, 3, p.Statistics.LongestStreak)
}

func TestApply_SameDayKeepsStreak(t *testing.T) {
	a := NewAggregator(nil)
	p := applyAll(t, *NewUserProgress("u1"),
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(200), day(4)) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(200), day(5)) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(200), day(5).Add(2*time.Hour)) },
	)
	assert.Equal(t, 2, p.Statistics.CurrentStreak)
	assert.Equal(t, 3, p.Statistics.TotalSessions)
	assert.Equal(t, day(5).Add(2*time.Hour), p.Statistics.LastSessionDate)
}

func TestApply_BestBeforeAverage(t *testing.T) {
	a := NewAggregator(nil)

	p := applyAll(t, *NewUserProgress("u1"),
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(400), day(4)) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(200), day(5)) },
	)
	assert.Equal(t, 400, p.Statistics.BestWPM)
	assert.Equal(t, 300.0, p.Statistics.AverageWPM)

	// a prior sample of 100 is part of the rolling mean
	prior := *NewUserProgress("u2")
	prior.Statistics.TotalSessions = 1
	prior.Statistics.AverageWPM = 100
	prior.Statistics.BestWPM = 100
	prior.Statistics.LastSessionDate = day(3)
	prior.Statistics.CurrentStreak = 1
	prior.Statistics.LongestStreak = 1

	next, err := a.Apply(prior, wpmMetrics(400), day(4))
	require.NoError(t, err)
	assert.Equal(t, 400, next.Statistics.BestWPM)
	assert.Equal(t, 250.0, next.Statistics.AverageWPM)
	assert.GreaterOrEqual(t, float64(next.Statistics.BestWPM), next.Statistics.AverageWPM)
}

func TestApply_SkipsComprehensionWithoutQuiz(t *testing.T) {
	a := NewAggregator(nil)
	p := applyAll(t, *NewUserProgress("u1"),
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, quizMetrics(200, 80), day(4)) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(400), day(4)) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, quizMetrics(300, 60), day(4)) },
	)
	assert.Equal(t, 3, p.Statistics.TotalSessions)
	assert.Equal(t, 300.0, p.Statistics.AverageWPM)
	assert.Equal(t, 2, p.Statistics.ComprehensionSampleCount)
	assert.Equal(t, 70.0, p.Statistics.AverageComprehension)
	assert.Equal(t, 80.0, p.Statistics.BestComprehension)
}

func TestApply_OutOfOrderLeavesProgressUnchanged(t *testing.T) {
	a := NewAggregator(nil)
	p, err := a.Apply(*NewUserProgress("u1"), quizMetrics(300, 50), day(6))
	require.NoError(t, err)
	before := p.Clone()

	got, err := a.Apply(p, quizMetrics(900, 100), day(5))
	assert.ErrorIs(t, err, ErrOutOfOrderSession)
	assert.Equal(t, before, got)
	assert.Equal(t, before, p)

	// same calendar day, earlier in the day
	got, err = a.Apply(p, quizMetrics(900, 100), day(6).Add(-3*time.Hour))
	assert.ErrorIs(t, err, ErrOutOfOrderSession)
	assert.Equal(t, before, got)
	assert.Equal(t, before, p)

	// same instant is not out of order
	got, err = a.Apply(p, quizMetrics(900, 100), day(6))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Statistics.TotalSessions)
	assert.Equal(t, 1, got.Statistics.CurrentStreak)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	a := NewAggregator(nil)
	p, err := a.Apply(*NewUserProgress("u1"), wpmMetrics(300), day(4))
	require.NoError(t, err)
	snapshot := p.Clone()

	_, err = a.Apply(p, wpmMetrics(500), day(12))
	require.NoError(t, err)
	assert.Equal(t, snapshot, p)
}

func TestApply_ImplausibleExcludedFromBest(t *testing.T) {
	a := NewAggregator(nil)
	m := quizMetrics(2500, 100)
	m.Implausible = true

	p, err := a.Apply(*NewUserProgress("u1"), wpmMetrics(300), day(4))
	require.NoError(t, err)
	p, err = a.Apply(p, m, day(4))
	require.NoError(t, err)

	assert.Equal(t, 300, p.Statistics.BestWPM)
	assert.Equal(t, 0.0, p.Statistics.BestComprehension)
	assert.Equal(t, 2, p.Statistics.TotalSessions)
	assert.Equal(t, 1400.0, p.Statistics.AverageWPM)
	assert.Equal(t, 100.0, p.Statistics.AverageComprehension)
}

func TestApply_WeeklyBuckets(t *testing.T) {
	a := NewAggregator(nil)
	p := applyAll(t, *NewUserProgress("u1"),
		// Monday and Sunday of the same ISO week
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, quizMetrics(200, 100), day(4)) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(400), day(10)) },
		// next Monday
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(500), day(11)) },
	)

	require.Len(t, p.WeeklyBuckets, 2)
	first, second := p.WeeklyBuckets[0], p.WeeklyBuckets[1]

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), first.WeekStart)
	assert.Equal(t, 2, first.SessionsCount)
	assert.Equal(t, 300.0, first.AverageWPM)
	assert.Equal(t, 100.0, first.AverageComprehension)
	assert.Equal(t, 1, first.ComprehensionSampleCount)
	assert.Equal(t, 4.0, first.ReadingTimeMinutes)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), second.WeekStart)
	assert.Equal(t, 1, second.SessionsCount)
	assert.Equal(t, 500.0, second.AverageWPM)
	assert.Equal(t, 0, second.ComprehensionSampleCount)

	assert.Equal(t, 6.0, p.Statistics.TotalReadingTimeMinutes)
}

func TestApply_BucketInsertedInOrder(t *testing.T) {
	p := *NewUserProgress("u1")
	p.WeeklyBuckets = []WeeklyBucket{
		{WeekStart: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), SessionsCount: 1},
		{WeekStart: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), SessionsCount: 1},
	}

	b := p.bucketFor(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	b.SessionsCount = 7

	require.Len(t, p.WeeklyBuckets, 3)
	assert.Equal(t, 26, p.WeeklyBuckets[0].WeekStart.Day())
	assert.Equal(t, 4, p.WeeklyBuckets[1].WeekStart.Day())
	assert.Equal(t, 7, p.WeeklyBuckets[1].SessionsCount)
	assert.Equal(t, 11, p.WeeklyBuckets[2].WeekStart.Day())
}

func TestApply_CalendarDayFollowsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	a := NewAggregator(loc)

	// 22:00 UTC on the 4th is already the 5th at UTC+3
	first := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	second := time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC)

	p := applyAll(t, *NewUserProgress("u1"),
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(200), first) },
		func(p UserProgress) (UserProgress, error) { return a.Apply(p, wpmMetrics(200), second) },
	)
	assert.Equal(t, 2, p.Statistics.CurrentStreak)

	utc := NewAggregator(nil)
	q := applyAll(t, *NewUserProgress("u1"),
		func(p UserProgress) (UserProgress, error) { return utc.Apply(p, wpmMetrics(200), first) },
		func(p UserProgress) (UserProgress, error) { return utc.Apply(p, wpmMetrics(200), second) },
	)
	assert.Equal(t, 1, q.Statistics.CurrentStreak)
}

func TestIsoWeekStart(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), isoWeekStart(sunday))

	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, isoWeekStart(monday))

	// crosses a year boundary
	wednesday := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), isoWeekStart(wednesday))
}
