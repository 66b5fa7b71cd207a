package reading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newSession(words int, d time.Duration, answers ...bool) *Session {
	s := &Session{
		UserID:     "u1",
		ActivityID: "a1",
		StartTime:  t0,
		EndTime:    t0.Add(d),
		TotalWords: words,
		WordEvents: []WordEvent{{WordIndex: 0, DisplayedAtOffsetMs: 0}},
	}
	for i, correct := range answers {
		s.Answers = append(s.Answers, Answer{QuestionIndex: i, Correct: correct})
	}
	return s
}

func TestCompute_WordsPerMinute(t *testing.T) {
	m, err := NewCalculator(0).Compute(newSession(300, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 300, m.WordsPerMinute)
	assert.Equal(t, 1.0, m.DurationMinutes)
	assert.False(t, m.Implausible)
	assert.NoError(t, m.Warning())
}

func TestCompute_Rounding(t *testing.T) {
	// 250 words in 70s = 214.28...
	m, err := NewCalculator(0).Compute(newSession(250, 70*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 214, m.WordsPerMinute)
}

func TestCompute_NoQuestions(t *testing.T) {
	m, err := NewCalculator(0).Compute(newSession(300, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Accuracy)
	assert.Equal(t, 0.0, m.ComprehensionScore)
	assert.False(t, m.HasComprehensionData)
	assert.Equal(t, 0, m.TotalQuestions)
}

func TestCompute_Accuracy(t *testing.T) {
	m, err := NewCalculator(0).Compute(newSession(200, 40*time.Second, true, true, false))
	require.NoError(t, err)
	assert.Equal(t, 300, m.WordsPerMinute)
	assert.Equal(t, 66.67, m.Accuracy)
	assert.Equal(t, 66.67, m.ComprehensionScore)
	assert.True(t, m.HasComprehensionData)
	assert.Equal(t, 2, m.CorrectAnswers)
	assert.Equal(t, 3, m.TotalQuestions)
}

func TestCompute_AllWrongIsStillComprehensionData(t *testing.T) {
	m, err := NewCalculator(0).Compute(newSession(200, time.Minute, false, false))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Accuracy)
	assert.True(t, m.HasComprehensionData)
}

func TestCompute_TrustsRecordedCorrectness(t *testing.T) {
	s := newSession(100, time.Minute)
	s.Answers = []Answer{
		{QuestionIndex: 0, ChosenOptionIndex: 3, Correct: true},
		{QuestionIndex: 1, ChosenOptionIndex: 0, Correct: true},
	}
	m, err := NewCalculator(0).Compute(s)
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.Accuracy)
}

func TestCompute_InvalidDuration(t *testing.T) {
	c := NewCalculator(0)

	_, err := c.Compute(newSession(300, 0))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = c.Compute(newSession(300, -time.Second))
	assert.ErrorIs(t, err, ErrInvalidDuration)

	// duration is checked before content
	_, err = c.Compute(newSession(0, 0))
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestCompute_NoContent(t *testing.T) {
	c := NewCalculator(0)

	_, err := c.Compute(newSession(0, time.Minute))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = c.Compute(newSession(-5, time.Minute))
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestCompute_Implausible(t *testing.T) {
	// 3000 words in one minute
	m, err := NewCalculator(0).Compute(newSession(3000, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3000, m.WordsPerMinute, "speed is reported, not clamped")
	assert.True(t, m.Implausible)
	assert.ErrorIs(t, m.Warning(), ErrImplausibleReading)

	// exactly at the bound is fine
	m, err = NewCalculator(0).Compute(newSession(2000, time.Minute))
	require.NoError(t, err)
	assert.False(t, m.Implausible)
}

func TestCompute_ExtremeWordCountSaturates(t *testing.T) {
	m, err := NewCalculator(0).Compute(newSession(1e15, time.Millisecond))
	require.NoError(t, err)
	assert.True(t, m.Implausible)
	assert.Equal(t, MaxRecordedWPM, m.WordsPerMinute)
	assert.Equal(t, int(1e15), m.TotalWords)
}

func TestCompute_CustomBound(t *testing.T) {
	m, err := NewCalculator(500).Compute(newSession(600, time.Minute))
	require.NoError(t, err)
	assert.True(t, m.Implausible)
}

func TestCompute_Weighting(t *testing.T) {
	c := NewCalculator(0)
	c.Weighting = func(answers []Answer) float64 {
		// first answer counts double
		score, total := 0.0, 0.0
		for i, a := range answers {
			w := 1.0
			if i == 0 {
				w = 2
			}
			total += w
			if a.Correct {
				score += w
			}
		}
		return score / total * 100
	}

	m, err := c.Compute(newSession(200, time.Minute, true, false))
	require.NoError(t, err)
	assert.Equal(t, 50.0, m.Accuracy)
	assert.Equal(t, 66.67, m.ComprehensionScore)

	// weighting is skipped without answers
	m, err = c.Compute(newSession(200, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.ComprehensionScore)
}

func TestCompute_WeightingIsClamped(t *testing.T) {
	c := &Calculator{Weighting: func([]Answer) float64 { return 140 }}
	m, err := c.Compute(newSession(200, time.Minute, true))
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.ComprehensionScore)
}
