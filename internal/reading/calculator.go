package reading

import "math"

// DefaultMaxWPM upper bound of a plausible reading speed
const DefaultMaxWPM = 2000

// MaxRecordedWPM ceiling of a stored speed, implausible readings beyond it saturate
const MaxRecordedWPM = math.MaxInt32

// ComprehensionWeighting derives a comprehension score (0-100) from answers.
// It's only consulted when the session has at least one answer.
type ComprehensionWeighting func(answers []Answer) float64

// Calculator computes Metrics for finalized sessions
type Calculator struct {
	MaxWPM    int
	Weighting ComprehensionWeighting
}

// NewCalculator create a Calculator, maxWPM < 1 falls back to DefaultMaxWPM
func NewCalculator(maxWPM int) *Calculator {
	if maxWPM < 1 {
		maxWPM = DefaultMaxWPM
	}
	return &Calculator{MaxWPM: maxWPM}
}

// Compute reduces a session into metrics.
//
// Implausible speeds are not an error here, the returned metrics carry the
// flag and Metrics.Warning reports it.
func (c *Calculator) Compute(s *Session) (Metrics, error) {
	duration := s.Duration()
	if duration <= 0 {
		return Metrics{}, ErrInvalidDuration
	}
	if s.TotalWords <= 0 {
		return Metrics{}, ErrNoContent
	}

	minutes := duration.Minutes()
	wpm := math.Round(float64(s.TotalWords) / minutes)
	m := Metrics{
		TotalWords:      s.TotalWords,
		DurationMinutes: minutes,
		TotalQuestions:  len(s.Answers),
		Implausible:     wpm > float64(c.maxWPM()),
	}
	// compared as float, the int conversion would overflow first
	m.WordsPerMinute = int(math.Min(wpm, MaxRecordedWPM))

	for _, a := range s.Answers {
		if a.Correct {
			m.CorrectAnswers++
		}
	}
	if m.TotalQuestions > 0 {
		m.HasComprehensionData = true
		m.Accuracy = roundHundredths(float64(m.CorrectAnswers) / float64(m.TotalQuestions) * 100)
	}

	m.ComprehensionScore = m.Accuracy
	if c.Weighting != nil && m.HasComprehensionData {
		m.ComprehensionScore = roundHundredths(clampPercent(c.Weighting(s.Answers)))
	}
	return m, nil
}

func (c *Calculator) maxWPM() int {
	if c.MaxWPM < 1 {
		return DefaultMaxWPM
	}
	return c.MaxWPM
}

func roundHundredths(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
