package progress

import (
	"fmt"
	"time"
)

// Metric statistic a rule is evaluated against
type Metric string

// supported metrics
const (
	MetricTotalSessions        Metric = "total_sessions"
	MetricTotalReadingMinutes  Metric = "total_reading_time_minutes"
	MetricAverageWPM           Metric = "average_wpm"
	MetricAverageComprehension Metric = "average_comprehension"
	MetricBestWPM              Metric = "best_wpm"
	MetricBestComprehension    Metric = "best_comprehension"
	MetricCurrentStreak        Metric = "current_streak"
	MetricLongestStreak        Metric = "longest_streak"
)

// Value reads the metric from st, ok is false for unknown metrics
func (m Metric) Value(st Statistics) (v float64, ok bool) {
	switch m {
	case MetricTotalSessions:
		return float64(st.TotalSessions), true
	case MetricTotalReadingMinutes:
		return st.TotalReadingTimeMinutes, true
	case MetricAverageWPM:
		return st.AverageWPM, true
	case MetricAverageComprehension:
		return st.AverageComprehension, true
	case MetricBestWPM:
		return float64(st.BestWPM), true
	case MetricBestComprehension:
		return st.BestComprehension, true
	case MetricCurrentStreak:
		return float64(st.CurrentStreak), true
	case MetricLongestStreak:
		return float64(st.LongestStreak), true
	}
	return 0, false
}

// Rule an unlockable achievement. Predicate takes precedence over the
// Metric >= Threshold comparison when set.
type Rule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Metric      Metric  `json:"metric,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`

	Predicate func(Statistics) bool `json:"-"`
}

// Satisfied .
func (r Rule) Satisfied(st Statistics) bool {
	if r.Predicate != nil {
		return r.Predicate(st)
	}
	v, ok := r.Metric.Value(st)
	return ok && v >= r.Threshold
}

// Catalog ordered set of rules, IDs are unique
type Catalog []Rule

// Validate checks ID uniqueness and metric names
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c))
	for _, r := range c {
		if r.ID == "" {
			return fmt.Errorf("achievement %q: empty id", r.Name)
		}
		if seen[r.ID] {
			return fmt.Errorf("achievement %q: duplicated id", r.ID)
		}
		seen[r.ID] = true
		if r.Predicate == nil {
			if _, ok := r.Metric.Value(Statistics{}); !ok {
				return fmt.Errorf("achievement %q: unknown metric %q", r.ID, r.Metric)
			}
		}
	}
	return nil
}

// DefaultCatalog built-in achievements
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "first_session", Name: "First Steps", Description: "Complete your first reading session", Metric: MetricTotalSessions, Threshold: 1},
		{ID: "sessions_10", Name: "Regular Reader", Description: "Complete 10 reading sessions", Metric: MetricTotalSessions, Threshold: 10},
		{ID: "sessions_100", Name: "Bookworm", Description: "Complete 100 reading sessions", Metric: MetricTotalSessions, Threshold: 100},
		{ID: "reading_hours_10", Name: "Ten Hours In", Description: "Read for 10 hours in total", Metric: MetricTotalReadingMinutes, Threshold: 600},
		{ID: "wpm_300", Name: "Quick Eyes", Description: "Reach 300 words per minute", Metric: MetricBestWPM, Threshold: 300},
		{ID: "wpm_500", Name: "Speed Reader", Description: "Reach 500 words per minute", Metric: MetricBestWPM, Threshold: 500},
		{ID: "wpm_1000", Name: "Lightning", Description: "Reach 1000 words per minute", Metric: MetricBestWPM, Threshold: 1000},
		{ID: "comprehension_100", Name: "Sharp Mind", Description: "Answer every question of a quiz correctly", Metric: MetricBestComprehension, Threshold: 100},
		{ID: "streak_7", Name: "Week Streak", Description: "Read 7 days in a row", Metric: MetricLongestStreak, Threshold: 7},
		{ID: "streak_30", Name: "Month Streak", Description: "Read 30 days in a row", Metric: MetricLongestStreak, Threshold: 30},
	}
}

// Evaluate lists achievements of catalog whose rule holds for p and that p
// has not unlocked yet, stamped with at. Re-evaluating an unchanged progress
// after Unlock yields nothing.
func Evaluate(p UserProgress, catalog Catalog, at time.Time) []Achievement {
	var unlocked []Achievement
	for _, rule := range catalog {
		if p.HasAchievement(rule.ID) || !rule.Satisfied(p.Statistics) {
			continue
		}
		unlocked = append(unlocked, Achievement{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			UnlockedAt:  at,
		})
	}
	return unlocked
}

// Unlock returns a copy of p with achievements appended, skipping IDs p
// already holds
func Unlock(p UserProgress, achievements []Achievement) UserProgress {
	next := p.Clone()
	for _, a := range achievements {
		if next.HasAchievement(a.ID) {
			continue
		}
		next.Achievements = append(next.Achievements, a)
	}
	return next
}
