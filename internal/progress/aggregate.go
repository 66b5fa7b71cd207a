package progress

import (
	"sort"
	"time"

	"github.com/pot-code/speedread/internal/reading"
)

// Aggregator folds session metrics into progress records. Calendar days and
// ISO weeks are evaluated in Location (UTC when nil).
type Aggregator struct {
	Location *time.Location
}

// NewAggregator .
func NewAggregator(loc *time.Location) *Aggregator {
	return &Aggregator{Location: loc}
}

// Apply returns p with m folded in. p is never modified; on error the
// returned progress is p itself.
//
// Sessions dated before the last folded one, even on the same day, are
// rejected with ErrOutOfOrderSession. Implausible metrics count towards totals
// and averages but never raise a best.
func (a *Aggregator) Apply(p UserProgress, m reading.Metrics, sessionDate time.Time) (UserProgress, error) {
	day := a.civilDay(sessionDate)
	prev := p.Statistics

	streak := 1
	if !prev.LastSessionDate.IsZero() {
		if sessionDate.Before(prev.LastSessionDate) {
			return p, ErrOutOfOrderSession
		}
		switch gap := daysBetween(a.civilDay(prev.LastSessionDate), day); {
		case gap == 0:
			streak = prev.CurrentStreak
			if streak < 1 {
				streak = 1
			}
		case gap == 1:
			streak = prev.CurrentStreak + 1
		}
	}

	next := p.Clone()
	st := &next.Statistics
	wpm := float64(m.WordsPerMinute)

	st.TotalSessions++
	st.TotalReadingTimeMinutes += m.DurationMinutes
	if !m.Implausible && m.WordsPerMinute > st.BestWPM {
		st.BestWPM = m.WordsPerMinute
	}
	st.AverageWPM = foldAverage(st.AverageWPM, wpm, st.TotalSessions)

	if m.HasComprehensionData {
		if !m.Implausible && m.ComprehensionScore > st.BestComprehension {
			st.BestComprehension = m.ComprehensionScore
		}
		st.ComprehensionSampleCount++
		st.AverageComprehension = foldAverage(st.AverageComprehension, m.ComprehensionScore, st.ComprehensionSampleCount)
	}

	st.CurrentStreak = streak
	if streak > st.LongestStreak {
		st.LongestStreak = streak
	}
	st.LastSessionDate = sessionDate

	bucket := next.bucketFor(isoWeekStart(day))
	bucket.SessionsCount++
	bucket.ReadingTimeMinutes += m.DurationMinutes
	bucket.AverageWPM = foldAverage(bucket.AverageWPM, wpm, bucket.SessionsCount)
	if m.HasComprehensionData {
		bucket.ComprehensionSampleCount++
		bucket.AverageComprehension = foldAverage(bucket.AverageComprehension, m.ComprehensionScore, bucket.ComprehensionSampleCount)
	}
	return next, nil
}

// bucketFor finds the bucket starting at week, inserting a zeroed one at its
// chronological position when missing
func (p *UserProgress) bucketFor(week time.Time) *WeeklyBucket {
	buckets := p.WeeklyBuckets
	i := sort.Search(len(buckets), func(i int) bool {
		return !buckets[i].WeekStart.Before(week)
	})
	if i < len(buckets) && buckets[i].WeekStart.Equal(week) {
		return &p.WeeklyBuckets[i]
	}
	buckets = append(buckets, WeeklyBucket{})
	copy(buckets[i+1:], buckets[i:])
	buckets[i] = WeeklyBucket{WeekStart: week}
	p.WeeklyBuckets = buckets
	return &p.WeeklyBuckets[i]
}

// civilDay midnight UTC of t's calendar date in the aggregator location
func (a *Aggregator) civilDay(t time.Time) time.Time {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// isoWeekStart Monday of day's ISO week
func isoWeekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func foldAverage(avg, value float64, count int) float64 {
	return avg + (value-avg)/float64(count)
}
