// Package reading reduces a finished reading session into its derived metrics.
package reading

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidDuration session ends before (or exactly when) it starts
var ErrInvalidDuration = errors.New("Session end time must be after its start time")

// ErrNoContent session has no words to read
var ErrNoContent = errors.New("Session has no content, total words must be positive")

// ErrImplausibleReading computed speed is outside the plausible band, which
// usually means a client-side timing defect
var ErrImplausibleReading = errors.New("Reading speed is outside the plausible range")

// WordEvent a word (or word group) shown to the reader
type WordEvent struct {
	WordIndex           int   `json:"word_index" bson:"word_index" validate:"min=0"`
	DisplayedAtOffsetMs int64 `json:"displayed_at_offset_ms" bson:"displayed_at_offset_ms" validate:"min=0"`
}

// Answer a recorded quiz answer. Correct is trusted as recorded.
type Answer struct {
	QuestionIndex     int   `json:"question_index" bson:"question_index" validate:"min=0"`
	ChosenOptionIndex int   `json:"chosen_option_index" bson:"chosen_option_index" validate:"min=0"`
	Correct           bool  `json:"correct" bson:"correct"`
	TimeSpentMs       int64 `json:"time_spent_ms" bson:"time_spent_ms" validate:"min=0"`
}

// Settings presentation parameters the session was read with
type Settings struct {
	WPMSetting    int    `json:"wpm_setting" bson:"wpm_setting" validate:"min=0"`
	WordsPerGroup int    `json:"words_per_group" bson:"words_per_group" validate:"min=0"`
	Theme         string `json:"theme,omitempty" bson:"theme,omitempty"`
}

// Session a finalized reading session. TotalWords is the activity word count
// captured at read time.
type Session struct {
	ID           string          `json:"id" bson:"_id"`
	UserID       string          `json:"user_id" bson:"user_id"`
	ActivityID   string          `json:"activity_id" bson:"activity_id"`
	StartTime    time.Time       `json:"start_time" bson:"start_time"`
	EndTime      time.Time       `json:"end_time" bson:"end_time"`
	WordEvents   []WordEvent     `json:"word_events" bson:"word_events"`
	Answers      []Answer        `json:"answers" bson:"answers"`
	TotalWords   int             `json:"total_words" bson:"total_words"`
	Settings     Settings        `json:"settings" bson:"settings"`
	Notes        string          `json:"notes,omitempty" bson:"notes,omitempty"`
	DeviceInfo   json.RawMessage `json:"device_info,omitempty" bson:"device_info,omitempty"`
	TrackingData json.RawMessage `json:"tracking_data,omitempty" bson:"tracking_data,omitempty"`
}

// Duration elapsed time between start and end
func (s *Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Metrics session-level results derived by Calculator
type Metrics struct {
	WordsPerMinute       int     `json:"wpm" bson:"wpm"`
	Accuracy             float64 `json:"accuracy" bson:"accuracy"`
	ComprehensionScore   float64 `json:"comprehension_score" bson:"comprehension_score"`
	HasComprehensionData bool    `json:"has_comprehension_data" bson:"has_comprehension_data"`
	CorrectAnswers       int     `json:"correct_answers" bson:"correct_answers"`
	TotalQuestions       int     `json:"total_questions" bson:"total_questions"`
	TotalWords           int     `json:"total_words" bson:"total_words"`
	DurationMinutes      float64 `json:"duration_minutes" bson:"duration_minutes"`
	Implausible          bool    `json:"implausible" bson:"implausible"`
}

// Warning returns ErrImplausibleReading for flagged metrics, nil otherwise
func (m Metrics) Warning() error {
	if m.Implausible {
		return ErrImplausibleReading
	}
	return nil
}
