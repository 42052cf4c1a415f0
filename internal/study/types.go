// Package study tracks study sessions and the per-topic progress ledger.
package study

import (
	"math"
	"time"
)

// Session is a bounded interval of study against one topic. EndTime is nil while
// the session is open.
type Session struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	TopicID            string     `json:"topic_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	QuestionsAttempted int        `json:"questions_attempted"`
	QuestionsCorrect   int        `json:"questions_correct"`
}

// Open reports whether the session has not ended.
func (s Session) Open() bool {
	return s.EndTime == nil
}

// Duration is the time between start and end, or zero for an open session.
func (s Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Progress is the cumulative ledger entry for one (user, topic) pair.
type Progress struct {
	UserID             string    `json:"user_id"`
	TopicID            string    `json:"topic_id"`
	QuestionsAttempted int       `json:"questions_attempted"`
	QuestionsCorrect   int       `json:"questions_correct"`
	LastStudied        time.Time `json:"last_studied"`
}

// Accuracy returns the share of correct answers as a whole percentage.
func (p Progress) Accuracy() int {
	return percent(p.QuestionsCorrect, p.QuestionsAttempted)
}

// Summary aggregates a user's ledger and session history.
type Summary struct {
	TopicsStudied      int           `json:"topics_studied"`
	QuestionsAttempted int           `json:"questions_attempted"`
	QuestionsCorrect   int           `json:"questions_correct"`
	Accuracy           int           `json:"accuracy"`
	Sessions           int           `json:"sessions"`
	StudyTime          time.Duration `json:"study_time_ns"`
	LastStudied        *time.Time    `json:"last_studied,omitempty"`
}

// Summarize totals progress records and ended sessions.
func Summarize(progress []Progress, sessions []Session) Summary {
	var s Summary
	for _, p := range progress {
		s.TopicsStudied++
		s.QuestionsAttempted += p.QuestionsAttempted
		s.QuestionsCorrect += p.QuestionsCorrect
		if s.LastStudied == nil || p.LastStudied.After(*s.LastStudied) {
			last := p.LastStudied
			s.LastStudied = &last
		}
	}
	for _, sess := range sessions {
		if sess.Open() {
			continue
		}
		s.Sessions++
		s.StudyTime += sess.Duration()
	}
	s.Accuracy = percent(s.QuestionsCorrect, s.QuestionsAttempted)
	return s
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
