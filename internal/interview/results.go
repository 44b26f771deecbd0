package interview

import (
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
)

// Summarize derives results from a session snapshot. It is valid at any
// point in the session's life; before the first question it reports zero
// duration.
func Summarize(s models.InterviewSession, now time.Time) models.InterviewResults {
	stats := make(map[string]int)
	for _, o := range s.EmotionObservations {
		stats[o.Label]++
	}

	var duration float64
	if s.QuestionStartedAt != nil {
		if d := now.Sub(*s.QuestionStartedAt).Seconds(); d > 0 {
			duration = d
		}
	}

	answers := append([]models.Answer{}, s.Answers...)
	return models.InterviewResults{
		SessionID:         s.SessionID,
		Answers:           answers,
		EmotionStats:      stats,
		TotalObservations: len(s.EmotionObservations),
		DurationSeconds:   duration,
	}
}

// Record builds the archive entry for a completed session.
func Record(s models.InterviewSession, now time.Time) *models.InterviewRecord {
	completed := now.UTC()
	if s.CompletedAt != nil {
		completed = *s.CompletedAt
	}
	return &models.InterviewRecord{
		SessionID:      s.SessionID,
		BankID:         s.BankID,
		TotalQuestions: s.TotalQuestions(),
		Results:        Summarize(s, now),
		Observations:   append([]models.EmotionObservation{}, s.EmotionObservations...),
		StartedAt:      s.CreatedAt,
		CompletedAt:    completed,
	}
}
