package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InterviewResults struct {
	SessionID         string         `bson:"session_id" json:"session_id"`
	Answers           []Answer       `bson:"answers" json:"answers"`
	EmotionStats      map[string]int `bson:"emotion_stats" json:"emotion_stats"`
	TotalObservations int            `bson:"total_observations" json:"total_observations"`
	DurationSeconds   float64        `bson:"duration_seconds" json:"duration_seconds"`
}

// InterviewRecord is the archived form of a completed interview.
type InterviewRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	BankID    string             `bson:"bank_id" json:"bank_id"`

	TotalQuestions int              `bson:"total_questions" json:"total_questions"`
	Results        InterviewResults `bson:"results" json:"results"`

	Observations []EmotionObservation `bson:"observations" json:"observations"`

	StartedAt   time.Time `bson:"started_at" json:"started_at"`
	CompletedAt time.Time `bson:"completed_at" json:"completed_at"`
}
