package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
)

// Inbound event names (client -> server).
const (
	EventJoinInterview = "join_interview"
	EventStartQuestion = "start_question"
	EventEmotionFrame  = "emotion_frame"
	EventSubmitAnswer  = "submit_answer"
	EventGetResults    = "get_results"
)

// Outbound event names (server -> client).
const (
	EventInterviewStarted   = "interview_started"
	EventNextQuestion       = "next_question"
	EventQuestionTimeout    = "question_timeout"
	EventInterviewCompleted = "interview_completed"
	EventEmotionDetected    = "emotion_detected"
	EventInterviewResults   = "interview_results"
	EventError              = "error"
)

type DecodeError struct {
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Param == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Message: message, Param: param}
}

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Inbound interface {
	Name() string
}

type JoinInterview struct {
	Role   models.Role `json:"role"`
	BankID string      `json:"bank_id"`
}

type StartQuestion struct{}

type EmotionFrame struct {
	ImageData string `json:"image_data"`
}

type SubmitAnswer struct {
	Text string `json:"text"`
}

type GetResults struct{}

func (JoinInterview) Name() string { return EventJoinInterview }
func (StartQuestion) Name() string { return EventStartQuestion }
func (EmotionFrame) Name() string  { return EventEmotionFrame }
func (SubmitAnswer) Name() string  { return EventSubmitAnswer }
func (GetResults) Name() string    { return EventGetResults }

// Decode parses one client frame into its typed event.
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(env.Type)
	if typ == "" {
		return nil, badRequest("missing event type", "type")
	}

	switch typ {
	case EventJoinInterview:
		var msg JoinInterview
		if err := unmarshalData(env.Data, &msg); err != nil {
			return nil, err
		}
		if msg.Role == "" {
			msg.Role = models.RoleCandidate
		}
		msg.Role = models.Role(strings.ToLower(strings.TrimSpace(string(msg.Role))))
		if !msg.Role.Valid() {
			return nil, badRequest("role must be organizer or candidate", "role")
		}
		msg.BankID = strings.TrimSpace(msg.BankID)
		if msg.BankID == "" {
			return nil, badRequest("bank_id is required", "bank_id")
		}
		return msg, nil
	case EventStartQuestion:
		return StartQuestion{}, nil
	case EventEmotionFrame:
		var msg EmotionFrame
		if err := unmarshalData(env.Data, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.ImageData) == "" {
			return nil, badRequest("image_data is required", "image_data")
		}
		return msg, nil
	case EventSubmitAnswer:
		var msg SubmitAnswer
		if err := unmarshalData(env.Data, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case EventGetResults:
		return GetResults{}, nil
	default:
		return nil, badRequest("unknown event type", typ)
	}
}

func unmarshalData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return badRequest("invalid event payload", "data")
	}
	return nil
}

type Outbound interface {
	Name() string
}

type InterviewStarted struct {
	TotalQuestions int    `json:"total_questions"`
	FirstQuestion  string `json:"first_question"`
}

type NextQuestion struct {
	Question       string `json:"question"`
	QuestionNumber int    `json:"question_number"`
	TotalQuestions int    `json:"total_questions"`
}

type QuestionTimeout struct{}

type InterviewCompleted struct{}

type EmotionDetected struct {
	Label     string  `json:"label"`
	Timestamp float64 `json:"timestamp"`
}

type InterviewResults struct {
	Answers           []models.Answer `json:"answers"`
	EmotionStats      map[string]int  `json:"emotion_stats"`
	TotalObservations int             `json:"total_observations"`
	DurationSeconds   float64         `json:"duration_seconds"`
}

type Error struct {
	Message string `json:"message"`
}

func (InterviewStarted) Name() string   { return EventInterviewStarted }
func (NextQuestion) Name() string       { return EventNextQuestion }
func (QuestionTimeout) Name() string    { return EventQuestionTimeout }
func (InterviewCompleted) Name() string { return EventInterviewCompleted }
func (EmotionDetected) Name() string    { return EventEmotionDetected }
func (InterviewResults) Name() string   { return EventInterviewResults }
func (Error) Name() string              { return EventError }

// UnixSeconds renders t the way browser clients expect emotion timestamps.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func ResultsFrom(r models.InterviewResults) InterviewResults {
	answers := r.Answers
	if answers == nil {
		answers = []models.Answer{}
	}
	stats := r.EmotionStats
	if stats == nil {
		stats = map[string]int{}
	}
	return InterviewResults{
		Answers:           answers,
		EmotionStats:      stats,
		TotalObservations: r.TotalObservations,
		DurationSeconds:   r.DurationSeconds,
	}
}

// Encode renders an outbound event as a wire frame.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.Name(), Data: data})
}
