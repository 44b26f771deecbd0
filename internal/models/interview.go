package models

import "time"

type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleCandidate Role = "candidate"
)

func (r Role) Valid() bool { return r == RoleOrganizer || r == RoleCandidate }

type SessionState string

const (
	StateJoining        SessionState = "joining"
	StateReady          SessionState = "ready"
	StateQuestionActive SessionState = "question_active"
	StateCompleted      SessionState = "completed"
	StateError          SessionState = "error"
)

// Generation identifies one question activation. A timer armed for a
// generation may only act while the session still carries the same one.
type Generation struct {
	QuestionIndex int       `json:"question_index"`
	StartedAt     time.Time `json:"started_at"`
	Seq           uint64    `json:"seq"`
}

func (g Generation) Same(o Generation) bool {
	return g.QuestionIndex == o.QuestionIndex && g.Seq == o.Seq && g.StartedAt.Equal(o.StartedAt)
}

type Answer struct {
	QuestionIndex int       `bson:"question_index" json:"question_index"`
	Text          string    `bson:"text" json:"text"`
	SubmittedAt   time.Time `bson:"submitted_at" json:"submitted_at"`
}

type EmotionObservation struct {
	Label         string    `bson:"label" json:"label"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
	QuestionIndex int       `bson:"question_index" json:"question_index"`
}

// InterviewSession is owned by the session store; it is only read or
// written inside SessionStore.Mutate or as a snapshot copy.
type InterviewSession struct {
	SessionID string       `json:"session_id"`
	Role      Role         `json:"role"`
	BankID    string       `json:"bank_id,omitempty"`
	State     SessionState `json:"state"`

	// Questions is the resolved bank content; banks are immutable so the
	// slice is shared, never copied.
	Questions []string `json:"-"`

	CurrentQuestionIndex int                  `json:"current_question_index"`
	Answers              []Answer             `json:"answers"`
	EmotionObservations  []EmotionObservation `json:"emotion_observations"`

	QuestionStartedAt *time.Time `json:"question_started_at,omitempty"`
	Recording         bool       `json:"recording"`

	// Seq counts question activations.
	Seq uint64 `json:"-"`

	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	LastFrameAt  time.Time  `json:"-"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Generation returns the current activation token. The zero StartedAt means
// no question has been started.
func (s *InterviewSession) Generation() Generation {
	g := Generation{QuestionIndex: s.CurrentQuestionIndex, Seq: s.Seq}
	if s.QuestionStartedAt != nil {
		g.StartedAt = *s.QuestionStartedAt
	}
	return g
}

func (s *InterviewSession) TotalQuestions() int { return len(s.Questions) }

// Clone returns a copy whose slices do not alias the receiver's append
// targets.
func (s *InterviewSession) Clone() InterviewSession {
	out := *s
	out.Answers = append([]Answer(nil), s.Answers...)
	out.EmotionObservations = append([]EmotionObservation(nil), s.EmotionObservations...)
	if s.QuestionStartedAt != nil {
		t := *s.QuestionStartedAt
		out.QuestionStartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
