package interview

import (
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

// The transitions below run inside SessionStore.Mutate. Each validates
// before writing, so a returned error leaves the session untouched (Join
// into ERROR is the one deliberate exception).

// Advance describes where a session landed after a question ended.
type Advance struct {
	Completed      bool
	Question       string
	QuestionNumber int
	TotalQuestions int
}

func Join(s *models.InterviewSession, bank *models.QuestionBank) error {
	const op = "interview.Join"

	if s.State != models.StateJoining {
		return utils.E(utils.CodeFailedPrecondition, op, "already joined", utils.ErrInvalidTransition)
	}
	if bank == nil {
		s.State = models.StateError
		return utils.E(utils.CodeNotFound, op, "no interview found for id "+s.BankID, utils.ErrNotFound)
	}
	s.BankID = bank.BankID
	s.Questions = bank.Questions
	s.State = models.StateReady
	return nil
}

func StartQuestion(s *models.InterviewSession, now time.Time) (models.Generation, error) {
	const op = "interview.StartQuestion"

	if err := requireCandidate(s, op); err != nil {
		return models.Generation{}, err
	}
	switch s.State {
	case models.StateReady, models.StateQuestionActive:
	case models.StateCompleted:
		return models.Generation{}, utils.E(utils.CodeFailedPrecondition, op, "interview already completed", utils.ErrInvalidTransition)
	default:
		return models.Generation{}, utils.E(utils.CodeFailedPrecondition, op, "join an interview first", utils.ErrInvalidTransition)
	}
	if s.CurrentQuestionIndex >= len(s.Questions) {
		return models.Generation{}, utils.E(utils.CodeFailedPrecondition, op, "no questions remaining", utils.ErrInvalidTransition)
	}

	started := now.UTC()
	s.Seq++
	s.QuestionStartedAt = &started
	s.Recording = true
	s.State = models.StateQuestionActive
	return s.Generation(), nil
}

func SubmitAnswer(s *models.InterviewSession, text string, now time.Time) (Advance, error) {
	const op = "interview.SubmitAnswer"

	if err := requireCandidate(s, op); err != nil {
		return Advance{}, err
	}
	if s.State == models.StateCompleted {
		return Advance{}, utils.E(utils.CodeFailedPrecondition, op, "interview already completed", utils.ErrInvalidTransition)
	}
	// After a timeout or an answer the next question stays unrecorded until
	// the candidate starts it.
	if s.State != models.StateQuestionActive || !s.Recording {
		return Advance{}, utils.E(utils.CodeFailedPrecondition, op, "no active question", utils.ErrInvalidTransition)
	}

	s.Answers = append(s.Answers, models.Answer{
		QuestionIndex: s.CurrentQuestionIndex,
		Text:          text,
		SubmittedAt:   now.UTC(),
	})
	return advance(s, now), nil
}

// Timeout ends the question activation identified by gen. It returns
// ErrStaleTimer when the session has moved on since the timer was armed.
func Timeout(s *models.InterviewSession, gen models.Generation, now time.Time) (Advance, error) {
	if s.State != models.StateQuestionActive || !s.Recording || !s.Generation().Same(gen) {
		return Advance{}, utils.ErrStaleTimer
	}
	return advance(s, now), nil
}

// ReserveFrame admits at most one frame per interval while recording and
// returns the activation the frame belongs to.
func ReserveFrame(s *models.InterviewSession, now time.Time, interval time.Duration) (models.Generation, bool) {
	if !s.Recording {
		return models.Generation{}, false
	}
	if !s.LastFrameAt.IsZero() && now.Sub(s.LastFrameAt) < interval {
		return models.Generation{}, false
	}
	s.LastFrameAt = now
	return s.Generation(), true
}

// RecordEmotion appends an observation only if the activation that admitted
// the frame is still recording.
func RecordEmotion(s *models.InterviewSession, gen models.Generation, label string, ts time.Time) bool {
	if !s.Recording || !s.Generation().Same(gen) {
		return false
	}
	s.EmotionObservations = append(s.EmotionObservations, models.EmotionObservation{
		Label:         label,
		Timestamp:     ts.UTC(),
		QuestionIndex: s.CurrentQuestionIndex,
	})
	return true
}

func advance(s *models.InterviewSession, now time.Time) Advance {
	s.Recording = false
	s.CurrentQuestionIndex++

	total := len(s.Questions)
	if s.CurrentQuestionIndex >= total {
		done := now.UTC()
		s.CurrentQuestionIndex = total
		s.State = models.StateCompleted
		s.CompletedAt = &done
		return Advance{Completed: true, TotalQuestions: total}
	}
	return Advance{
		Question:       s.Questions[s.CurrentQuestionIndex],
		QuestionNumber: s.CurrentQuestionIndex + 1,
		TotalQuestions: total,
	}
}

func requireCandidate(s *models.InterviewSession, op string) error {
	if s.Role != models.RoleCandidate {
		return utils.E(utils.CodeFailedPrecondition, op, "organizers cannot answer questions", utils.ErrInvalidTransition)
	}
	return nil
}
