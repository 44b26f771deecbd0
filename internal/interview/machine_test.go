package interview

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

var t0 = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func readySession(role models.Role, questions ...string) *models.InterviewSession {
	s := &models.InterviewSession{SessionID: "s1", Role: role, BankID: "b1", State: models.StateJoining}
	if err := Join(s, &models.QuestionBank{BankID: "b1", Questions: questions}); err != nil {
		panic(err)
	}
	return s
}

func TestJoin_UnknownBankMovesToError(t *testing.T) {
	s := &models.InterviewSession{SessionID: "s1", Role: models.RoleCandidate, BankID: "nope", State: models.StateJoining}
	err := Join(s, nil)
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if s.State != models.StateError {
		t.Fatalf("state=%q, want error", s.State)
	}
	if utils.Message(err) != "no interview found for id nope" {
		t.Fatalf("message=%q", utils.Message(err))
	}
}

func TestJoin_Twice(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1")
	if err := Join(s, &models.QuestionBank{BankID: "b2", Questions: []string{"X"}}); !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("err=%v", err)
	}
	if s.BankID != "b1" {
		t.Fatalf("bank changed on rejected join")
	}
}

func TestStartQuestion_BumpsGeneration(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1", "Q2")

	g1, err := StartQuestion(s, t0)
	if err != nil {
		t.Fatalf("StartQuestion() error = %v", err)
	}
	if s.State != models.StateQuestionActive || !s.Recording {
		t.Fatalf("state=%q recording=%v", s.State, s.Recording)
	}

	// Restarting the same question is allowed and supersedes the old deadline.
	g2, err := StartQuestion(s, t0.Add(time.Second))
	if err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if g1.Same(g2) {
		t.Fatalf("restart kept generation %+v", g1)
	}
	if g2.QuestionIndex != 0 {
		t.Fatalf("index=%d, want 0", g2.QuestionIndex)
	}
}

func TestStartQuestion_Rejections(t *testing.T) {
	org := readySession(models.RoleOrganizer, "Q1")
	if _, err := StartQuestion(org, t0); utils.Message(err) != "organizers cannot answer questions" {
		t.Fatalf("organizer err=%v", err)
	}

	joining := &models.InterviewSession{Role: models.RoleCandidate, State: models.StateJoining}
	if _, err := StartQuestion(joining, t0); !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("joining err=%v", err)
	}

	done := readySession(models.RoleCandidate, "Q1")
	if _, err := StartQuestion(done, t0); err != nil {
		t.Fatal(err)
	}
	if _, err := SubmitAnswer(done, "a", t0); err != nil {
		t.Fatal(err)
	}
	before := done.Seq
	if _, err := StartQuestion(done, t0); !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("completed err=%v", err)
	}
	if done.Seq != before || done.Recording {
		t.Fatalf("rejected start mutated session")
	}
}

func TestSubmitAnswer_TwoQuestionFlow(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1", "Q2")

	if _, err := StartQuestion(s, t0); err != nil {
		t.Fatal(err)
	}
	adv, err := SubmitAnswer(s, "first", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if adv.Completed || adv.Question != "Q2" || adv.QuestionNumber != 2 || adv.TotalQuestions != 2 {
		t.Fatalf("advance=%+v", adv)
	}
	if s.Recording || s.State != models.StateQuestionActive {
		t.Fatalf("recording=%v state=%q after answer", s.Recording, s.State)
	}

	if _, err := StartQuestion(s, t0.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	adv, err = SubmitAnswer(s, "second", t0.Add(3*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !adv.Completed || s.State != models.StateCompleted || s.CompletedAt == nil {
		t.Fatalf("advance=%+v state=%q", adv, s.State)
	}
	if s.CurrentQuestionIndex != 2 || len(s.Answers) != 2 {
		t.Fatalf("index=%d answers=%d", s.CurrentQuestionIndex, len(s.Answers))
	}
	if s.Answers[1].QuestionIndex != 1 || s.Answers[1].Text != "second" {
		t.Fatalf("answer=%+v", s.Answers[1])
	}

	if _, err := SubmitAnswer(s, "late", t0); !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("answer after completion err=%v", err)
	}
	if len(s.Answers) != 2 {
		t.Fatalf("late answer recorded")
	}
}

func TestSubmitAnswer_BeforeStart(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1")
	if _, err := SubmitAnswer(s, "x", t0); utils.Message(err) != "no active question" {
		t.Fatalf("err=%v", err)
	}
}

func TestSubmitAnswer_AfterTimeoutWaitsForStart(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1", "Q2", "Q3")
	gen, _ := StartQuestion(s, t0)
	if _, err := Timeout(s, gen, t0); err != nil {
		t.Fatal(err)
	}

	if _, err := SubmitAnswer(s, "late", t0); utils.Message(err) != "no active question" {
		t.Fatalf("err=%v, want no active question", err)
	}
	if s.CurrentQuestionIndex != 1 || len(s.Answers) != 0 {
		t.Fatalf("index=%d answers=%d after rejected submit", s.CurrentQuestionIndex, len(s.Answers))
	}

	StartQuestion(s, t0)
	adv, err := SubmitAnswer(s, "second", t0)
	if err != nil || adv.QuestionNumber != 3 {
		t.Fatalf("adv=%+v err=%v", adv, err)
	}
	if got := s.Answers[0]; got.QuestionIndex != 1 || got.Text != "second" {
		t.Fatalf("answer=%+v", got)
	}
}

func TestTimeout_StaleGenerationIsNoop(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1", "Q2")
	g1, _ := StartQuestion(s, t0)
	if _, err := SubmitAnswer(s, "a", t0); err != nil {
		t.Fatal(err)
	}

	if _, err := Timeout(s, g1, t0); !errors.Is(err, utils.ErrStaleTimer) {
		t.Fatalf("err=%v, want ErrStaleTimer", err)
	}
	if s.CurrentQuestionIndex != 1 {
		t.Fatalf("stale timer advanced index to %d", s.CurrentQuestionIndex)
	}

	// Same index, newer activation.
	g2, _ := StartQuestion(s, t0)
	g3, _ := StartQuestion(s, t0)
	if _, err := Timeout(s, g2, t0); !errors.Is(err, utils.ErrStaleTimer) {
		t.Fatalf("superseded timer err=%v", err)
	}
	adv, err := Timeout(s, g3, t0)
	if err != nil || !adv.Completed {
		t.Fatalf("adv=%+v err=%v", adv, err)
	}
	if len(s.Answers) != 1 {
		t.Fatalf("timeout appended an answer")
	}
}

func TestReserveFrame_Throttles(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1")
	if _, ok := ReserveFrame(s, t0, time.Second); ok {
		t.Fatalf("frame admitted while not recording")
	}

	StartQuestion(s, t0)
	if _, ok := ReserveFrame(s, t0, time.Second); !ok {
		t.Fatalf("first frame rejected")
	}
	if _, ok := ReserveFrame(s, t0.Add(500*time.Millisecond), time.Second); ok {
		t.Fatalf("frame inside interval admitted")
	}
	if _, ok := ReserveFrame(s, t0.Add(time.Second), time.Second); !ok {
		t.Fatalf("frame after interval rejected")
	}
}

func TestRecordEmotion_DropsAfterQuestionEnds(t *testing.T) {
	s := readySession(models.RoleCandidate, "Q1", "Q2")
	StartQuestion(s, t0)
	gen, ok := ReserveFrame(s, t0, 0)
	if !ok {
		t.Fatal("frame rejected")
	}
	if _, err := SubmitAnswer(s, "a", t0); err != nil {
		t.Fatal(err)
	}
	if RecordEmotion(s, gen, "happy", t0) {
		t.Fatalf("observation recorded for an ended question")
	}

	gen, _ = StartQuestion(s, t0)
	if !RecordEmotion(s, gen, "happy", t0) {
		t.Fatalf("observation rejected")
	}
	if got := s.EmotionObservations[0]; got.QuestionIndex != 1 || got.Label != "happy" {
		t.Fatalf("observation=%+v", got)
	}
}

func TestMachine_IndexMonotonicUnderRandomEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		s := readySession(models.RoleCandidate, "Q1", "Q2", "Q3", "Q4")
		var gens []models.Generation
		prev := 0
		for step := 0; step < 40; step++ {
			switch rng.Intn(3) {
			case 0:
				if g, err := StartQuestion(s, t0); err == nil {
					gens = append(gens, g)
				}
			case 1:
				SubmitAnswer(s, "x", t0)
			case 2:
				if len(gens) > 0 {
					Timeout(s, gens[rng.Intn(len(gens))], t0)
				}
			}
			if s.CurrentQuestionIndex < prev {
				t.Fatalf("run %d: index went %d -> %d", run, prev, s.CurrentQuestionIndex)
			}
			if s.CurrentQuestionIndex > len(s.Questions) {
				t.Fatalf("run %d: index %d past total", run, s.CurrentQuestionIndex)
			}
			if s.State == models.StateCompleted && s.CurrentQuestionIndex != len(s.Questions) {
				t.Fatalf("run %d: completed at index %d", run, s.CurrentQuestionIndex)
			}
			prev = s.CurrentQuestionIndex
		}
	}
}
