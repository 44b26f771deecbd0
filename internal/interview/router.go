package interview

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/interview-analyzer/internal/logger"
	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/protocol"
	"github.com/yoockh/interview-analyzer/internal/providers/emotion"
	"github.com/yoockh/interview-analyzer/internal/services"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

// Emitter delivers outbound events to one connection. Implementations must
// be safe for concurrent use: timers emit from their own goroutines.
type Emitter interface {
	Emit(ev protocol.Outbound) error
}

// Watcher is implemented by emitters that can follow a bank's live feed.
// Organizer joins subscribe through it.
type Watcher interface {
	Watch(bankID string) error
}

type Options struct {
	Store      services.SessionStore
	Banks      services.BankService
	Results    services.ResultsService
	Classifier emotion.Classifier

	// Optional organizer feed.
	Broadcaster Broadcaster

	QuestionTimeLimit time.Duration
	EmotionInterval   time.Duration

	Logger *logrus.Logger
	Now    func() time.Time
}

// Router is the protocol boundary: it resolves the session for each inbound
// event, applies the transition through the store, and emits the resulting
// events. It holds no session state of its own.
type Router struct {
	opts  Options
	timer *QuestionTimer
}

func NewRouter(opts Options) *Router {
	if opts.Classifier == nil {
		opts.Classifier = emotion.Disabled{}
	}
	if opts.QuestionTimeLimit <= 0 {
		opts.QuestionTimeLimit = 180 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{opts: opts, timer: NewQuestionTimer()}
}

// Handle never returns an error: failures become a single error event to
// out and leave the session in its last valid state.
func (r *Router) Handle(ctx context.Context, sessionID string, msg protocol.Inbound, out Emitter) {
	switch m := msg.(type) {
	case protocol.JoinInterview:
		r.join(ctx, sessionID, m, out)
	case protocol.StartQuestion:
		r.startQuestion(sessionID, out)
	case protocol.EmotionFrame:
		r.emotionFrame(ctx, sessionID, m, out)
	case protocol.SubmitAnswer:
		r.submitAnswer(ctx, sessionID, m, out)
	case protocol.GetResults:
		r.results(sessionID, out)
	default:
		r.fail(sessionID, out, utils.E(utils.CodeInvalidArgument, "Router.Handle", "unknown event type", nil))
	}
}

// Disconnect drops the session and its pending timer. Work still in flight
// for it fails its next mutation with NotFound.
func (r *Router) Disconnect(sessionID string) {
	r.timer.Cancel(sessionID)
	r.opts.Store.Remove(sessionID)
}

// Touch marks the connection behind sessionID as alive. Organizers only
// receive the feed and send nothing after joining, so without this the
// idle reaper would evict them mid-interview. Unknown sessions are ignored.
func (r *Router) Touch(sessionID string) {
	_ = r.opts.Store.Touch(sessionID)
}

// Shutdown cancels every pending question deadline.
func (r *Router) Shutdown() {
	r.timer.Stop()
}

func (r *Router) join(ctx context.Context, sessionID string, m protocol.JoinInterview, out Emitter) {
	// A connection whose previous join failed may retry with another bank.
	if prev, err := r.opts.Store.Get(sessionID); err == nil && prev.State == models.StateError {
		r.opts.Store.Remove(sessionID)
	}

	if _, err := r.opts.Store.Create(sessionID, m.Role, m.BankID); err != nil {
		r.fail(sessionID, out, err)
		return
	}

	bank, err := r.opts.Banks.Get(ctx, m.BankID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		r.opts.Store.Remove(sessionID)
		r.fail(sessionID, out, err)
		return
	}
	err = r.opts.Store.Mutate(sessionID, func(s *models.InterviewSession) error {
		return Join(s, bank)
	})
	if err != nil {
		r.fail(sessionID, out, err)
		return
	}

	log := r.log(sessionID).WithFields(logrus.Fields{"bank_id": bank.BankID, "role": m.Role})
	if m.Role == models.RoleOrganizer {
		if w, ok := out.(Watcher); ok && r.opts.Broadcaster != nil {
			if err := w.Watch(bank.BankID); err != nil {
				log.WithError(err).Warn("organizer feed unavailable")
			}
		}
		log.Info("organizer joined")
		return
	}

	log.Info("candidate joined")
	first, _ := bank.Question(0)
	r.emit(ctx, bank.BankID, sessionID, out, protocol.InterviewStarted{
		TotalQuestions: bank.Len(),
		FirstQuestion:  first,
	})
}

func (r *Router) startQuestion(sessionID string, out Emitter) {
	var gen models.Generation
	err := r.opts.Store.Mutate(sessionID, func(s *models.InterviewSession) error {
		g, err := StartQuestion(s, r.opts.Now())
		gen = g
		return err
	})
	if err != nil {
		r.fail(sessionID, out, err)
		return
	}

	r.timer.Arm(sessionID, gen, r.opts.QuestionTimeLimit, func(g models.Generation) {
		r.expire(sessionID, g, out)
	})
	r.log(sessionID).WithField("question_index", gen.QuestionIndex).Debug("question started")
}

// expire runs on the timer goroutine.
func (r *Router) expire(sessionID string, gen models.Generation, out Emitter) {
	var (
		adv    Advance
		bankID string
		snap   models.InterviewSession
	)
	err := r.opts.Store.Mutate(sessionID, func(s *models.InterviewSession) error {
		a, err := Timeout(s, gen, r.opts.Now())
		if err != nil {
			return err
		}
		adv, bankID = a, s.BankID
		if a.Completed {
			snap = s.Clone()
		}
		return nil
	})
	if err != nil {
		// Stale or removed: the firing is simply discarded.
		r.log(sessionID).WithError(err).WithField("question_index", gen.QuestionIndex).Debug("question timer discarded")
		return
	}

	r.log(sessionID).WithField("question_index", gen.QuestionIndex).Info("question timed out")
	ctx := context.Background()
	r.emit(ctx, bankID, sessionID, out, protocol.QuestionTimeout{})
	r.emitAdvance(ctx, bankID, sessionID, out, adv, snap)
}

func (r *Router) submitAnswer(ctx context.Context, sessionID string, m protocol.SubmitAnswer, out Emitter) {
	var (
		adv    Advance
		bankID string
		snap   models.InterviewSession
	)
	err := r.opts.Store.Mutate(sessionID, func(s *models.InterviewSession) error {
		a, err := SubmitAnswer(s, m.Text, r.opts.Now())
		if err != nil {
			return err
		}
		adv, bankID = a, s.BankID
		if a.Completed {
			snap = s.Clone()
		}
		return nil
	})
	if err != nil {
		r.fail(sessionID, out, err)
		return
	}

	r.timer.Cancel(sessionID)
	r.emitAdvance(ctx, bankID, sessionID, out, adv, snap)
}

func (r *Router) emitAdvance(ctx context.Context, bankID, sessionID string, out Emitter, adv Advance, snap models.InterviewSession) {
	if !adv.Completed {
		r.emit(ctx, bankID, sessionID, out, protocol.NextQuestion{
			Question:       adv.Question,
			QuestionNumber: adv.QuestionNumber,
			TotalQuestions: adv.TotalQuestions,
		})
		return
	}

	r.timer.Cancel(sessionID)
	r.emit(ctx, bankID, sessionID, out, protocol.InterviewCompleted{})
	r.log(sessionID).WithField("bank_id", bankID).Info("interview completed")

	if r.opts.Results == nil {
		return
	}
	if err := r.opts.Results.Complete(ctx, Record(snap, r.opts.Now())); err != nil {
		r.log(sessionID).WithError(err).Warn("failed to store interview results")
	}
}

func (r *Router) emotionFrame(ctx context.Context, sessionID string, m protocol.EmotionFrame, out Emitter) {
	var (
		gen      models.Generation
		admitted bool
		bankID   string
	)
	err := r.opts.Store.Mutate(sessionID, func(s *models.InterviewSession) error {
		if err := requireCandidate(s, "Router.emotionFrame"); err != nil {
			return err
		}
		gen, admitted = ReserveFrame(s, r.opts.Now(), r.opts.EmotionInterval)
		bankID = s.BankID
		return nil
	})
	if err != nil {
		r.fail(sessionID, out, err)
		return
	}
	if !admitted {
		return
	}

	frame, err := emotion.DecodeFrame(m.ImageData)
	if err != nil {
		r.fail(sessionID, out, utils.E(utils.CodeInvalidArgument, "Router.emotionFrame", "invalid image data", err))
		return
	}

	// Classification runs outside the session lock.
	res, ok, err := r.opts.Classifier.Classify(ctx, frame)
	if err != nil {
		r.log(sessionID).WithError(err).Debug("emotion classification unavailable")
		return
	}
	if !ok {
		return
	}

	ts := r.opts.Now()
	var recorded bool
	err = r.opts.Store.Mutate(sessionID, func(s *models.InterviewSession) error {
		recorded = RecordEmotion(s, gen, res.Label, ts)
		return nil
	})
	if err != nil || !recorded {
		return
	}
	r.emit(ctx, bankID, sessionID, out, protocol.EmotionDetected{
		Label:     res.Label,
		Timestamp: protocol.UnixSeconds(ts),
	})
}

func (r *Router) results(sessionID string, out Emitter) {
	snap, err := r.opts.Store.Get(sessionID)
	if err != nil {
		r.fail(sessionID, out, err)
		return
	}
	res := Summarize(snap, r.opts.Now())
	if err := out.Emit(protocol.ResultsFrom(res)); err != nil {
		r.log(sessionID).WithError(err).Debug("emit failed")
	}
}

// Results returns the live results for a connected session.
func (r *Router) Results(sessionID string) (models.InterviewResults, error) {
	snap, err := r.opts.Store.Get(sessionID)
	if err != nil {
		return models.InterviewResults{}, err
	}
	return Summarize(snap, r.opts.Now()), nil
}

func (r *Router) emit(ctx context.Context, bankID, sessionID string, out Emitter, ev protocol.Outbound) {
	if err := out.Emit(ev); err != nil {
		r.log(sessionID).WithError(err).WithField("event", ev.Name()).Debug("emit failed")
	}
	if r.opts.Broadcaster == nil || bankID == "" {
		return
	}
	if err := r.opts.Broadcaster.Publish(ctx, bankID, sessionID, ev); err != nil {
		r.log(sessionID).WithError(err).WithField("event", ev.Name()).Warn("feed publish failed")
	}
}

func (r *Router) fail(sessionID string, out Emitter, err error) {
	log := r.log(sessionID).WithError(err)
	if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrInvalidTransition) {
		log.Debug("event rejected")
	} else {
		log.Warn("event failed")
	}
	if emitErr := out.Emit(protocol.Error{Message: utils.Message(err)}); emitErr != nil {
		log.WithField("emit_error", emitErr.Error()).Debug("emit failed")
	}
}

func (r *Router) log(sessionID string) *logrus.Entry {
	return r.opts.Logger.WithField("session_id", sessionID)
}
