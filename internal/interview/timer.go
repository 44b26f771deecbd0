package interview

import (
	"sync"
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
)

type armedTimer struct {
	gen models.Generation
	t   *time.Timer
}

// QuestionTimer keeps at most one pending deadline per session. Cancelling
// is an optimisation only: the fire callback must still check the
// generation it is handed against the session, since a timer can fire
// concurrently with the Cancel or Arm that would have stopped it.
type QuestionTimer struct {
	mu     sync.Mutex
	timers map[string]*armedTimer
}

func NewQuestionTimer() *QuestionTimer {
	return &QuestionTimer{timers: make(map[string]*armedTimer)}
}

// Arm schedules fire(gen) after d, replacing any earlier deadline for the
// session.
func (q *QuestionTimer) Arm(sessionID string, gen models.Generation, d time.Duration, fire func(models.Generation)) {
	a := &armedTimer{gen: gen}

	q.mu.Lock()
	if old := q.timers[sessionID]; old != nil {
		old.t.Stop()
	}
	q.timers[sessionID] = a
	a.t = time.AfterFunc(d, func() {
		q.release(sessionID, a)
		fire(gen)
	})
	q.mu.Unlock()
}

func (q *QuestionTimer) Cancel(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if a := q.timers[sessionID]; a != nil {
		a.t.Stop()
		delete(q.timers, sessionID)
	}
}

// Stop cancels every pending deadline.
func (q *QuestionTimer) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, a := range q.timers {
		a.t.Stop()
		delete(q.timers, id)
	}
}

func (q *QuestionTimer) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

func (q *QuestionTimer) release(sessionID string, a *armedTimer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timers[sessionID] == a {
		delete(q.timers, sessionID)
	}
}
