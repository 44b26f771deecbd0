package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/interview-analyzer/internal/services"
)

type Disconnecter interface {
	Disconnect(sessionID string)
}

// SessionReaper evicts sessions that have been idle longer than Timeout,
// covering connections that vanished without a clean close.
type SessionReaper struct {
	Store    services.SessionStore
	Sessions Disconnecter

	Timeout  time.Duration
	Interval time.Duration

	Logger *logrus.Logger
	Now    func() time.Time
}

func (r *SessionReaper) Start(ctx context.Context) error {
	if r.Store == nil || r.Sessions == nil {
		return errors.New("SessionReaper missing dependency: Store/Sessions must be set")
	}
	if r.Timeout <= 0 {
		r.Timeout = time.Hour
	}
	if r.Interval <= 0 {
		r.Interval = time.Minute
	}
	if r.Logger == nil {
		r.Logger = logrus.New()
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	go func() {
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Sweep()
			}
		}
	}()
	return nil
}

// Sweep runs one eviction pass and returns how many sessions it dropped.
func (r *SessionReaper) Sweep() int {
	cutoff := r.Now().Add(-r.Timeout)
	ids := r.Store.IdleSince(cutoff)
	for _, id := range ids {
		r.Sessions.Disconnect(id)
	}
	if len(ids) > 0 {
		r.Logger.WithField("evicted", len(ids)).Info("idle sessions reaped")
	}
	return len(ids)
}
