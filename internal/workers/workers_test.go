package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/interview-analyzer/internal/logger"
	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/services"
)

type fakeResults struct {
	archived []*models.InterviewRecord
	err      error
}

func (f *fakeResults) Complete(context.Context, *models.InterviewRecord) error { return nil }

func (f *fakeResults) Cached(context.Context, string) (*models.InterviewResults, error) {
	return nil, nil
}

func (f *fakeResults) Lookup(context.Context, string) (*models.InterviewResults, error) {
	return nil, nil
}

func (f *fakeResults) History(context.Context, string, int64) ([]models.InterviewRecord, error) {
	return nil, nil
}

func (f *fakeResults) Archive(_ context.Context, rec *models.InterviewRecord) error {
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, rec)
	return nil
}

func streamMsg(t *testing.T, rec models.InterviewRecord) redis.XMessage {
	t.Helper()
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return redis.XMessage{ID: "1-0", Values: map[string]any{
		"session_id": rec.SessionID,
		"record":     string(b),
	}}
}

func TestResultsWorker_HandleMsgArchives(t *testing.T) {
	res := &fakeResults{}
	p := &ResultsWorkerPool{Results: res, Logger: logger.Discard()}

	msg := streamMsg(t, models.InterviewRecord{
		SessionID:      "s1",
		BankID:         "b1",
		TotalQuestions: 2,
		Results:        models.InterviewResults{SessionID: "s1", EmotionStats: map[string]int{"happy": 3}},
	})
	if !p.handleMsg(context.Background(), msg) {
		t.Fatalf("handleMsg() = false, want ack")
	}
	if len(res.archived) != 1 {
		t.Fatalf("archived=%d", len(res.archived))
	}
	got := res.archived[0]
	if got.BankID != "b1" || got.Results.EmotionStats["happy"] != 3 {
		t.Fatalf("archived=%+v", got)
	}
}

func TestResultsWorker_ArchiveFailureIsNotAcked(t *testing.T) {
	p := &ResultsWorkerPool{Results: &fakeResults{err: errors.New("mongo down")}, Logger: logger.Discard()}
	if p.handleMsg(context.Background(), streamMsg(t, models.InterviewRecord{SessionID: "s1"})) {
		t.Fatalf("failed archive acknowledged")
	}
}

func TestResultsWorker_MalformedIsDropped(t *testing.T) {
	res := &fakeResults{}
	p := &ResultsWorkerPool{Results: res, Logger: logger.Discard()}

	for _, msg := range []redis.XMessage{
		{ID: "1-0", Values: map[string]any{}},
		{ID: "2-0", Values: map[string]any{"record": "{not json"}},
		{ID: "3-0", Values: map[string]any{"record": `{"bank_id":"b1"}`}},
	} {
		if !p.handleMsg(context.Background(), msg) {
			t.Fatalf("%s: malformed entry not acknowledged", msg.ID)
		}
	}
	if len(res.archived) != 0 {
		t.Fatalf("archived malformed entries: %d", len(res.archived))
	}
}

func TestResultsWorker_StartRequiresRedis(t *testing.T) {
	p := &ResultsWorkerPool{Results: &fakeResults{}}
	if err := p.Start(context.Background()); err == nil {
		t.Fatalf("Start() without Redis succeeded")
	}
}

type disconnects struct {
	mu    sync.Mutex
	store services.SessionStore
	ids   []string
}

func (d *disconnects) Disconnect(id string) {
	d.mu.Lock()
	d.ids = append(d.ids, id)
	d.mu.Unlock()
	d.store.Remove(id)
}

func TestSessionReaper_SweepEvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := services.NewSessionStoreWithClock(clock)

	if _, err := store.Create("old", models.RoleCandidate, "b1"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(50 * time.Minute)
	if _, err := store.Create("fresh", models.RoleCandidate, "b1"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(20 * time.Minute)

	d := &disconnects{store: store}
	r := &SessionReaper{Store: store, Sessions: d, Timeout: time.Hour, Logger: logger.Discard(), Now: clock}
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep()=%d, want 1", n)
	}
	if len(d.ids) != 1 || d.ids[0] != "old" {
		t.Fatalf("evicted=%v", d.ids)
	}
	if _, err := store.Get("fresh"); err != nil {
		t.Fatalf("fresh session evicted: %v", err)
	}
	if r.Sweep() != 0 {
		t.Fatalf("second sweep evicted again")
	}
}

func TestSessionReaper_SparesTouchedOrganizer(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := services.NewSessionStoreWithClock(clock)

	store.Create("org", models.RoleOrganizer, "b1")
	store.Create("gone", models.RoleOrganizer, "b1")

	// The organizer only answers pings for the next two hours.
	for i := 0; i < 4; i++ {
		now = now.Add(30 * time.Minute)
		if err := store.Touch("org"); err != nil {
			t.Fatal(err)
		}
	}

	d := &disconnects{store: store}
	r := &SessionReaper{Store: store, Sessions: d, Timeout: time.Hour, Logger: logger.Discard(), Now: clock}
	if n := r.Sweep(); n != 1 || d.ids[0] != "gone" {
		t.Fatalf("Sweep()=%d evicted=%v, want only gone", n, d.ids)
	}
	if _, err := store.Get("org"); err != nil {
		t.Fatalf("touched organizer evicted: %v", err)
	}
}

func TestSessionReaper_StartTicks(t *testing.T) {
	store := services.NewSessionStoreWithClock(func() time.Time { return time.Unix(0, 0) })
	store.Create("s1", models.RoleCandidate, "b1")
	d := &disconnects{store: store}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &SessionReaper{Store: store, Sessions: d, Timeout: time.Second, Interval: 10 * time.Millisecond, Logger: logger.Discard()}
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for store.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not reaped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
