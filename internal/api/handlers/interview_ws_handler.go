package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interview-analyzer/internal/interview"
	"github.com/yoockh/interview-analyzer/internal/logger"
	"github.com/yoockh/interview-analyzer/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// SessionHeader carries the server-assigned session id on the upgrade
// response.
const SessionHeader = "X-Session-Id"

var errConnClosed = errors.New("connection closed")

type InterviewWSHandler struct {
	router   *interview.Router
	redis    *redis.Client
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewInterviewWSHandler wires connections to router. rdb may be nil, in
// which case organizers get no live feed.
func NewInterviewWSHandler(router *interview.Router, rdb *redis.Client, l *logrus.Logger) *InterviewWSHandler {
	if l == nil {
		l = logger.Discard()
	}
	return &InterviewWSHandler{
		router: router,
		redis:  rdb,
		logger: l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin once the frontend host is configurable
		},
	}
}

// wsConn is the per-connection Emitter. Writes from the reader, timers,
// classification goroutines and the organizer feed all go through mu.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex

	closed bool

	ctx    context.Context
	rdb    *redis.Client
	pubsub *redis.PubSub
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errConnClosed
	}
	_ = w.c.SetWriteDeadline(time.Now().Add(writeWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errConnClosed
	}
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *wsConn) Emit(ev protocol.Outbound) error {
	b, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

// Watch forwards the bank's candidate events to this connection.
func (w *wsConn) Watch(bankID string) error {
	if w.rdb == nil {
		return errors.New("redis is not configured")
	}

	ps := w.rdb.Subscribe(w.ctx, interview.BankChannel(bankID))
	if _, err := ps.Receive(w.ctx); err != nil {
		_ = ps.Close()
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = ps.Close()
		return errConnClosed
	}
	w.pubsub = ps
	w.mu.Unlock()

	go func() {
		for m := range ps.Channel() {
			if err := w.writeText([]byte(m.Payload)); err != nil {
				return
			}
		}
	}()
	return nil
}

func (w *wsConn) close() {
	w.mu.Lock()
	w.closed = true
	ps := w.pubsub
	w.mu.Unlock()

	if ps != nil {
		_ = ps.Close()
	}
	_ = w.c.Close()
}

func (h *InterviewWSHandler) Serve(c *gin.Context) {
	sessionID := uuid.NewString()

	// The id is echoed so clients can fetch results over HTTP later.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, http.Header{SessionHeader: {sessionID}})
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := h.logger.WithField("session_id", sessionID)

	wc := &wsConn{c: conn, ctx: ctx, rdb: h.redis}

	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		h.router.Disconnect(sessionID)
		wc.close()
		log.Info("client disconnected")
	}()
	log.Info("client connected")

	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := wc.ping(); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		h.router.Touch(sessionID)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// At most one classification in flight per connection; frames arriving
	// meanwhile are dropped like throttled ones.
	classifying := make(chan struct{}, 1)

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			if websocket.IsUnexpectedCloseError(rerr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(rerr).Debug("read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.router.Touch(sessionID)

		msg, err := protocol.Decode(data)
		if err != nil {
			_ = wc.Emit(protocol.Error{Message: err.Error()})
			continue
		}

		if frame, ok := msg.(protocol.EmotionFrame); ok {
			select {
			case classifying <- struct{}{}:
			default:
				continue
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer func() { <-classifying }()
				h.router.Handle(ctx, sessionID, frame, wc)
			}()
			continue
		}

		h.router.Handle(ctx, sessionID, msg, wc)
	}
}
