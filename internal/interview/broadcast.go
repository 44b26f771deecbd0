package interview

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/interview-analyzer/internal/protocol"
)

// Broadcaster mirrors candidate events to the organizers watching a bank.
type Broadcaster interface {
	Publish(ctx context.Context, bankID, sessionID string, ev protocol.Outbound) error
}

func BankChannel(bankID string) string { return "interview:" + bankID + ":events" }

// FeedMessage is what organizers receive for each candidate event.
type FeedMessage struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

func EncodeFeed(sessionID string, ev protocol.Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(FeedMessage{SessionID: sessionID, Type: ev.Name(), Data: data})
}

type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, bankID, sessionID string, ev protocol.Outbound) error {
	payload, err := EncodeFeed(sessionID, ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, BankChannel(bankID), string(payload)).Err()
}
