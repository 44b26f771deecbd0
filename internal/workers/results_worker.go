package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/services"
)

// ResultsWorkerPool drains completed interviews from the Redis stream into
// the archive.
type ResultsWorkerPool struct {
	Redis      *redis.Client
	Results    services.ResultsService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ResultsWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Results == nil {
		return errors.New("ResultsWorkerPool missing dependency: Redis/Results must be set")
	}
	if p.Stream == "" {
		p.Stream = services.DefaultCompletedStream
	}
	if p.Group == "" {
		p.Group = "results-archivers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "archiver"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ResultsWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				if p.handleMsg(ctx, msg) {
					_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
				}
			}
		}
	}
}

// handleMsg reports whether the message can be acknowledged. Archive
// failures leave it pending for redelivery; malformed entries are dropped.
func (p *ResultsWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	log := p.Logger.WithField("redis_id", msg.ID)

	rec, err := decodeRecord(msg)
	if err != nil {
		log.WithError(err).Warn("dropping malformed results entry")
		return true
	}
	log = log.WithFields(logrus.Fields{"session_id": rec.SessionID, "bank_id": rec.BankID})

	if err := p.Results.Archive(ctx, rec); err != nil {
		log.WithError(err).Error("archive failed")
		return false
	}
	log.Info("interview archived")
	return true
}

func decodeRecord(msg redis.XMessage) (*models.InterviewRecord, error) {
	raw, _ := msg.Values["record"].(string)
	if raw == "" {
		return nil, errors.New("missing record field")
	}
	var rec models.InterviewRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	if rec.SessionID == "" {
		if id, _ := msg.Values["session_id"].(string); id != "" {
			rec.SessionID = id
		} else {
			return nil, errors.New("missing session_id")
		}
	}
	return &rec, nil
}
