package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoockh/interview-analyzer/internal/cache"
	"github.com/yoockh/interview-analyzer/internal/models"
	mongorepo "github.com/yoockh/interview-analyzer/internal/repositories/mongo"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

const DefaultCompletedStream = "interview:completed"

type ResultsService interface {
	// Complete caches the final results and hands the record to the archive,
	// through the Redis stream when one is configured.
	Complete(ctx context.Context, rec *models.InterviewRecord) error
	Cached(ctx context.Context, sessionID string) (*models.InterviewResults, error)
	// Lookup reads the cache first and then the archive.
	Lookup(ctx context.Context, sessionID string) (*models.InterviewResults, error)
	// History lists archived interviews for a bank, newest first.
	History(ctx context.Context, bankID string, limit int64) ([]models.InterviewRecord, error)
	Archive(ctx context.Context, rec *models.InterviewRecord) error
}

type ResultsServiceOptions struct {
	Cache    cache.Cache
	CacheTTL time.Duration

	// Redis enables the stream hand-off; Stream defaults to
	// DefaultCompletedStream.
	Redis  *redis.Client
	Stream string

	Repo mongorepo.InterviewRepository
}

type resultsService struct {
	opts ResultsServiceOptions
}

func NewResultsService(opts ResultsServiceOptions) ResultsService {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.Stream == "" {
		opts.Stream = DefaultCompletedStream
	}
	return &resultsService{opts: opts}
}

func (s *resultsService) Complete(ctx context.Context, rec *models.InterviewRecord) error {
	const op = "ResultsService.Complete"

	if rec == nil || rec.SessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	if err := s.opts.Cache.SetJSON(ctx, cache.ResultsKey(rec.SessionID), rec.Results, s.opts.CacheTTL); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to cache results", err)
	}

	if s.opts.Redis != nil {
		b, err := json.Marshal(rec)
		if err != nil {
			return utils.E(utils.CodeInternal, op, "failed to encode record", err)
		}
		if err := s.opts.Redis.XAdd(ctx, &redis.XAddArgs{
			Stream: s.opts.Stream,
			Values: map[string]any{
				"session_id": rec.SessionID,
				"record":     string(b),
			},
		}).Err(); err != nil {
			return utils.E(utils.CodeUnavailable, op, "failed to enqueue results", err)
		}
		return nil
	}

	return s.Archive(ctx, rec)
}

func (s *resultsService) Cached(ctx context.Context, sessionID string) (*models.InterviewResults, error) {
	const op = "ResultsService.Cached"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	var out models.InterviewResults
	hit, err := s.opts.Cache.GetJSON(ctx, cache.ResultsKey(sessionID), &out)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to read results cache", err)
	}
	if !hit {
		return nil, utils.E(utils.CodeNotFound, op, "results not found", utils.ErrNotFound)
	}
	return &out, nil
}

func (s *resultsService) Lookup(ctx context.Context, sessionID string) (*models.InterviewResults, error) {
	const op = "ResultsService.Lookup"

	res, err := s.Cached(ctx, sessionID)
	if err == nil || !errors.Is(err, utils.ErrNotFound) || s.opts.Repo == nil {
		return res, err
	}

	rec, err := s.opts.Repo.GetBySessionID(ctx, sessionID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "results not found", utils.ErrNotFound)
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to read interview archive", err)
	}

	// Rewarm so repeated reads skip the archive; a failure only costs latency.
	_ = s.opts.Cache.SetJSON(ctx, cache.ResultsKey(sessionID), rec.Results, s.opts.CacheTTL)
	return &rec.Results, nil
}

func (s *resultsService) History(ctx context.Context, bankID string, limit int64) ([]models.InterviewRecord, error) {
	const op = "ResultsService.History"

	if bankID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "bank_id is required", nil)
	}
	if s.opts.Repo == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "interview archive is not configured", nil)
	}
	rows, err := s.opts.Repo.ListByBank(ctx, bankID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list interviews", err)
	}
	if rows == nil {
		rows = []models.InterviewRecord{}
	}
	return rows, nil
}

func (s *resultsService) Archive(ctx context.Context, rec *models.InterviewRecord) error {
	const op = "ResultsService.Archive"

	if s.opts.Repo == nil {
		return nil
	}
	if err := s.opts.Repo.Save(ctx, rec); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to archive interview", err)
	}
	return nil
}
