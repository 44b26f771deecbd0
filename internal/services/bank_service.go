package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interview-analyzer/internal/logger"
	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/providers/extractor"
	pgrepo "github.com/yoockh/interview-analyzer/internal/repositories/postgres"
	"github.com/yoockh/interview-analyzer/internal/storage"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

type BankService interface {
	Create(bankID string, questions []string) (*models.QuestionBank, error)
	Get(ctx context.Context, bankID string) (*models.QuestionBank, error)
	Ingest(ctx context.Context, fileName string, doc []byte) (*models.QuestionBank, error)
}

type BankServiceOptions struct {
	Extractor    extractor.Provider
	MaxQuestions int

	// Optional; nil disables the corresponding side effect.
	Uploader storage.Uploader
	Repo     pgrepo.BankRepository

	Logger *logrus.Logger
}

type bankService struct {
	mu    sync.RWMutex
	banks map[string]*models.QuestionBank

	opts BankServiceOptions
}

func NewBankService(opts BankServiceOptions) BankService {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &bankService{
		banks: make(map[string]*models.QuestionBank),
		opts:  opts,
	}
}

// Create registers an immutable bank. The question slice is copied so the
// caller cannot mutate it afterwards.
func (s *bankService) Create(bankID string, questions []string) (*models.QuestionBank, error) {
	const op = "BankService.Create"

	if bankID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "bank_id is required", nil)
	}
	if len(questions) == 0 {
		return nil, utils.E(utils.CodeUnprocessable, op, "no questions found in document", utils.ErrEmptyExtraction)
	}

	b := &models.QuestionBank{
		BankID:    bankID,
		Questions: append([]string(nil), questions...),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.banks[bankID]; exists {
		return nil, utils.E(utils.CodeConflict, op, "bank already exists", nil)
	}
	s.banks[bankID] = b
	return b, nil
}

// Get serves banks from memory and falls back to the persisted metadata, so
// banks uploaded before a restart can still be joined.
func (s *bankService) Get(ctx context.Context, bankID string) (*models.QuestionBank, error) {
	const op = "BankService.Get"

	s.mu.RLock()
	b, ok := s.banks[bankID]
	s.mu.RUnlock()
	if ok {
		return b, nil
	}
	if bankID == "" || s.opts.Repo == nil {
		return nil, utils.E(utils.CodeNotFound, op, "no interview found for id "+bankID, utils.ErrNotFound)
	}

	rec, err := s.opts.Repo.GetByID(ctx, bankID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "no interview found for id "+bankID, utils.ErrNotFound)
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load bank", err)
	}

	var questions []string
	if err := json.Unmarshal(rec.Questions, &questions); err != nil || len(questions) == 0 {
		return nil, utils.E(utils.CodeInternal, op, "stored bank has no questions", err)
	}
	b = &models.QuestionBank{
		BankID:    rec.ID,
		Questions: questions,
		CreatedAt: rec.UploadAt.UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.banks[bankID]; ok {
		return cur, nil
	}
	s.banks[bankID] = b
	return b, nil
}

// Ingest extracts questions from doc and registers them as a new bank. The
// original document and its metadata are stored best-effort.
func (s *bankService) Ingest(ctx context.Context, fileName string, doc []byte) (*models.QuestionBank, error) {
	const op = "BankService.Ingest"

	if s.opts.Extractor == nil {
		return nil, utils.E(utils.CodeInternal, op, "extractor is not configured", nil)
	}

	questions, err := s.opts.Extractor.ExtractQuestions(ctx, bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "failed to read document", err)
	}
	if s.opts.MaxQuestions > 0 && len(questions) > s.opts.MaxQuestions {
		questions = questions[:s.opts.MaxQuestions]
	}

	bank, err := s.Create(uuid.NewString(), questions)
	if err != nil {
		return nil, err
	}

	log := s.opts.Logger.WithFields(logrus.Fields{
		"bank_id":   bank.BankID,
		"file_name": fileName,
		"questions": bank.Len(),
	})

	storedPath := ""
	if s.opts.Uploader != nil {
		p, err := s.opts.Uploader.Upload(ctx, "banks/"+bank.BankID+".pdf", "application/pdf", bytes.NewReader(doc))
		if err != nil {
			log.WithError(err).Warn("document upload failed")
		} else {
			storedPath = p
		}
	}

	if s.opts.Repo != nil {
		qs, _ := json.Marshal(bank.Questions)
		rec := &models.BankRecord{
			ID:            bank.BankID,
			FileName:      fileName,
			FilePath:      storedPath,
			FileSize:      int64(len(doc)),
			QuestionCount: bank.Len(),
			Questions:     qs,
			UploadAt:      bank.CreatedAt,
		}
		if err := s.opts.Repo.Insert(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to persist bank metadata")
		}
	}

	log.Info("question bank created")
	return bank, nil
}
