package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/utils"
)

type fakeExtractor struct {
	questions []string
	err       error
}

func (f fakeExtractor) ExtractQuestions(context.Context, io.ReaderAt, int64) ([]string, error) {
	return f.questions, f.err
}

type fakeUploader struct {
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectName] = b
	return "gs://test/" + objectName, nil
}

type fakeBankRepo struct {
	rows []*models.BankRecord
}

func (f *fakeBankRepo) Insert(_ context.Context, b *models.BankRecord) error {
	f.rows = append(f.rows, b)
	return nil
}

func (f *fakeBankRepo) GetByID(_ context.Context, id string) (*models.BankRecord, error) {
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeBankRepo) Migrate(context.Context) error { return nil }

func TestBankService_CreateGet(t *testing.T) {
	svc := NewBankService(BankServiceOptions{})

	qs := []string{"Why?", "How?"}
	b, err := svc.Create("b1", qs)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	qs[0] = "mutated"
	if b.Questions[0] != "Why?" {
		t.Fatalf("bank aliases caller slice")
	}

	got, err := svc.Get(context.Background(), "b1")
	if err != nil || got.Len() != 2 {
		t.Fatalf("Get()=%+v, %v", got, err)
	}
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("Get(nope) err = %v", err)
	}
}

func TestBankService_GetFallsBackToRepo(t *testing.T) {
	ctx := context.Background()
	uploaded := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &fakeBankRepo{rows: []*models.BankRecord{{
		ID:            "b-old",
		FileName:      "old.pdf",
		QuestionCount: 2,
		Questions:     []byte(`["Why this team?","What did you ship last?"]`),
		UploadAt:      uploaded,
	}}}
	svc := NewBankService(BankServiceOptions{Repo: repo})

	got, err := svc.Get(ctx, "b-old")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Len() != 2 || got.Questions[1] != "What did you ship last?" || !got.CreatedAt.Equal(uploaded) {
		t.Fatalf("bank=%+v", got)
	}

	// Served from memory afterwards.
	repo.rows = nil
	if again, err := svc.Get(ctx, "b-old"); err != nil || again != got {
		t.Fatalf("second Get()=%p,%v want %p", again, err, got)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("Get(missing) err = %v", err)
	}
}

func TestBankService_GetRepoFailure(t *testing.T) {
	svc := NewBankService(BankServiceOptions{Repo: &brokenBankRepo{}})
	if _, err := svc.Get(context.Background(), "b1"); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err=%v, want UNAVAILABLE", err)
	}
}

type brokenBankRepo struct{ fakeBankRepo }

func (brokenBankRepo) GetByID(context.Context, string) (*models.BankRecord, error) {
	return nil, errors.New("connection refused")
}

func TestBankService_CreateEmptyIsEmptyExtraction(t *testing.T) {
	svc := NewBankService(BankServiceOptions{})
	if _, err := svc.Create("b1", nil); !errors.Is(err, utils.ErrEmptyExtraction) {
		t.Fatalf("err=%v, want ErrEmptyExtraction", err)
	}
	if _, err := svc.Get(context.Background(), "b1"); err == nil {
		t.Fatalf("bank created despite empty extraction")
	}
}

func TestBankService_IngestStoresAndCaps(t *testing.T) {
	up := &fakeUploader{}
	repo := &fakeBankRepo{}
	svc := NewBankService(BankServiceOptions{
		Extractor:    fakeExtractor{questions: []string{"First question here?", "Second question here?", "Third question here?"}},
		MaxQuestions: 2,
		Uploader:     up,
		Repo:         repo,
	})

	bank, err := svc.Ingest(context.Background(), "questions.pdf", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if bank.Len() != 2 {
		t.Fatalf("len=%d, want capped at 2", bank.Len())
	}
	if string(up.objects["banks/"+bank.BankID+".pdf"]) != "%PDF-fake" {
		t.Fatalf("document not uploaded: %v", up.objects)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("rows=%d", len(repo.rows))
	}
	row := repo.rows[0]
	if row.FilePath != "gs://test/banks/"+bank.BankID+".pdf" || row.QuestionCount != 2 || row.FileName != "questions.pdf" {
		t.Fatalf("row=%+v", row)
	}
	var stored []string
	if err := json.Unmarshal(row.Questions, &stored); err != nil || len(stored) != 2 {
		t.Fatalf("stored questions=%s (%v)", row.Questions, err)
	}
}

func TestBankService_IngestUploadFailureIsNotFatal(t *testing.T) {
	svc := NewBankService(BankServiceOptions{
		Extractor: fakeExtractor{questions: []string{"What is your greatest strength?"}},
		Uploader:  &fakeUploader{err: errors.New("bucket down")},
	})
	if _, err := svc.Ingest(context.Background(), "q.pdf", []byte("x")); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
}

func TestBankService_IngestEmptyExtraction(t *testing.T) {
	repo := &fakeBankRepo{}
	svc := NewBankService(BankServiceOptions{Extractor: fakeExtractor{}, Repo: repo})

	_, err := svc.Ingest(context.Background(), "q.pdf", []byte("x"))
	if !errors.Is(err, utils.ErrEmptyExtraction) {
		t.Fatalf("err=%v, want ErrEmptyExtraction", err)
	}
	if len(repo.rows) != 0 {
		t.Fatalf("metadata written for empty extraction")
	}
}

func TestBankService_IngestExtractorError(t *testing.T) {
	svc := NewBankService(BankServiceOptions{Extractor: fakeExtractor{err: errors.New("corrupt")}})
	_, err := svc.Ingest(context.Background(), "q.pdf", []byte("x"))
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("err=%v, want INVALID_ARGUMENT", err)
	}
}
