package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type InterviewRepository interface {
	Save(ctx context.Context, rec *models.InterviewRecord) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewRecord, error)
	ListByBank(ctx context.Context, bankID string, limit int64) ([]models.InterviewRecord, error)
}

type interviewRepo struct {
	col *mongo.Collection
}

func NewInterviewRepo(db *mongo.Database) InterviewRepository {
	return &interviewRepo{col: db.Collection("interviews")}
}

// Save upserts on session_id so a redelivered stream entry does not
// duplicate the archive.
func (r *interviewRepo) Save(ctx context.Context, rec *models.InterviewRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	_, err := r.col.ReplaceOne(ctx,
		bson.M{"session_id": rec.SessionID},
		rec,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *interviewRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewRecord, error) {
	var rec models.InterviewRecord
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &rec, err
}

func (r *interviewRepo) ListByBank(ctx context.Context, bankID string, limit int64) ([]models.InterviewRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{"bank_id": bankID},
		options.Find().
			SetSort(bson.D{{Key: "completed_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.InterviewRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
