package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/interview-analyzer/internal/models"
	"github.com/yoockh/interview-analyzer/internal/utils"
	"gorm.io/gorm"
)

type BankRepository interface {
	Insert(ctx context.Context, b *models.BankRecord) error
	GetByID(ctx context.Context, id string) (*models.BankRecord, error)
	Migrate(ctx context.Context) error
}

type bankRepo struct {
	db *gorm.DB
}

func NewBankRepo(db *gorm.DB) BankRepository {
	return &bankRepo{db: db}
}

func (r *bankRepo) Insert(ctx context.Context, b *models.BankRecord) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bankRepo) GetByID(ctx context.Context, id string) (*models.BankRecord, error) {
	var row models.BankRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *bankRepo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.BankRecord{})
}
