package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionBank is the ordered question list extracted from one uploaded
// document. It is never mutated after creation.
type QuestionBank struct {
	BankID    string    `json:"bank_id"`
	Questions []string  `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *QuestionBank) Len() int { return len(b.Questions) }

// Question returns the question at i, or false past the end.
func (b *QuestionBank) Question(i int) (string, bool) {
	if i < 0 || i >= len(b.Questions) {
		return "", false
	}
	return b.Questions[i], true
}

// BankRecord is the metadata row persisted for every uploaded document.
type BankRecord struct {
	ID            string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FileName      string         `gorm:"column:file_name;type:text" json:"file_name"`
	FilePath      string         `gorm:"column:file_path;type:text" json:"file_path"`
	FileSize      int64          `gorm:"column:file_size;type:bigint" json:"file_size"`
	QuestionCount int            `gorm:"column:question_count;type:integer" json:"question_count"`
	Questions     datatypes.JSON `gorm:"column:questions;type:jsonb" json:"questions"`
	UploadAt      time.Time      `gorm:"column:upload_at;type:timestamptz;index" json:"upload_at"`
}

func (BankRecord) TableName() string { return "question_banks" }
