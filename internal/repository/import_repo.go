package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-judge/internal/models"
)

// ImportBundle groups every row produced from one uploaded document.
type ImportBundle struct {
	Queues      []models.Queue
	Templates   []models.QuestionTemplate
	Submissions []models.Submission
	Questions   []models.SubmissionQuestion
	Answers     []models.Answer
}

// ImportRepository upserts imported documents.
type ImportRepository interface {
	Import(ctx context.Context, bundle ImportBundle) error
}

type importRepository struct {
	db *gorm.DB
}

// NewImportRepository constructs a GORM-backed import repository.
func NewImportRepository(db *gorm.DB) ImportRepository {
	return &importRepository{db: db}
}

// Import upserts the bundle in a single transaction. Existing queues keep
// their creation timestamp; every other table is overwritten by key.
func (r *importRepository) Import(ctx context.Context, bundle ImportBundle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(bundle.Queues) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&bundle.Queues).Error; err != nil {
				return err
			}
		}
		if len(bundle.Templates) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"question_type", "question_text"}),
			}).Create(&bundle.Templates).Error
			if err != nil {
				return err
			}
		}
		if len(bundle.Submissions) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"queue_id", "submitted_at", "raw"}),
			}).Create(&bundle.Submissions).Error
			if err != nil {
				return err
			}
		}
		if len(bundle.Questions) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "submission_id"}, {Name: "template_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"rev"}),
			}).Create(&bundle.Questions).Error
			if err != nil {
				return err
			}
		}
		if len(bundle.Answers) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "submission_id"}, {Name: "template_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"choice", "freeform", "reasoning", "raw"}),
			}).Create(&bundle.Answers).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
