package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
)

// AssignmentRepository persists the judge-to-template relation of a queue.
type AssignmentRepository interface {
	ListByQueue(ctx context.Context, queueID string) ([]models.JudgeAssignment, error)
	Replace(ctx context.Context, queueID string, rows []models.JudgeAssignment) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) ListByQueue(ctx context.Context, queueID string) ([]models.JudgeAssignment, error) {
	var rows []models.JudgeAssignment
	err := r.db.WithContext(ctx).
		Where("queue_id = ?", queueID).
		Order("position ASC").
		Order("template_id ASC").
		Order("judge_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Replace deletes every row of the queue and inserts rows in one transaction.
// An empty rows slice clears the queue.
func (r *assignmentRepository) Replace(ctx context.Context, queueID string, rows []models.JudgeAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("queue_id = ?", queueID).Delete(&models.JudgeAssignment{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}
