package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
)

// SubmissionRepository exposes the submission side of the record store.
type SubmissionRepository interface {
	ListIDsByQueue(ctx context.Context, queueID string) ([]string, error)
	ListTemplateIDs(ctx context.Context, submissionIDs []string) ([]string, error)
	GetAnswer(ctx context.Context, submissionID, templateID string) (models.Answer, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a GORM-backed submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) ListIDsByQueue(ctx context.Context, queueID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("queue_id = ?", queueID).
		Order("submitted_at ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListTemplateIDs returns the distinct templates referenced by the given
// submissions, ordered by template id.
func (r *submissionRepository) ListTemplateIDs(ctx context.Context, submissionIDs []string) ([]string, error) {
	if len(submissionIDs) == 0 {
		return []string{}, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.SubmissionQuestion{}).
		Where("submission_id IN ?", submissionIDs).
		Distinct().
		Order("template_id ASC").
		Pluck("template_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *submissionRepository) GetAnswer(ctx context.Context, submissionID, templateID string) (models.Answer, error) {
	var answer models.Answer
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND template_id = ?", submissionID, templateID).
		First(&answer).Error
	if err != nil {
		return models.Answer{}, err
	}
	return answer, nil
}
