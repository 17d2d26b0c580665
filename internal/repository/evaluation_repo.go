package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
)

// EvaluationFilter narrows the verdicts returned by List. Empty fields are ignored.
type EvaluationFilter struct {
	QueueID    string
	JudgeID    string
	TemplateID string
	Verdict    string
	Limit      int
}

// EvaluationRecord is a verdict row joined with its judge, template and queue.
type EvaluationRecord struct {
	ID           string
	Verdict      string
	Reasoning    string
	CreatedAt    time.Time
	SubmissionID string
	TemplateID   string
	JudgeID      string
	QueueID      string
	JudgeName    string
	JudgeModel   string
	TemplateText string
	TemplateType string
}

// EvaluationRepository appends and reads verdict rows.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	List(ctx context.Context, filter EvaluationFilter) ([]EvaluationRecord, error)
	ListScoredInQueue(ctx context.Context, queueID string) ([]models.Evaluation, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs a GORM-backed evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]EvaluationRecord, error) {
	query := r.db.WithContext(ctx).
		Table("evaluations").
		Select(`evaluations.id, evaluations.verdict, evaluations.reasoning, evaluations.created_at,
			evaluations.submission_id, evaluations.template_id, evaluations.judge_id,
			submissions.queue_id AS queue_id,
			judges.name AS judge_name, judges.model AS judge_model,
			question_templates.question_text AS template_text, question_templates.question_type AS template_type`).
		Joins("JOIN submissions ON submissions.id = evaluations.submission_id").
		Joins("LEFT JOIN judges ON judges.id = evaluations.judge_id").
		Joins("LEFT JOIN question_templates ON question_templates.id = evaluations.template_id")

	if filter.QueueID != "" {
		query = query.Where("submissions.queue_id = ?", filter.QueueID)
	}
	if filter.JudgeID != "" {
		query = query.Where("evaluations.judge_id = ?", filter.JudgeID)
	}
	if filter.TemplateID != "" {
		query = query.Where("evaluations.template_id = ?", filter.TemplateID)
	}
	if filter.Verdict != "" {
		query = query.Where("evaluations.verdict = ?", filter.Verdict)
	}

	query = query.Order("evaluations.created_at DESC").Order("evaluations.id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []EvaluationRecord
	if err := query.Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListScoredInQueue returns the distinct triples that already carry a verdict
// for submissions of the queue. Only the key columns are populated.
func (r *evaluationRepository) ListScoredInQueue(ctx context.Context, queueID string) ([]models.Evaluation, error) {
	var rows []models.Evaluation
	err := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Distinct("evaluations.submission_id", "evaluations.template_id", "evaluations.judge_id").
		Joins("JOIN submissions ON submissions.id = evaluations.submission_id").
		Where("submissions.queue_id = ?", queueID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
