package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
)

// TemplateRepository reads question templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (models.QuestionTemplate, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.QuestionTemplate, error)
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository constructs a GORM-backed template repository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (models.QuestionTemplate, error) {
	var template models.QuestionTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&template).Error; err != nil {
		return models.QuestionTemplate{}, err
	}
	return template, nil
}

func (r *templateRepository) ListByIDs(ctx context.Context, ids []string) ([]models.QuestionTemplate, error) {
	if len(ids) == 0 {
		return []models.QuestionTemplate{}, nil
	}
	var templates []models.QuestionTemplate
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}
