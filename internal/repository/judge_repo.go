package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
)

// JudgeRepository defines persistence operations for judges.
type JudgeRepository interface {
	List(ctx context.Context) ([]models.Judge, error)
	ListActive(ctx context.Context) ([]models.Judge, error)
	GetByID(ctx context.Context, id string) (models.Judge, error)
	Create(ctx context.Context, judge *models.Judge) error
	Update(ctx context.Context, judge *models.Judge) error
}

type judgeRepository struct {
	db *gorm.DB
}

// NewJudgeRepository instantiates a GORM-backed judge repository.
func NewJudgeRepository(db *gorm.DB) JudgeRepository {
	return &judgeRepository{db: db}
}

func (r *judgeRepository) List(ctx context.Context) ([]models.Judge, error) {
	var judges []models.Judge
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Find(&judges).Error; err != nil {
		return nil, err
	}
	return judges, nil
}

func (r *judgeRepository) ListActive(ctx context.Context) ([]models.Judge, error) {
	var judges []models.Judge
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC").
		Order("id ASC").
		Find(&judges).Error
	if err != nil {
		return nil, err
	}
	return judges, nil
}

func (r *judgeRepository) GetByID(ctx context.Context, id string) (models.Judge, error) {
	var judge models.Judge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&judge).Error; err != nil {
		return models.Judge{}, err
	}
	return judge, nil
}

func (r *judgeRepository) Create(ctx context.Context, judge *models.Judge) error {
	return r.db.WithContext(ctx).Create(judge).Error
}

func (r *judgeRepository) Update(ctx context.Context, judge *models.Judge) error {
	return r.db.WithContext(ctx).Save(judge).Error
}
