package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
)

// QueueRepository lists queues.
type QueueRepository interface {
	List(ctx context.Context) ([]models.Queue, error)
}

type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository constructs a GORM-backed queue repository.
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) List(ctx context.Context) ([]models.Queue, error) {
	var queues []models.Queue
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Find(&queues).Error; err != nil {
		return nil, err
	}
	return queues, nil
}
