package dto

import (
	"time"

	"github.com/noah-isme/gema-judge/internal/models"
)

// QueueResponse is the serialised queue.
type QueueResponse struct {
	ID        string    `json:"queue_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TemplateResponse is the serialised question template.
type TemplateResponse struct {
	ID           string `json:"id"`
	QuestionType string `json:"question_type"`
	QuestionText string `json:"question_text"`
}

// NewQueueResponseSlice converts queues into DTOs.
func NewQueueResponseSlice(queues []models.Queue) []QueueResponse {
	responses := make([]QueueResponse, 0, len(queues))
	for _, queue := range queues {
		responses = append(responses, QueueResponse{ID: queue.ID, CreatedAt: queue.CreatedAt})
	}
	return responses
}

// NewTemplateResponseSlice converts templates into DTOs.
func NewTemplateResponseSlice(templates []models.QuestionTemplate) []TemplateResponse {
	responses := make([]TemplateResponse, 0, len(templates))
	for _, template := range templates {
		responses = append(responses, TemplateResponse{
			ID:           template.ID,
			QuestionType: template.QuestionType,
			QuestionText: template.QuestionText,
		})
	}
	return responses
}
