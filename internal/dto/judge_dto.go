package dto

import (
	"time"

	"github.com/noah-isme/gema-judge/internal/models"
)

// JudgeCreateRequest describes a new judge. Active defaults to true.
type JudgeCreateRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	SystemPrompt string `json:"system_prompt" validate:"required,min=1,max=20000"`
	Model        string `json:"model" validate:"omitempty,max=128"`
	Active       *bool  `json:"active"`
}

// JudgeUpdateRequest patches a judge; nil fields are left untouched.
type JudgeUpdateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	SystemPrompt *string `json:"system_prompt" validate:"omitempty,min=1,max=20000"`
	Model        *string `json:"model" validate:"omitempty,min=1,max=128"`
	Active       *bool   `json:"active"`
}

// JudgeResponse is the serialised judge.
type JudgeResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	Model        string    `json:"model"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewJudgeResponse converts a model into a DTO.
func NewJudgeResponse(model models.Judge) JudgeResponse {
	return JudgeResponse{
		ID:           model.ID,
		Name:         model.Name,
		SystemPrompt: model.SystemPrompt,
		Model:        model.Model,
		Active:       model.Active,
		CreatedAt:    model.CreatedAt,
	}
}

// NewJudgeResponseSlice converts judges into DTOs.
func NewJudgeResponseSlice(judges []models.Judge) []JudgeResponse {
	responses := make([]JudgeResponse, 0, len(judges))
	for _, judge := range judges {
		responses = append(responses, NewJudgeResponse(judge))
	}
	return responses
}
