package models

import "time"

// QuestionTemplateTypeUnknown is stored when an imported question carries no type tag.
const QuestionTemplateTypeUnknown = "unknown"

// QuestionTemplate is a reusable question definition referenced by submissions.
type QuestionTemplate struct {
	ID           string    `gorm:"primaryKey;size:128" json:"template_id"`
	QuestionType string    `gorm:"size:64;not null" json:"question_type"`
	QuestionText string    `gorm:"type:text" json:"question_text"`
	CreatedAt    time.Time `json:"created_at"`
}
