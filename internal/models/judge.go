package models

import "time"

// Judge is a configured automated grader: a model selector plus a rubric.
type Judge struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	SystemPrompt string    `gorm:"type:text;not null" json:"system_prompt"`
	Model        string    `gorm:"size:128;not null" json:"model"`
	Active       bool      `gorm:"not null" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
