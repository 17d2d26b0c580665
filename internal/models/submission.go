package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission belongs to exactly one queue and keeps the imported document verbatim.
type Submission struct {
	ID          string         `gorm:"primaryKey;size:128" json:"id"`
	QueueID     string         `gorm:"size:128;not null;index" json:"queue_id"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Raw         datatypes.JSON `json:"raw_json"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SubmissionQuestion links a submission to a template it answers. A template is
// "in" a queue when any submission of that queue references it here.
type SubmissionQuestion struct {
	SubmissionID string `gorm:"primaryKey;size:128" json:"submission_id"`
	TemplateID   string `gorm:"primaryKey;size:128;index" json:"template_id"`
	Rev          int    `gorm:"not null;default:1" json:"rev"`
}

// Answer is a submission's response to a single template.
type Answer struct {
	SubmissionID string         `gorm:"primaryKey;size:128" json:"submission_id"`
	TemplateID   string         `gorm:"primaryKey;size:128" json:"template_id"`
	Choice       *string        `gorm:"type:text" json:"choice"`
	Freeform     *string        `gorm:"type:text" json:"freeform"`
	Reasoning    *string        `gorm:"type:text" json:"reasoning"`
	Raw          datatypes.JSON `json:"raw_answer"`
}
