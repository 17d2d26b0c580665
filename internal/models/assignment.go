package models

import "time"

// JudgeAssignment records that a judge grades a template within a queue.
// The composite key makes the per-queue relation a set; Position keeps the
// order in which the last save listed the judges.
type JudgeAssignment struct {
	QueueID    string    `gorm:"primaryKey;size:128" json:"queue_id"`
	TemplateID string    `gorm:"primaryKey;size:128" json:"template_id"`
	JudgeID    string    `gorm:"primaryKey;size:64" json:"judge_id"`
	Position   int       `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
