package models

import (
	"strings"
	"time"
)

// Verdict values persisted on evaluations.
const (
	VerdictPass         = "pass"
	VerdictFail         = "fail"
	VerdictInconclusive = "inconclusive"
)

// Evaluation is the persisted verdict of one scored (submission, template, judge)
// triple. Rows are append-only; a re-run inserts another row.
type Evaluation struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	SubmissionID string    `gorm:"size:128;not null;index" json:"submission_id"`
	TemplateID   string    `gorm:"size:128;not null;index" json:"template_id"`
	JudgeID      string    `gorm:"size:64;not null;index" json:"judge_id"`
	Verdict      string    `gorm:"size:32;not null;index" json:"verdict"`
	Reasoning    string    `gorm:"type:text" json:"judge_reasoning"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// IsValidVerdict reports whether value is one of the three verdict states.
func IsValidVerdict(value string) bool {
	switch value {
	case VerdictPass, VerdictFail, VerdictInconclusive:
		return true
	default:
		return false
	}
}

// NormalizeVerdict maps free-form scorer output onto the verdict states.
// Anything unrecognised is inconclusive.
func NormalizeVerdict(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if IsValidVerdict(normalized) {
		return normalized
	}
	return VerdictInconclusive
}

// AllModels lists every table owned by the record store, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Queue{},
		&QuestionTemplate{},
		&Submission{},
		&SubmissionQuestion{},
		&Answer{},
		&Judge{},
		&JudgeAssignment{},
		&Evaluation{},
	}
}
