package dto

import "time"

// ResultFilterRequest narrows verdict results. Empty fields match everything.
type ResultFilterRequest struct {
	QueueID    string `query:"queue_id" validate:"omitempty,max=128"`
	JudgeID    string `query:"judge_id" validate:"omitempty,max=64"`
	TemplateID string `query:"template_id" validate:"omitempty,max=128"`
	Verdict    string `query:"verdict" validate:"omitempty,oneof=pass fail inconclusive"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

// VerdictRecord is a verdict with its judge and template denormalised.
type VerdictRecord struct {
	ID           string    `json:"id"`
	QueueID      string    `json:"queue_id"`
	SubmissionID string    `json:"submission_id"`
	TemplateID   string    `json:"template_id"`
	JudgeID      string    `json:"judge_id"`
	Verdict      string    `json:"verdict"`
	Reasoning    string    `json:"judge_reasoning"`
	JudgeName    string    `json:"judge_name"`
	JudgeModel   string    `json:"judge_model"`
	TemplateText string    `json:"template_text"`
	TemplateType string    `json:"template_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResultStats summarises a set of verdicts.
type ResultStats struct {
	Total             int `json:"total"`
	PassCount         int `json:"pass_count"`
	FailCount         int `json:"fail_count"`
	InconclusiveCount int `json:"inconclusive_count"`
	PassRatePercent   int `json:"pass_rate_percent"`
}

// ResultsResponse bundles a page of verdicts with their stats.
type ResultsResponse struct {
	Records []VerdictRecord `json:"records"`
	Stats   ResultStats     `json:"stats"`
	Limit   int             `json:"limit"`
}
