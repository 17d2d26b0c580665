package dto

import "time"

// RunStartRequest starts a run over a queue. Wait blocks the request until
// the run settles.
type RunStartRequest struct {
	SkipScored bool `json:"skip_scored" query:"skip_scored"`
	Wait       bool `json:"wait" query:"wait"`
}

// TaskResponse is one derived evaluation task.
type TaskResponse struct {
	SubmissionID string `json:"submission_id"`
	TemplateID   string `json:"template_id"`
	JudgeID      string `json:"judge_id"`
}

// TaskPreviewResponse lists the tasks a run would dispatch.
type TaskPreviewResponse struct {
	QueueID string         `json:"queue_id"`
	Total   int            `json:"total"`
	Tasks   []TaskResponse `json:"tasks"`
}

// RunResponse reports the state of a run.
type RunResponse struct {
	RunID      string        `json:"run_id,omitempty"`
	QueueID    string        `json:"queue_id"`
	Status     string        `json:"status"`
	Done       int           `json:"done"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	FailedTask *TaskResponse `json:"failed_task,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
