package dto

import (
	"github.com/noah-isme/gema-judge/internal/models"
)

// AssignmentReplaceRequest carries the full template -> judges mapping for a queue.
// An empty or absent mapping clears every assignment.
type AssignmentReplaceRequest struct {
	Assignments map[string][]string `json:"assignments" validate:"omitempty,dive,keys,required,max=128,endkeys,dive,required,max=64"`
}

// AssignmentPair is one (template, judge) member of a queue's assignment set.
type AssignmentPair struct {
	TemplateID string `json:"template_id"`
	JudgeID    string `json:"judge_id"`
}

// AssignmentSetResponse renders a queue's assignment set both grouped and flat.
type AssignmentSetResponse struct {
	QueueID     string              `json:"queue_id"`
	Assignments map[string][]string `json:"assignments"`
	Pairs       []AssignmentPair    `json:"pairs"`
}

// NewAssignmentSetResponse groups stored rows by template, keeping row order.
func NewAssignmentSetResponse(queueID string, rows []models.JudgeAssignment) AssignmentSetResponse {
	response := AssignmentSetResponse{
		QueueID:     queueID,
		Assignments: make(map[string][]string),
		Pairs:       make([]AssignmentPair, 0, len(rows)),
	}
	for _, row := range rows {
		response.Assignments[row.TemplateID] = append(response.Assignments[row.TemplateID], row.JudgeID)
		response.Pairs = append(response.Pairs, AssignmentPair{TemplateID: row.TemplateID, JudgeID: row.JudgeID})
	}
	return response
}
