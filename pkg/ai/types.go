package ai

import "context"

// EvaluationInput contains everything a judge model needs to grade one answer.
type EvaluationInput struct {
	Model        string
	Rubric       string
	QuestionType string
	QuestionText string
	Choice       string
	Freeform     string
	Reasoning    string
}

// EvaluationResult is the structured verdict returned by the judge model.
type EvaluationResult struct {
	Verdict   string                 `json:"verdict"`
	Reasoning string                 `json:"reasoning"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

// Evaluator describes an AI model capable of grading an answer against a rubric.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (EvaluationResult, error)
}
