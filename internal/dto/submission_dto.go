package dto

// ImportQuestionData is the template embedded in an imported question.
type ImportQuestionData struct {
	ID           string `json:"id"`
	QuestionType string `json:"questionType"`
	QuestionText string `json:"questionText"`
}

// ImportQuestion links an imported submission to a template revision.
type ImportQuestion struct {
	Rev  int                `json:"rev"`
	Data ImportQuestionData `json:"data"`
}

// ImportAnswer is a submission's answer to one template.
type ImportAnswer struct {
	Choice    *string `json:"choice,omitempty"`
	Freeform  *string `json:"freeform,omitempty"`
	Reasoning *string `json:"reasoning,omitempty"`
}

// ImportSubmission is one element of the import payload. CreatedAt is epoch milliseconds.
type ImportSubmission struct {
	ID        string                  `json:"id"`
	QueueID   string                  `json:"queueId"`
	CreatedAt int64                   `json:"createdAt"`
	Questions []ImportQuestion        `json:"questions"`
	Answers   map[string]ImportAnswer `json:"answers"`
}

// ImportResponse reports how many rows of each kind the import touched.
type ImportResponse struct {
	Queues      int `json:"queues"`
	Submissions int `json:"submissions"`
	Templates   int `json:"templates"`
	Answers     int `json:"answers"`
}
