package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
)

const importDocument = `[
  {
    "id": "sub-1",
    "queueId": "queue-a",
    "createdAt": 1704067200000,
    "questions": [
      {"rev": 2, "data": {"id": "tpl-1", "questionType": "single_choice_with_reasoning", "questionText": "Is the sky blue?"}},
      {"data": {"id": "tpl-2", "questionText": "Why?"}}
    ],
    "answers": {
      "tpl-1": {"choice": "yes", "reasoning": "Rayleigh scattering"},
      "tpl-2": {"freeform": "Because of the atmosphere"}
    }
  },
  {
    "id": "sub-2",
    "queueId": "queue-a",
    "createdAt": 1704067260000,
    "questions": [
      {"rev": 1, "data": {"id": "tpl-1", "questionType": "single_choice_with_reasoning", "questionText": "Is the sky blue?"}}
    ],
    "answers": {"tpl-1": {"choice": "no"}}
  }
]`

func TestImportServiceLoadsDocument(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(repository.NewImportRepository(db), testLogger())

	result, err := svc.Import(context.Background(), []byte(importDocument))
	require.NoError(t, err)
	require.Equal(t, 1, result.Queues)
	require.Equal(t, 2, result.Submissions)
	require.Equal(t, 2, result.Templates)
	require.Equal(t, 3, result.Answers)

	var template models.QuestionTemplate
	require.NoError(t, db.First(&template, "id = ?", "tpl-2").Error)
	require.Equal(t, models.QuestionTemplateTypeUnknown, template.QuestionType)

	var link models.SubmissionQuestion
	require.NoError(t, db.First(&link, "submission_id = ? AND template_id = ?", "sub-1", "tpl-1").Error)
	require.Equal(t, 2, link.Rev)

	var submission models.Submission
	require.NoError(t, db.First(&submission, "id = ?", "sub-2").Error)
	require.Equal(t, int64(1704067260000), submission.SubmittedAt.UnixMilli())

	// Re-importing the same document upserts instead of duplicating.
	_, err = svc.Import(context.Background(), []byte(importDocument))
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Answer{}).Count(&count).Error)
	require.Equal(t, int64(3), count)

	ids, err := repository.NewSubmissionRepository(db).ListIDsByQueue(context.Background(), "queue-a")
	require.NoError(t, err)
	require.Equal(t, []string{"sub-1", "sub-2"}, ids)
}

func TestImportServiceRejectsInvalidDocuments(t *testing.T) {
	svc := NewImportService(repository.NewImportRepository(newTestDB(t)), testLogger())

	cases := map[string]struct {
		body string
		err  error
	}{
		"empty":           {body: "  ", err: ErrInvalidImport},
		"not json":        {body: "%PDF-1.4 binary", err: ErrUnsupportedImportType},
		"object":          {body: `{"id": "x"}`, err: ErrInvalidImport},
		"missing queueId": {body: `[{"id": "x", "questions": []}]`, err: ErrInvalidImport},
		"bad question":    {body: `[{"id": "x", "queueId": "q", "questions": [{"data": {}}]}]`, err: ErrInvalidImport},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), []byte(tc.body))
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestImportServiceKeepsQuestionTextVerbatim(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(repository.NewImportRepository(db), testLogger())

	const text = "Is 3 < 5 & 7 > 2? What does <div> mean?"
	document := `[{"id": "sub-1", "queueId": "queue-a", "createdAt": 1704067200000,
	  "questions": [{"rev": 1, "data": {"id": "tpl-1", "questionType": "free_form", "questionText": "Is 3 < 5 & 7 > 2? What does <div> mean?"}}],
	  "answers": {"tpl-1": {"freeform": "A <div> is a block & 3 < 5"}}}]`

	_, err := svc.Import(context.Background(), []byte(document))
	require.NoError(t, err)

	var template models.QuestionTemplate
	require.NoError(t, db.First(&template, "id = ?", "tpl-1").Error)
	require.Equal(t, text, template.QuestionText)

	var answer models.Answer
	require.NoError(t, db.First(&answer, "submission_id = ? AND template_id = ?", "sub-1", "tpl-1").Error)
	require.NotNil(t, answer.Freeform)
	require.Equal(t, "A <div> is a block & 3 < 5", *answer.Freeform)
}
