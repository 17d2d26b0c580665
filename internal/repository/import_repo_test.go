package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-judge/internal/models"
)

func TestImportRepositoryUpsertsBundle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewImportRepository(db)
	ctx := context.Background()

	bundle := ImportBundle{
		Queues:      []models.Queue{{ID: "Q1"}},
		Templates:   []models.QuestionTemplate{{ID: "T1", QuestionType: "free_text", QuestionText: "Why?"}},
		Submissions: []models.Submission{{ID: "S1", QueueID: "Q1", SubmittedAt: time.Now().UTC()}},
		Questions:   []models.SubmissionQuestion{{SubmissionID: "S1", TemplateID: "T1", Rev: 1}},
		Answers:     []models.Answer{{SubmissionID: "S1", TemplateID: "T1"}},
	}
	require.NoError(t, repo.Import(ctx, bundle))

	bundle.Templates[0].QuestionText = "Why not?"
	bundle.Questions[0].Rev = 2
	require.NoError(t, repo.Import(ctx, bundle))

	var template models.QuestionTemplate
	require.NoError(t, db.First(&template, "id = ?", "T1").Error)
	require.Equal(t, "Why not?", template.QuestionText)

	var link models.SubmissionQuestion
	require.NoError(t, db.First(&link, "submission_id = ? AND template_id = ?", "S1", "T1").Error)
	require.Equal(t, 2, link.Rev)

	var queues int64
	require.NoError(t, db.Model(&models.Queue{}).Count(&queues).Error)
	require.Equal(t, int64(1), queues)
}
