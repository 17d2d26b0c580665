package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-judge/internal/models"
)

func TestSubmissionRepositoryQueueLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.Create(&[]models.Submission{
		{ID: "B", QueueID: "Q1", SubmittedAt: now},
		{ID: "A", QueueID: "Q1", SubmittedAt: now},
		{ID: "C", QueueID: "Q2", SubmittedAt: now},
	}).Error)
	require.NoError(t, db.Create(&[]models.SubmissionQuestion{
		{SubmissionID: "A", TemplateID: "T2", Rev: 1},
		{SubmissionID: "A", TemplateID: "T1", Rev: 1},
		{SubmissionID: "B", TemplateID: "T1", Rev: 2},
		{SubmissionID: "C", TemplateID: "T9", Rev: 1},
	}).Error)

	ids, err := repo.ListIDsByQueue(ctx, "Q1")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, ids)

	templates, err := repo.ListTemplateIDs(ctx, ids)
	require.NoError(t, err)
	require.Equal(t, []string{"T1", "T2"}, templates)

	empty, err := repo.ListTemplateIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	missing, err := repo.ListIDsByQueue(ctx, "nope")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestSubmissionRepositoryGetAnswer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	choice := "B"
	require.NoError(t, db.Create(&models.Answer{SubmissionID: "A", TemplateID: "T1", Choice: &choice}).Error)

	answer, err := repo.GetAnswer(context.Background(), "A", "T1")
	require.NoError(t, err)
	require.NotNil(t, answer.Choice)
	require.Equal(t, "B", *answer.Choice)

	_, err = repo.GetAnswer(context.Background(), "A", "T2")
	require.Error(t, err)
}
