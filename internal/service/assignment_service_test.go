package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
)

func newAssignmentServiceForDB(t *testing.T, db *gorm.DB, judgeIDs ...string) AssignmentService {
	t.Helper()
	for _, id := range judgeIDs {
		judge := activeJudge(id)
		require.NoError(t, db.Create(&judge).Error)
	}
	return NewAssignmentService(repository.NewAssignmentRepository(db), repository.NewJudgeRepository(db), testLogger())
}

func TestAssignmentServiceReplaceAllThenList(t *testing.T) {
	db := newTestDB(t)
	svc := newAssignmentServiceForDB(t, db, "J1", "J2", "J3", "J9")
	ctx := context.Background()

	_, err := svc.ReplaceAll(ctx, "Q1", map[string][]string{"T9": {"J9"}})
	require.NoError(t, err)

	mapping := map[string][]string{
		"T2": {"J3"},
		"T1": {"J1", "J2", "J1"},
		"T3": {},
	}
	written, err := svc.ReplaceAll(ctx, "Q1", mapping)
	require.NoError(t, err)
	require.Len(t, written.Pairs, 3)

	listed, err := svc.List(ctx, "Q1")
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"T1": {"J1", "J2"}, "T2": {"J3"}}, listed.Assignments)
	require.Equal(t, written.Pairs, listed.Pairs)

	again, err := svc.ReplaceAll(ctx, "Q1", mapping)
	require.NoError(t, err)
	require.Equal(t, written, again)

	relisted, err := svc.List(ctx, "Q1")
	require.NoError(t, err)
	require.Equal(t, listed, relisted)
}

func TestAssignmentServiceEmptyMappingClears(t *testing.T) {
	db := newTestDB(t)
	svc := newAssignmentServiceForDB(t, db, "J1")
	ctx := context.Background()

	_, err := svc.ReplaceAll(ctx, "Q1", map[string][]string{"T1": {"J1"}})
	require.NoError(t, err)

	_, err = svc.ReplaceAll(ctx, "Q1", nil)
	require.NoError(t, err)

	listed, err := svc.List(ctx, "Q1")
	require.NoError(t, err)
	require.Empty(t, listed.Pairs)
	require.Empty(t, listed.Assignments)
}

func TestAssignmentServiceWrapsStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	judges := &stubJudgeRepo{judges: []models.Judge{activeJudge("J1")}}
	svc := NewAssignmentService(&stubAssignmentRepo{listErr: boom, replaceErr: boom}, judges, testLogger())

	_, err := svc.List(context.Background(), "Q1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, boom)

	_, err = svc.ReplaceAll(context.Background(), "Q1", map[string][]string{"T1": {"J1"}})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Contains(t, err.Error(), "state unknown")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "replace", storeErr.Op)
	require.Equal(t, "Q1", storeErr.QueueID)
}

func TestAssignmentServiceRejectsUnknownAndInactiveJudges(t *testing.T) {
	db := newTestDB(t)
	svc := newAssignmentServiceForDB(t, db, "J1")
	retired := activeJudge("J2")
	require.NoError(t, db.Create(&retired).Error)
	require.NoError(t, db.Model(&models.Judge{}).Where("id = ?", "J2").Update("active", false).Error)
	ctx := context.Background()

	_, err := svc.ReplaceAll(ctx, "Q1", map[string][]string{"T1": {"J1"}})
	require.NoError(t, err)

	_, err = svc.ReplaceAll(ctx, "Q1", map[string][]string{"T1": {"J1", "J2"}, "T2": {"ghost"}})
	require.ErrorIs(t, err, ErrJudgeNotAssignable)
	require.Contains(t, err.Error(), "J2, ghost")

	listed, err := svc.List(ctx, "Q1")
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"T1": {"J1"}}, listed.Assignments)
}

func TestAssignmentServiceJudgeLookupFailure(t *testing.T) {
	boom := errors.New("judges offline")
	repo := &stubAssignmentRepo{}
	svc := NewAssignmentService(repo, &stubJudgeRepo{err: boom}, testLogger())

	_, err := svc.ReplaceAll(context.Background(), "Q1", map[string][]string{"T1": {"J1"}})
	require.ErrorIs(t, err, ErrDependencyFetchFailed)
	require.ErrorIs(t, err, boom)
	require.Zero(t, repo.replaced)
}

func TestFlattenAssignmentsOrdersTemplatesAndSkipsBlanks(t *testing.T) {
	rows := flattenAssignments("Q", map[string][]string{
		"b":  {"J2", " ", "J1"},
		"a":  {"J3"},
		"  ": {"J4"},
	})

	require.Len(t, rows, 3)
	require.Equal(t, "a", rows[0].TemplateID)
	require.Equal(t, "J3", rows[0].JudgeID)
	require.Equal(t, "J2", rows[1].JudgeID)
	require.Equal(t, "J1", rows[2].JudgeID)
	for i, row := range rows {
		require.Equal(t, i, row.Position)
		require.Equal(t, "Q", row.QueueID)
	}
}
