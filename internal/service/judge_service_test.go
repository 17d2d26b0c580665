package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-judge/internal/dto"
)

func TestJudgeServiceCreateDefaults(t *testing.T) {
	repo := &stubJudgeRepo{}
	svc := NewJudgeService(repo, validator.New(), "gpt-4o-mini", testLogger())

	judge, err := svc.Create(context.Background(), dto.JudgeCreateRequest{
		Name:         "<b>Strict</b> grader",
		SystemPrompt: "  Fail anything vague.  ",
	})
	require.NoError(t, err)
	require.NotEmpty(t, judge.ID)
	require.Equal(t, "Strict grader", judge.Name)
	require.Equal(t, "Fail anything vague.", judge.SystemPrompt)
	require.Equal(t, "gpt-4o-mini", judge.Model)
	require.True(t, judge.Active)
	require.Len(t, repo.judges, 1)
}

func TestJudgeServiceCreateValidation(t *testing.T) {
	svc := NewJudgeService(&stubJudgeRepo{}, validator.New(), "", testLogger())

	_, err := svc.Create(context.Background(), dto.JudgeCreateRequest{Name: "x"})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), dto.JudgeCreateRequest{Name: "<script></script>", SystemPrompt: "p"})
	require.ErrorIs(t, err, ErrJudgeNameEmpty)
}

func TestJudgeServiceNameKeepsPlainSymbols(t *testing.T) {
	repo := &stubJudgeRepo{}
	svc := NewJudgeService(repo, validator.New(), "", testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.JudgeCreateRequest{Name: "Q&A <i>strict</i> grader", SystemPrompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "Q&A strict grader", created.Name)

	name := "Score < 5 & \"vague\""
	updated, err := svc.Update(ctx, created.ID, dto.JudgeUpdateRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
}

func TestJudgeServiceUpdateAndList(t *testing.T) {
	repo := &stubJudgeRepo{}
	svc := NewJudgeService(repo, validator.New(), "", testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.JudgeCreateRequest{Name: "A", SystemPrompt: "p"})
	require.NoError(t, err)

	inactive := false
	model := "gpt-4o"
	updated, err := svc.Update(ctx, created.ID, dto.JudgeUpdateRequest{Active: &inactive, Model: &model})
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.Equal(t, "gpt-4o", updated.Model)
	require.Equal(t, "A", updated.Name)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = svc.Update(ctx, "missing", dto.JudgeUpdateRequest{Active: &inactive})
	require.ErrorIs(t, err, ErrJudgeNotFound)
	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrJudgeNotFound)
}
