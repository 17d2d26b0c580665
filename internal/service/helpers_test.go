package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-judge/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type stubSubmissionRepo struct {
	ids          []string
	templateIDs  []string
	idsErr       error
	templatesErr error
	answers      map[[2]string]models.Answer
}

func (s *stubSubmissionRepo) ListIDsByQueue(context.Context, string) ([]string, error) {
	return s.ids, s.idsErr
}

func (s *stubSubmissionRepo) ListTemplateIDs(context.Context, []string) ([]string, error) {
	return s.templateIDs, s.templatesErr
}

func (s *stubSubmissionRepo) GetAnswer(_ context.Context, submissionID, templateID string) (models.Answer, error) {
	answer, ok := s.answers[[2]string{submissionID, templateID}]
	if !ok {
		return models.Answer{}, gorm.ErrRecordNotFound
	}
	return answer, nil
}

type stubAssignmentRepo struct {
	rows       []models.JudgeAssignment
	listErr    error
	replaceErr error
	replaced   int
}

func (s *stubAssignmentRepo) ListByQueue(context.Context, string) ([]models.JudgeAssignment, error) {
	return s.rows, s.listErr
}

func (s *stubAssignmentRepo) Replace(_ context.Context, _ string, rows []models.JudgeAssignment) error {
	s.replaced++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.rows = rows
	return nil
}

type stubJudgeRepo struct {
	judges []models.Judge
	err    error
}

func (s *stubJudgeRepo) List(context.Context) ([]models.Judge, error) {
	return s.judges, s.err
}

func (s *stubJudgeRepo) ListActive(context.Context) ([]models.Judge, error) {
	if s.err != nil {
		return nil, s.err
	}
	active := make([]models.Judge, 0, len(s.judges))
	for _, judge := range s.judges {
		if judge.Active {
			active = append(active, judge)
		}
	}
	return active, nil
}

func (s *stubJudgeRepo) GetByID(_ context.Context, id string) (models.Judge, error) {
	for _, judge := range s.judges {
		if judge.ID == id {
			return judge, nil
		}
	}
	return models.Judge{}, gorm.ErrRecordNotFound
}

func (s *stubJudgeRepo) Create(_ context.Context, judge *models.Judge) error {
	s.judges = append(s.judges, *judge)
	return nil
}

func (s *stubJudgeRepo) Update(_ context.Context, judge *models.Judge) error {
	for i := range s.judges {
		if s.judges[i].ID == judge.ID {
			s.judges[i] = *judge
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func activeJudge(id string) models.Judge {
	return models.Judge{ID: id, Name: "Judge " + id, Model: "gpt-4o-mini", SystemPrompt: "grade it", Active: true}
}

func assign(queueID, templateID string, judgeIDs ...string) []models.JudgeAssignment {
	rows := make([]models.JudgeAssignment, 0, len(judgeIDs))
	for i, judgeID := range judgeIDs {
		rows = append(rows, models.JudgeAssignment{QueueID: queueID, TemplateID: templateID, JudgeID: judgeID, Position: i})
	}
	return rows
}
