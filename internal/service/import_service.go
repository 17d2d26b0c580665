package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-judge/internal/dto"
	"github.com/noah-isme/gema-judge/internal/models"
	"github.com/noah-isme/gema-judge/internal/repository"
)

var (
	// ErrInvalidImport indicates the document does not match the import schema.
	ErrInvalidImport = errors.New("invalid import document")
	// ErrUnsupportedImportType indicates the upload is not JSON.
	ErrUnsupportedImportType = errors.New("unsupported import type")
)

const importSchemaURL = "import.schema.json"

const importSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "queueId", "questions"],
    "properties": {
      "id": {"type": "string", "minLength": 1, "maxLength": 128},
      "queueId": {"type": "string", "minLength": 1, "maxLength": 128},
      "createdAt": {"type": "integer", "minimum": 0},
      "questions": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["data"],
          "properties": {
            "rev": {"type": "integer", "minimum": 0},
            "data": {
              "type": "object",
              "required": ["id"],
              "properties": {
                "id": {"type": "string", "minLength": 1, "maxLength": 128},
                "questionType": {"type": "string", "maxLength": 64},
                "questionText": {"type": "string"}
              }
            }
          }
        }
      },
      "answers": {
        "type": "object",
        "additionalProperties": {
          "type": "object",
          "properties": {
            "choice": {"type": ["string", "null"]},
            "freeform": {"type": ["string", "null"]},
            "reasoning": {"type": ["string", "null"]}
          }
        }
      }
    }
  }
}`

var (
	importSchemaOnce     sync.Once
	importSchemaCompiled *jsonschema.Schema
	importSchemaErr      error
)

func compiledImportSchema() (*jsonschema.Schema, error) {
	importSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(importSchemaURL, strings.NewReader(importSchema)); err != nil {
			importSchemaErr = err
			return
		}
		importSchemaCompiled, importSchemaErr = compiler.Compile(importSchemaURL)
	})
	return importSchemaCompiled, importSchemaErr
}

// ImportService loads submission documents into the record store.
type ImportService interface {
	Import(ctx context.Context, document []byte) (dto.ImportResponse, error)
}

type importService struct {
	repo   repository.ImportRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewImportService builds an import service.
func NewImportService(repo repository.ImportRepository, logger zerolog.Logger) ImportService {
	return &importService{
		repo:   repo,
		logger: logger.With().Str("component", "import_service").Logger(),
		now:    time.Now,
	}
}

// Import validates a JSON array of submissions and upserts queues, templates,
// submissions, their question links and answers in one transaction.
func (s *importService) Import(ctx context.Context, document []byte) (dto.ImportResponse, error) {
	document = bytes.TrimSpace(document)
	if len(document) == 0 {
		return dto.ImportResponse{}, fmt.Errorf("%w: empty document", ErrInvalidImport)
	}

	// Large documents are truncated by detection and may report as plain text.
	mime := mimetype.Detect(document)
	if !mime.Is("application/json") && !mime.Is("text/plain") {
		return dto.ImportResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedImportType, mime.String())
	}

	schema, err := compiledImportSchema()
	if err != nil {
		return dto.ImportResponse{}, fmt.Errorf("compile import schema: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(document, &generic); err != nil {
		return dto.ImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := schema.Validate(generic); err != nil {
		return dto.ImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(document, &rawItems); err != nil {
		return dto.ImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	bundle, err := s.buildBundle(rawItems)
	if err != nil {
		return dto.ImportResponse{}, err
	}

	if err := s.repo.Import(ctx, bundle); err != nil {
		s.logger.Error().Err(err).Int("submissions", len(bundle.Submissions)).Msg("import failed")
		return dto.ImportResponse{}, err
	}

	response := dto.ImportResponse{
		Queues:      len(bundle.Queues),
		Submissions: len(bundle.Submissions),
		Templates:   len(bundle.Templates),
		Answers:     len(bundle.Answers),
	}
	s.logger.Info().
		Int("queues", response.Queues).
		Int("submissions", response.Submissions).
		Int("templates", response.Templates).
		Int("answers", response.Answers).
		Msg("import completed")
	return response, nil
}

func (s *importService) buildBundle(rawItems []json.RawMessage) (repository.ImportBundle, error) {
	now := s.now().UTC()
	bundle := repository.ImportBundle{}

	queueSeen := make(map[string]struct{})
	templateIndex := make(map[string]int)
	submissionIndex := make(map[string]int)
	questionSeen := make(map[[2]string]int)
	answerSeen := make(map[[2]string]int)

	for _, raw := range rawItems {
		var item dto.ImportSubmission
		if err := json.Unmarshal(raw, &item); err != nil {
			return repository.ImportBundle{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
		submissionID := strings.TrimSpace(item.ID)
		queueID := strings.TrimSpace(item.QueueID)

		if _, ok := queueSeen[queueID]; !ok {
			queueSeen[queueID] = struct{}{}
			bundle.Queues = append(bundle.Queues, models.Queue{ID: queueID, CreatedAt: now})
		}

		submittedAt := now
		if item.CreatedAt > 0 {
			submittedAt = time.UnixMilli(item.CreatedAt).UTC()
		}
		submission := models.Submission{
			ID:          submissionID,
			QueueID:     queueID,
			SubmittedAt: submittedAt,
			Raw:         datatypes.JSON(raw),
			CreatedAt:   now,
		}
		if idx, ok := submissionIndex[submissionID]; ok {
			bundle.Submissions[idx] = submission
		} else {
			submissionIndex[submissionID] = len(bundle.Submissions)
			bundle.Submissions = append(bundle.Submissions, submission)
		}

		for _, question := range item.Questions {
			templateID := strings.TrimSpace(question.Data.ID)
			questionType := strings.TrimSpace(question.Data.QuestionType)
			if questionType == "" {
				questionType = models.QuestionTemplateTypeUnknown
			}
			template := models.QuestionTemplate{
				ID:           templateID,
				QuestionType: questionType,
				// Stored verbatim: the text reaches the scorer prompt.
				QuestionText: strings.TrimSpace(question.Data.QuestionText),
				CreatedAt:    now,
			}
			if idx, ok := templateIndex[templateID]; ok {
				bundle.Templates[idx] = template
			} else {
				templateIndex[templateID] = len(bundle.Templates)
				bundle.Templates = append(bundle.Templates, template)
			}

			rev := question.Rev
			if rev <= 0 {
				rev = 1
			}
			link := models.SubmissionQuestion{SubmissionID: submissionID, TemplateID: templateID, Rev: rev}
			key := [2]string{submissionID, templateID}
			if idx, ok := questionSeen[key]; ok {
				bundle.Questions[idx] = link
			} else {
				questionSeen[key] = len(bundle.Questions)
				bundle.Questions = append(bundle.Questions, link)
			}
		}

		answerKeys := make([]string, 0, len(item.Answers))
		for templateID := range item.Answers {
			answerKeys = append(answerKeys, templateID)
		}
		sort.Strings(answerKeys)
		for _, templateID := range answerKeys {
			answer := item.Answers[templateID]
			encoded, err := json.Marshal(answer)
			if err != nil {
				return repository.ImportBundle{}, fmt.Errorf("encode answer: %w", err)
			}
			row := models.Answer{
				SubmissionID: submissionID,
				TemplateID:   templateID,
				Choice:       answer.Choice,
				Freeform:     answer.Freeform,
				Reasoning:    answer.Reasoning,
				Raw:          datatypes.JSON(encoded),
			}
			key := [2]string{submissionID, templateID}
			if idx, ok := answerSeen[key]; ok {
				bundle.Answers[idx] = row
			} else {
				answerSeen[key] = len(bundle.Answers)
				bundle.Answers = append(bundle.Answers, row)
			}
		}
	}

	return bundle, nil
}
