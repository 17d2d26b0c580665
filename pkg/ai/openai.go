package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "judge",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of judge model requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of judge model failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-judge/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIEvaluator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Evaluate asks the judge's model for a verdict. The judge's own model wins
// over the configured default.
func (e *OpenAIEvaluator) Evaluate(parent context.Context, input EvaluationInput) (EvaluationResult, error) {
	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = e.cfg.Model
	}

	ctx, span := e.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("question_type", input.QuestionType),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: judgeSystemPrompt(input.Rubric),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, fmt.Errorf("openai evaluate: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseEvaluationResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, err
	}

	e.logger.Debug().Str("model", model).Str("verdict", result.Verdict).Dur("duration", duration).Msg("judge verdict received")

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func judgeSystemPrompt(rubric string) string {
	builder := strings.Builder{}
	builder.WriteString("You are an automated judge grading a single answer to a question. ")
	builder.WriteString(`Respond with a JSON object {"verdict": "pass" | "fail" | "inconclusive", "reasoning": string}. `)
	builder.WriteString("Use inconclusive only when the answer cannot be graded.")
	if strings.TrimSpace(rubric) != "" {
		builder.WriteString("\n\n# Rubric\n")
		builder.WriteString(rubric)
	}
	return builder.String()
}

func buildUserPrompt(input EvaluationInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionText)
	builder.WriteString("\n\n## Question Type\n")
	builder.WriteString(input.QuestionType)
	builder.WriteString("\n\n# Answer")
	if input.Choice != "" {
		builder.WriteString("\n\n## Choice\n")
		builder.WriteString(input.Choice)
	}
	if input.Freeform != "" {
		builder.WriteString("\n\n## Freeform\n")
		builder.WriteString(input.Freeform)
	}
	if input.Reasoning != "" {
		builder.WriteString("\n\n## Reasoning\n")
		builder.WriteString(input.Reasoning)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseEvaluationResponse(content string) (EvaluationResult, error) {
	type payload struct {
		Verdict   string `json:"verdict"`
		Reasoning string `json:"reasoning"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return EvaluationResult{}, fmt.Errorf("parse evaluation json: %w", err)
	}

	return EvaluationResult{
		Verdict:   strings.ToLower(strings.TrimSpace(data.Verdict)),
		Reasoning: strings.TrimSpace(data.Reasoning),
	}, nil
}
