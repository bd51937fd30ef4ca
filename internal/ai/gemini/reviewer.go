package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/ai"
	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/scoring"
	"github.com/spigell/adherence-scorer/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Reviewer writes recruiter notes for shortlisted candidates with Gemini.
type Reviewer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewReviewer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Reviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Reviewer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (r *Reviewer) Review(ctx context.Context, candidate *profile.Enriched, job scoring.JobRequirement, score *scoring.Result) (*ai.Note, error) {
	if candidate == nil {
		return nil, fmt.Errorf("candidate profile is required")
	}
	if score == nil {
		return nil, fmt.Errorf("score is required")
	}

	profileJSON, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(jobJSON), score)

	r.logger.Debug("gemini generate content request",
		zap.String("candidate", candidate.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini generate content response",
		zap.String("candidate", candidate.Name),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	note, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	note.Model = r.generator.Model()
	note.Raw = raw

	return note, nil
}

func buildPrompt(profileJSON, jobJSON string, score *scoring.Result) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job:\n{{JOB_JSON}}\n\nScore: {{SCORE}}\n{{REASONS}}\n\nProfile:\n{{PROFILE_JSON}}\n\nJSON Response:"
	}

	reasons := make([]string, 0, len(score.Reasons))
	for _, reason := range score.Reasons {
		reasons = append(reasons, "- "+reason)
	}

	replacer := strings.NewReplacer(
		"{{JOB_JSON}}", jobJSON,
		"{{PROFILE_JSON}}", profileJSON,
		"{{SCORE}}", strconv.FormatFloat(score.Score, 'f', -1, 64),
		"{{REASONS}}", strings.Join(reasons, "\n"),
	)

	return replacer.Replace(template)
}

func parseResponse(raw string) (*ai.Note, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	note := &ai.Note{
		Summary:   coerceString(data["summary"]),
		Strengths: coerceStrings(data["strengths"]),
		Concerns:  coerceStrings(data["concerns"]),
		Interview: coerceString(data["interview"]),
	}
	if note.Summary == "" {
		return nil, fmt.Errorf("gemini response has no summary")
	}

	return note, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
