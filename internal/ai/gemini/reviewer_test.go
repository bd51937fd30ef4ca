package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/scoring"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestReviewerReview(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" +
		`{"summary": "Solid Java background.", "strengths": ["Java", "React"], "concerns": "No cloud experience", "interview": "Ask about testing"}` +
		"\n```"}
	reviewer := NewReviewer(stub, zap.NewNop(), 0)

	candidate := &profile.Enriched{Profile: profile.Profile{Name: "Ana", Headline: "Java | React"}}
	job := scoring.JobRequirement{Education: "Engenharia", MandatorySkills: "java"}
	score := &scoring.Result{Score: 72.5, Reasons: []string{"All mandatory skills met."}}

	note, err := reviewer.Review(context.Background(), candidate, job, score)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if note.Summary != "Solid Java background." {
		t.Fatalf("unexpected summary %q", note.Summary)
	}
	if len(note.Strengths) != 2 || note.Strengths[1] != "React" {
		t.Fatalf("unexpected strengths %v", note.Strengths)
	}
	if len(note.Concerns) != 1 || note.Concerns[0] != "No cloud experience" {
		t.Fatalf("unexpected concerns %v", note.Concerns)
	}
	if note.Model != "stub-model" {
		t.Fatalf("unexpected model %q", note.Model)
	}

	for _, want := range []string{"72.5", "- All mandatory skills met.", `"headline": "Java | React"`, `"mandatory_skills": "java"`} {
		if !strings.Contains(stub.lastPrompt, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, stub.lastPrompt)
		}
	}
}

func TestReviewerPropagatesErrors(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	reviewer := NewReviewer(stub, zap.NewNop(), 0)

	_, err := reviewer.Review(context.Background(), &profile.Enriched{}, scoring.JobRequirement{}, &scoring.Result{})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestReviewerRejectsMalformedResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "not json", response: "I think the candidate is great"},
		{name: "missing summary", response: `{"strengths": ["Go"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviewer := NewReviewer(&stubGenerator{response: tt.response}, zap.NewNop(), 0)
			if _, err := reviewer.Review(context.Background(), &profile.Enriched{}, scoring.JobRequirement{}, &scoring.Result{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
