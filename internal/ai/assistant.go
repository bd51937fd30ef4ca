package ai

import (
	"context"

	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/scoring"
)

// Note is a free-form review of a shortlisted candidate. It never changes the score.
type Note struct {
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths,omitempty"`
	Concerns  []string `json:"concerns,omitempty"`
	Interview string   `json:"interview,omitempty"`
	Model     string   `json:"model,omitempty"`
	Raw       string   `json:"-"`
}

type Reviewer interface {
	Review(ctx context.Context, candidate *profile.Enriched, job scoring.JobRequirement, score *scoring.Result) (*Note, error)
}
