// Package batch runs the retrieval and scoring pipeline over a list of candidates.
package batch

import (
	"fmt"
	"strings"

	"github.com/spigell/adherence-scorer/internal/ai"
	"github.com/spigell/adherence-scorer/internal/profile"
)

const (
	FailureReason           = "Failed to extract profile data (see logs for details)."
	CredentialFailureReason = "Lookup API rejected the api key; profile was not retrieved."
	SkippedReason           = "Not processed: the batch was stopped before this candidate."
)

type Status string

const (
	StatusScored  Status = "scored"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Candidate is one row of the input dataset.
type Candidate struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// NewCandidate trims both fields and falls back to the slug for a missing name.
func NewCandidate(slug, name string) Candidate {
	slug = strings.TrimSpace(slug)
	name = strings.TrimSpace(name)
	if name == "" {
		name = slug
	}
	return Candidate{Slug: slug, Name: name}
}

func (c Candidate) String() string {
	if c.Name == "" || c.Name == c.Slug {
		return c.Slug
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Slug)
}

type Result struct {
	Name    string            `json:"name"`
	Slug    string            `json:"slug"`
	Score   float64           `json:"score"`
	Reason  string            `json:"reason"`
	Reasons []string          `json:"reasons,omitempty"`
	Status  Status            `json:"status"`
	Profile *profile.Enriched `json:"profile"`
	Note    *ai.Note          `json:"note,omitempty"`
}

func failed(c Candidate, reason string) Result {
	return Result{Name: c.Name, Slug: c.Slug, Reason: reason, Status: StatusFailed}
}

func skipped(c Candidate) Result {
	return Result{Name: c.Name, Slug: c.Slug, Reason: SkippedReason, Status: StatusSkipped}
}

// Report is the outcome of one batch run. Results are sorted by score.
type Report struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
	Top     []Result `json:"top"`
	// Aborted is set when a rejected credential stopped the run early.
	Aborted bool `json:"aborted"`
}
