package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/spigell/adherence-scorer/internal/profile"
)

func enrich(p *profile.Profile) *profile.Enriched {
	return profile.NewEnricher().Enrich(p)
}

func TestScoreExampleProfile(t *testing.T) {
	p := enrich(&profile.Profile{Headline: "Java | React | Python"})
	job := JobRequirement{
		MandatorySkills: "java,react",
		DesiredSkills:   "python",
		ExperienceYears: "0",
	}

	result := Score(p, job)

	if result.Breakdown.Mandatory != MandatoryWeight {
		t.Fatalf("expected mandatory %v, got %v", MandatoryWeight, result.Breakdown.Mandatory)
	}
	if result.Breakdown.Desired != DesiredWeight {
		t.Fatalf("expected desired %v, got %v", DesiredWeight, result.Breakdown.Desired)
	}
	if result.Breakdown.Experience != ExperienceWeight {
		t.Fatalf("expected experience %v, got %v", ExperienceWeight, result.Breakdown.Experience)
	}
	if result.Score < 70 {
		t.Fatalf("expected score >= 70, got %v", result.Score)
	}

	reason := result.Reason()
	for _, want := range []string{"All mandatory skills met.", "1/1 desired skills met (e.g. python).", "Experience: 0.0 total years (requires 0)."} {
		if !strings.Contains(reason, want) {
			t.Fatalf("expected %q in reason %q", want, reason)
		}
	}
}

func TestScoreMandatoryFullMatch(t *testing.T) {
	p := enrich(&profile.Profile{
		Skills: []profile.Skill{{Name: "Golang"}, {Name: "PostgreSQL"}, {Name: "Kubernetes"}},
	})

	result := Score(p, JobRequirement{MandatorySkills: "go, postgres , kubernetes"})

	if result.Breakdown.Mandatory != MandatoryWeight {
		t.Fatalf("expected full mandatory score, got %v", result.Breakdown.Mandatory)
	}
}

func TestScoreMandatoryPartialReason(t *testing.T) {
	p := enrich(&profile.Profile{Skills: []profile.Skill{{Name: "java"}}})

	result := Score(p, JobRequirement{MandatorySkills: "java, kotlin, scala"})

	if got, want := result.Breakdown.Mandatory, 10.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !strings.Contains(result.Reason(), "1/3 mandatory skills met (e.g. java, kotlin).") {
		t.Fatalf("unexpected reason %q", result.Reason())
	}
}

func TestScoreEmptyMandatoryGivesZero(t *testing.T) {
	p := enrich(&profile.Profile{Skills: []profile.Skill{{Name: "java"}}})

	result := Score(p, JobRequirement{})

	if result.Breakdown.Mandatory != 0 {
		t.Fatalf("expected 0 without required skills, got %v", result.Breakdown.Mandatory)
	}
	if result.Reasons[1] != "All mandatory skills met." {
		t.Fatalf("unexpected mandatory reason %q", result.Reasons[1])
	}
}

func TestScoreExperience(t *testing.T) {
	tests := []struct {
		name     string
		years    float64
		required string
		expected float64
	}{
		{name: "zero requirement", years: 0, required: "0", expected: 20},
		{name: "non numeric requirement", years: 0, required: "a lot", expected: 20},
		{name: "empty requirement", years: 1, required: "", expected: 20},
		{name: "half of requirement", years: 2, required: "4", expected: 10},
		{name: "above requirement is capped", years: 10, required: "4 anos", expected: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := enrich(&profile.Profile{Experience: []profile.Experience{{DurationYears: tt.years}}})

			result := Score(p, JobRequirement{ExperienceYears: tt.required})
			if result.Breakdown.Experience != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, result.Breakdown.Experience)
			}
		})
	}
}

func TestScoreEducation(t *testing.T) {
	tests := []struct {
		name     string
		profile  *profile.Profile
		required string
		expected float64
		reason   string
	}{
		{
			name:     "degree contains requirement",
			profile:  &profile.Profile{Education: []profile.Education{{Degree: "Bachelor of Computer Science"}}},
			required: "Bachelor",
			expected: 25,
			reason:   "Education compatible: bachelor found.",
		},
		{
			name:     "requirement contains inferred degree",
			profile:  &profile.Profile{Headline: "Engenharia", Education: []profile.Education{{}}},
			required: "Engenharia de Software ou Ciência da Computação",
			expected: 25,
		},
		{
			name:     "no degree",
			profile:  &profile.Profile{},
			required: "Master",
			expected: 0,
			reason:   "Education partial: requires master, but profile has no clear information.",
		},
		{
			name: "different degrees",
			profile: &profile.Profile{Education: []profile.Education{
				{Degree: "Design"}, {Degree: "Arts"}, {Degree: "Music"},
			}},
			required: "Engineering",
			expected: 0,
			reason:   "Education partial: requires engineering, but profile has design, arts.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Score(enrich(tt.profile), JobRequirement{Education: tt.required})

			if result.Breakdown.Education != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, result.Breakdown.Education)
			}
			if tt.reason != "" && result.Reasons[0] != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, result.Reasons[0])
			}
		})
	}
}

func TestScoreObservationsUseWholeProfile(t *testing.T) {
	p := enrich(&profile.Profile{
		Headline: "Developer",
		Extra:    map[string]any{"languages": []any{"English", "Spanish"}},
	})

	result := Score(p, JobRequirement{Observations: "english, remote"})

	if got, want := result.Breakdown.Observations, 2.5; got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !strings.Contains(result.Reason(), "1/2 observations met (e.g. english, remote).") {
		t.Fatalf("unexpected reason %q", result.Reason())
	}
}

func TestScoreObservationsMatchMarkupCharacters(t *testing.T) {
	p := enrich(&profile.Profile{
		Headline: "R&D engineer <remote>",
		Projects: []profile.Project{{
			Name:  "Lab",
			Extra: map[string]any{"team": "C&I"},
		}},
	})

	result := Score(p, JobRequirement{Observations: "r&d, <remote>, c&i"})

	if got, want := result.Breakdown.Observations, 5.0; got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !strings.Contains(result.Reason(), "3/3 observations met (e.g. r&d, <remote>).") {
		t.Fatalf("unexpected reason %q", result.Reason())
	}
}

func TestScoreOptionalReasonsOmittedWithoutMatches(t *testing.T) {
	p := enrich(&profile.Profile{Headline: "Chef"})

	result := Score(p, JobRequirement{
		MandatorySkills: "rust",
		DesiredSkills:   "elixir",
		Observations:    "remote",
	})

	if len(result.Reasons) != 3 {
		t.Fatalf("expected education, mandatory and experience reasons only, got %v", result.Reasons)
	}
}

func TestScoreBoundsAndRounding(t *testing.T) {
	profiles := []*profile.Profile{
		nil,
		{},
		{Headline: "Java | React | Python | API", Education: []profile.Education{{Degree: "Bachelor"}}},
		{Experience: []profile.Experience{{DurationYears: 1}}, Skills: []profile.Skill{{Name: "java"}}},
	}
	jobs := []JobRequirement{
		{},
		{Education: "bachelor", MandatorySkills: "java,react,go", DesiredSkills: "python,c", ExperienceYears: "3", Observations: "api,remote,english"},
		{MandatorySkills: "java", ExperienceYears: "-2"},
	}

	for _, p := range profiles {
		for _, job := range jobs {
			var enriched *profile.Enriched
			if p != nil {
				enriched = enrich(p)
			}

			result := Score(enriched, job)
			if result.Score < 0 || result.Score > 100 {
				t.Fatalf("score out of bounds: %v", result.Score)
			}
			if rounded := math.Round(result.Score*10) / 10; rounded != result.Score {
				t.Fatalf("score not rounded to one decimal: %v", result.Score)
			}
			if len(result.Reasons) == 0 {
				t.Fatalf("expected reasons for %+v", job)
			}
		}
	}
}
