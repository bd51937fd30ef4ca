// Package scoring computes how well an enriched profile adheres to a job requirement.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/utils"
)

const (
	EducationWeight    = 25.0
	MandatoryWeight    = 30.0
	DesiredWeight      = 20.0
	ExperienceWeight   = 20.0
	ObservationsWeight = 5.0

	// ReasonSeparator joins the per-factor reasons into a single justification.
	ReasonSeparator = " | "

	maxScore      = 100.0
	examplesShown = 2
)

// JobRequirement is the job description a batch is scored against. Skill and
// observation fields are comma separated lists, ExperienceYears is numeric text.
type JobRequirement struct {
	Education       string `mapstructure:"education" json:"education"`
	MandatorySkills string `mapstructure:"mandatory-skills" json:"mandatory_skills"`
	DesiredSkills   string `mapstructure:"desired-skills" json:"desired_skills"`
	ExperienceYears string `mapstructure:"experience-years" json:"experience_years"`
	Observations    string `mapstructure:"observations" json:"observations"`
}

// Breakdown holds the contribution of every factor.
type Breakdown struct {
	Education    float64
	Mandatory    float64
	Desired      float64
	Experience   float64
	Observations float64
}

// Total is the unrounded sum of all factors.
func (b Breakdown) Total() float64 {
	return b.Education + b.Mandatory + b.Desired + b.Experience + b.Observations
}

type Result struct {
	// Score is within [0, 100] and rounded to one decimal.
	Score     float64
	Reasons   []string
	Breakdown Breakdown
}

// Reason returns the human readable justification of the score.
func (r *Result) Reason() string {
	return strings.Join(r.Reasons, ReasonSeparator)
}

// Score rates p against job. It never modifies p.
func Score(p *profile.Enriched, job JobRequirement) *Result {
	if p == nil {
		p = &profile.Enriched{}
	}

	result := &Result{}
	skills := skillNames(p)

	result.Breakdown.Education = scoreEducation(p, job, result)
	result.Breakdown.Mandatory = scoreMandatory(skills, job, result)
	result.Breakdown.Desired = scoreDesired(skills, job, result)
	result.Breakdown.Experience = scoreExperience(p, job, result)
	result.Breakdown.Observations = scoreObservations(p, job, result)

	total := clamp(result.Breakdown.Total(), maxScore)
	result.Score = math.Round(total*10) / 10

	return result
}

func scoreEducation(p *profile.Enriched, job JobRequirement, result *Result) float64 {
	required := strings.ToLower(job.Education)

	degrees := make([]string, 0, len(p.Education))
	for _, edu := range p.Education {
		degree := strings.ToLower(edu.Degree)
		if degree == "" {
			continue
		}
		degrees = append(degrees, degree)
	}

	for _, degree := range degrees {
		if strings.Contains(degree, required) || strings.Contains(required, degree) {
			result.Reasons = append(result.Reasons, fmt.Sprintf("Education compatible: %s found.", required))
			return EducationWeight
		}
	}

	found := "no clear information"
	if len(degrees) > 0 {
		found = strings.Join(firstN(degrees, examplesShown), ", ")
	}
	result.Reasons = append(result.Reasons, fmt.Sprintf("Education partial: requires %s, but profile has %s.", required, found))

	return 0
}

func scoreMandatory(skills []string, job JobRequirement, result *Result) float64 {
	required := utils.SplitList(job.MandatorySkills)
	matched := countSkillMatches(required, skills)

	if matched == len(required) {
		result.Reasons = append(result.Reasons, "All mandatory skills met.")
	} else {
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d/%d mandatory skills met (e.g. %s).",
			matched, len(required), strings.Join(firstN(required, examplesShown), ", ")))
	}

	return ratio(matched, len(required), MandatoryWeight)
}

func scoreDesired(skills []string, job JobRequirement, result *Result) float64 {
	desired := utils.SplitList(job.DesiredSkills)
	matched := countSkillMatches(desired, skills)

	if matched > 0 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d/%d desired skills met (e.g. %s).",
			matched, len(desired), strings.Join(firstN(desired, examplesShown), ", ")))
	}

	return ratio(matched, len(desired), DesiredWeight)
}

func scoreExperience(p *profile.Enriched, job JobRequirement, result *Result) float64 {
	required, _ := utils.ParseLeadingFloat(job.ExperienceYears)
	total := p.TotalExperience()

	score := ExperienceWeight
	if required > 0 {
		score = math.Min(total/required, 1) * ExperienceWeight
	}

	result.Reasons = append(result.Reasons, fmt.Sprintf("Experience: %.1f total years (requires %s).",
		total, strconv.FormatFloat(required, 'f', -1, 64)))

	return clamp(score, ExperienceWeight)
}

func scoreObservations(p *profile.Enriched, job JobRequirement, result *Result) float64 {
	keywords := utils.SplitList(job.Observations)
	if len(keywords) == 0 {
		return 0
	}

	text, err := p.Text()
	if err != nil {
		text = ""
	}
	text = strings.ToLower(text)

	matched := 0
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			matched++
		}
	}

	if matched > 0 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d/%d observations met (e.g. %s).",
			matched, len(keywords), strings.Join(firstN(keywords, examplesShown), ", ")))
	}

	return ratio(matched, len(keywords), ObservationsWeight)
}

// countSkillMatches counts the wanted items matched by at least one profile
// skill, a match being a substring relation in either direction.
func countSkillMatches(wanted, skills []string) int {
	matched := 0
	for _, item := range wanted {
		for _, skill := range skills {
			if strings.Contains(skill, item) || strings.Contains(item, skill) {
				matched++
				break
			}
		}
	}
	return matched
}

func skillNames(p *profile.Enriched) []string {
	names := make([]string, 0, len(p.Skills))
	for _, skill := range p.Skills {
		name := strings.ToLower(strings.TrimSpace(skill.Name))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func ratio(matched, total int, weight float64) float64 {
	if total == 0 {
		return 0
	}
	return clamp(float64(matched)/float64(total)*weight, weight)
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, limit)
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
