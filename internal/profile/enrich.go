package profile

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DegreeRule maps a keyword found in the profile text to the degree it implies.
type DegreeRule struct {
	Keyword string
	Degree  string
}

// DefaultDegreeRules are evaluated in order, the first match wins.
var DefaultDegreeRules = []DegreeRule{
	{Keyword: "engenharia", Degree: "Engenharia de Software"},
	{Keyword: "software engineering", Degree: "Software Engineering"},
	{Keyword: "bacharel", Degree: "Bacharel"},
	{Keyword: "bachelor", Degree: "Bachelor"},
}

// DefaultKnownSkills are added whenever they occur anywhere in the profile text.
var DefaultKnownSkills = []string{
	"java", "react", "python", "javascript", "typescript", "flutter",
	"opencv", "machine learning", "front-end", "back-end", "api",
}

var (
	stopwords = map[string]struct{}{"and": {}, "the": {}, "for": {}}

	pipeSeparator  = regexp.MustCompile(`\s*\|\s*`)
	commaSeparator = regexp.MustCompile(`,\s*`)
	nonWord        = regexp.MustCompile(`[^\w\s]`)
	yearPattern    = regexp.MustCompile(`\d{4}`)
)

const minSkillLength = 3

// Enricher repairs missing fields of a profile. It never modifies its input.
type Enricher struct {
	DegreeRules []DegreeRule
	KnownSkills []string
	// Now is used to compute project tenure.
	Now func() time.Time
}

func NewEnricher() *Enricher {
	return &Enricher{
		DegreeRules: DefaultDegreeRules,
		KnownSkills: DefaultKnownSkills,
		Now:         time.Now,
	}
}

// Enrich returns a new profile with degrees inferred, experience adjusted by
// project tenure and skills unioned with the skills found in the profile text.
func (e *Enricher) Enrich(raw *Profile) *Enriched {
	p := raw.Clone()

	p.Education = e.InferDegree(p)
	p.Experience = e.DeriveExperience(p)
	p.Skills = unionSkills(p.Skills, e.ExtractSkills(p))

	return &Enriched{Profile: *p}
}

// InferDegree returns a copy of the education entries where missing degrees are
// filled from the headline and description.
func (e *Enricher) InferDegree(p *Profile) []Education {
	if len(p.Education) == 0 {
		return p.Education
	}

	text := strings.ToLower(p.Headline + " " + p.Description)
	education := make([]Education, len(p.Education))
	copy(education, p.Education)

	for i := range education {
		if education[i].Degree != "" {
			continue
		}
		for _, rule := range e.DegreeRules {
			if strings.Contains(text, rule.Keyword) {
				education[i].Degree = rule.Degree
				break
			}
		}
	}

	return education
}

// DeriveExperience returns experience entries adjusted by the years elapsed since
// the start of every dated project. Without experience entries a single entry
// holding the project tenure is returned; otherwise the tenure is added to the
// first entry only.
func (e *Enricher) DeriveExperience(p *Profile) []Experience {
	currentYear := e.now().Year()

	total := 0.0
	for _, proj := range p.Projects {
		start, ok := startYear(proj.Date.StartDate)
		if !ok {
			continue
		}
		total += float64(max(currentYear-start, 0))
	}

	if len(p.Experience) == 0 {
		return []Experience{{DurationYears: total}}
	}

	experience := make([]Experience, len(p.Experience))
	copy(experience, p.Experience)
	experience[0].DurationYears += total

	return experience
}

// ExtractSkills derives skill names from the free text of the profile.
func (e *Enricher) ExtractSkills(p *Profile) []Skill {
	text := strings.ToLower(profileText(p))

	seen := make(map[string]struct{})
	skills := make([]Skill, 0)
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		skills = append(skills, Skill{Name: name})
	}

	for _, separator := range []*regexp.Regexp{pipeSeparator, commaSeparator} {
		for _, token := range separator.Split(text, -1) {
			clean := strings.TrimSpace(nonWord.ReplaceAllString(strings.TrimSpace(token), ""))
			if len(clean) < minSkillLength {
				continue
			}
			if _, stop := stopwords[clean]; stop {
				continue
			}
			add(clean)
		}
	}

	for _, known := range e.KnownSkills {
		if strings.Contains(text, known) {
			add(known)
		}
	}

	return skills
}

// TotalExperience sums the duration of every experience entry.
func (p *Profile) TotalExperience() float64 {
	total := 0.0
	for _, exp := range p.Experience {
		total += exp.DurationYears
	}
	return total
}

func (e *Enricher) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func profileText(p *Profile) string {
	projects := make([]string, 0, len(p.Projects))
	for _, proj := range p.Projects {
		if proj.Description != "" {
			projects = append(projects, proj.Description)
			continue
		}
		projects = append(projects, proj.Name)
	}

	return strings.Join([]string{p.Headline, p.Description, strings.Join(projects, " ")}, " ")
}

func startYear(date string) (int, bool) {
	match := yearPattern.FindString(date)
	if match == "" {
		return 0, false
	}

	year, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}

	return year, true
}

// unionSkills keeps the existing skills first and appends derived ones not
// already present, comparing names case-insensitively.
func unionSkills(existing, derived []Skill) []Skill {
	seen := make(map[string]struct{}, len(existing)+len(derived))
	skills := make([]Skill, 0, len(existing)+len(derived))

	for _, group := range [][]Skill{existing, derived} {
		for _, skill := range group {
			key := strings.ToLower(strings.TrimSpace(skill.Name))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			skills = append(skills, skill)
		}
	}

	return skills
}
