// Package profile holds the profile record returned by the lookup service and the
// repair passes applied to it before scoring.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/adherence-scorer/internal/utils"
)

// Profile is a semi-structured professional profile. Any field may be absent.
// Keys the scorer does not know about are kept in Extra so they still take part
// in keyword matching over the serialized profile.
type Profile struct {
	Name        string         `mapstructure:"name" json:"name,omitempty"`
	Headline    string         `mapstructure:"headline" json:"headline,omitempty"`
	Description string         `mapstructure:"description" json:"description,omitempty"`
	Education   []Education    `mapstructure:"education" json:"education,omitempty"`
	Skills      []Skill        `mapstructure:"skills" json:"skills,omitempty"`
	Experience  []Experience   `mapstructure:"experience" json:"experience,omitempty"`
	Projects    []Project      `mapstructure:"projects" json:"projects,omitempty"`
	Extra       map[string]any `mapstructure:",remain" json:"-"`
}

type Education struct {
	Degree string         `mapstructure:"degree" json:"degree,omitempty"`
	Extra  map[string]any `mapstructure:",remain" json:"-"`
}

type Skill struct {
	Name string `mapstructure:"name" json:"name"`
}

type Experience struct {
	DurationYears float64        `mapstructure:"duration_years" json:"duration_years"`
	Extra         map[string]any `mapstructure:",remain" json:"-"`
}

type Project struct {
	Name        string         `mapstructure:"name" json:"name,omitempty"`
	Description string         `mapstructure:"description" json:"description,omitempty"`
	Date        ProjectDate    `mapstructure:"date" json:"date"`
	Extra       map[string]any `mapstructure:",remain" json:"-"`
}

type ProjectDate struct {
	StartDate string `mapstructure:"start_date" json:"start_date,omitempty"`
	EndDate   string `mapstructure:"end_date" json:"end_date,omitempty"`
}

// Enriched is a profile after the repair passes. It is always a separate copy of
// the profile it was built from.
type Enriched struct {
	Profile
}

// Decode converts the loosely typed data object of a ready lookup response into a Profile.
func Decode(data map[string]any) (*Profile, error) {
	var p Profile

	cfg := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			shorthandHook,
			mismatchHook,
			lenientFloatHook,
		),
		WeaklyTypedInput: true,
		Result:           &p,
		TagName:          "mapstructure",
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode profile data: %w", err)
	}

	return &p, nil
}

// lenientFloatHook accepts values like "2 years" for numeric fields instead of
// failing the whole profile.
func lenientFloatHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Float64 || from.Kind() != reflect.String {
		return data, nil
	}

	value, _ := utils.ParseLeadingFloat(reflect.ValueOf(data).String())
	return value, nil
}

var (
	skillType       = reflect.TypeOf(Skill{})
	educationType   = reflect.TypeOf(Education{})
	experienceType  = reflect.TypeOf(Experience{})
	projectType     = reflect.TypeOf(Project{})
	projectDateType = reflect.TypeOf(ProjectDate{})
)

// shorthandHook expands scalar entries into the object they abbreviate, e.g.
// skills: ["Go"] or date: "2021".
func shorthandHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.Map || from.Kind() == reflect.Slice {
		return data, nil
	}

	switch to {
	case skillType:
		return map[string]any{"name": data}, nil
	case educationType:
		return map[string]any{"degree": data}, nil
	case experienceType:
		return map[string]any{"duration_years": data}, nil
	case projectType:
		return map[string]any{"name": data}, nil
	case projectDateType:
		return map[string]any{"start_date": data}, nil
	}

	return data, nil
}

// mismatchHook keeps a single odd value from failing the whole profile. Objects
// and lists found where text is expected are kept as their JSON text, anything
// else that does not fit is dropped.
func mismatchHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	composite := from.Kind() == reflect.Map || from.Kind() == reflect.Slice

	switch to.Kind() {
	case reflect.String:
		if composite {
			text, err := marshal(data)
			if err != nil {
				return "", nil
			}
			return string(text), nil
		}
	case reflect.Float64:
		if composite {
			return 0.0, nil
		}
	case reflect.Struct:
		if from.Kind() != reflect.Map {
			return map[string]any{}, nil
		}
	case reflect.Map:
		if from.Kind() != reflect.Map {
			return map[string]any{}, nil
		}
	}

	return data, nil
}

// Clone returns a copy that shares no slices with p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return &Profile{}
	}

	clone := *p
	clone.Education = make([]Education, len(p.Education))
	for i, edu := range p.Education {
		edu.Extra = maps.Clone(edu.Extra)
		clone.Education[i] = edu
	}
	clone.Skills = slices.Clone(p.Skills)
	clone.Experience = make([]Experience, len(p.Experience))
	for i, exp := range p.Experience {
		exp.Extra = maps.Clone(exp.Extra)
		clone.Experience[i] = exp
	}
	clone.Projects = make([]Project, len(p.Projects))
	for i, proj := range p.Projects {
		proj.Extra = maps.Clone(proj.Extra)
		clone.Projects[i] = proj
	}
	clone.Extra = maps.Clone(p.Extra)

	return &clone
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	return marshalWithExtra(plain(p), p.Extra)
}

func (e Education) MarshalJSON() ([]byte, error) {
	type plain Education
	return marshalWithExtra(plain(e), e.Extra)
}

func (e Experience) MarshalJSON() ([]byte, error) {
	type plain Experience
	return marshalWithExtra(plain(e), e.Extra)
}

func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return marshalWithExtra(plain(p), p.Extra)
}

// Text returns the profile serialized as JSON with &, < and > left as they are.
func (p *Profile) Text() (string, error) {
	data, err := marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshal is json.Marshal without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// marshalWithExtra serializes v and folds the extra keys into the same object.
// Known fields win over extra keys with the same name.
func marshalWithExtra(v any, extra map[string]any) ([]byte, error) {
	known, err := marshal(v)
	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return known, nil
	}

	merged := make(map[string]any, len(extra))
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}

	for key, value := range extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}

	return marshal(merged)
}
