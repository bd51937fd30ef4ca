package magicalapi

import (
	"context"

	"github.com/spigell/adherence-scorer/internal/profile"
)

// SampleProfile is served by StaticResolver in mock mode.
var SampleProfile = profile.Profile{
	Name:        "Nicolly Munhoz",
	Headline:    "Web Developer | React | Java, C++ | Python | TypeScript | JavaScript | Flutter",
	Description: "Estudante de Engenharia de Software...",
	Education:   []profile.Education{{Degree: "Bacharel em Engenharia de Software"}},
	Skills:      []profile.Skill{{Name: "React"}, {Name: "Java"}, {Name: "Python"}},
	Experience:  []profile.Experience{{DurationYears: 2}},
}

// StaticResolver answers every slug with the same profile without calling the
// lookup service. It is used for dry runs.
type StaticResolver struct {
	Profile profile.Profile
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{Profile: SampleProfile}
}

func (r *StaticResolver) Resolve(ctx context.Context, slug string) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := r.Profile.Clone()
	if p.Name == "" {
		p.Name = slug
	}

	return p, nil
}
