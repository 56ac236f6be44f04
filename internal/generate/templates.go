package generate

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/validate"
)

// Placeholder is replaced by the artifact text.
const Placeholder = "{artifact}"

// Templates maps an artifact type to its sentence templates.
type Templates map[model.ArtifactType][]string

var defaultTemplates = Templates{
	model.ArtifactClientOrProject: {
		"Saw your work with {artifact} and had to reach out.",
		"Noticed {artifact} among the projects your team has handled.",
		"Came across your project for {artifact} while looking into your work.",
	},
	model.ArtifactToolPlatform: {
		"Noticed your team runs on {artifact}.",
		"Saw that you use {artifact} to keep jobs moving.",
		"Came across your setup with {artifact} and wanted to reach out.",
	},
	model.ArtifactExactPhrase: {
		`Noticed your site says "{artifact}" and it stuck with me.`,
		`Saw "{artifact}" on your site and it stood out.`,
		`Your tagline "{artifact}" caught my eye.`,
	},
	model.ArtifactServiceProgram: {
		"Saw {artifact} mentioned on your site.",
		"Noticed {artifact} come up when looking at your team.",
		"Came across {artifact} while reading about your company.",
	},
	model.ArtifactReviewSignal: {
		"{artifact} is the kind of trust that gets earned.",
		"Saw your {artifact} and had to reach out.",
		"{artifact} says a lot about how your team works.",
	},
	model.ArtifactHiringSignal: {
		"Saw you are {artifact} at the moment.",
		"Noticed your team is {artifact}.",
		"Came across a post that you are {artifact}.",
	},
	model.ArtifactYearsInBusiness: {
		"Saw your team has been in business {artifact}.",
		"Noticed you have been serving customers {artifact}.",
		"Your crew has been at it {artifact}, which says a lot.",
	},
	model.ArtifactLocation: {
		"Saw your team is based in {artifact}.",
		"Noticed you serve customers around {artifact}.",
		"Your work around {artifact} caught my eye.",
	},
	model.ArtifactCompanyDescription: {
		"Came across {artifact} while looking into your company.",
		"Noticed {artifact} on your site and wanted to reach out.",
		"Saw {artifact} mentioned when I looked at your team.",
	},
	model.ArtifactFallback: {
		"Came across your company and wanted to reach out.",
		"Your team's work caught my attention, so I wanted to reach out.",
		"Saw your company online and wanted to connect.",
		"Noticed your team while researching local businesses.",
	},
}

// DefaultTemplates returns a copy of the built-in templates.
func DefaultTemplates() Templates {
	return defaultTemplates.clone()
}

func (t Templates) clone() Templates {
	out := make(Templates, len(t))
	for k, v := range t {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// For returns the templates for typ, or the fallback templates when typ has
// none.
func (t Templates) For(typ model.ArtifactType) []string {
	if list, ok := t[typ]; ok && len(list) > 0 {
		return list
	}
	return t[model.ArtifactFallback]
}

// Validate checks that every non-fallback template carries exactly one
// placeholder, fallback templates carry none, and no template contains a
// banned word.
func (t Templates) Validate() error {
	if len(t[model.ArtifactFallback]) == 0 {
		return eris.New("generate: no fallback templates")
	}
	for typ, list := range t {
		if typ != model.ArtifactFallback && !model.IsKnownType(typ) {
			return eris.Errorf("generate: unknown artifact type %q", typ)
		}
		for _, tmpl := range list {
			n := strings.Count(tmpl, Placeholder)
			switch {
			case typ == model.ArtifactFallback && n != 0:
				return eris.Errorf("generate: fallback template %q has a placeholder", tmpl)
			case typ != model.ArtifactFallback && n != 1:
				return eris.Errorf("generate: %s template %q needs exactly one %s", typ, tmpl, Placeholder)
			}
			if banned := validate.BannedWords(tmpl); len(banned) > 0 {
				return eris.Errorf("generate: %s template %q uses banned words %v", typ, tmpl, banned)
			}
		}
	}
	return nil
}

// LoadTemplates reads template overrides from a YAML file and merges them
// over the defaults. Types absent from the file keep their defaults.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "generate: read templates %s", path)
	}

	// The YAML has a top-level "templates" key
	var wrapper struct {
		Templates map[string][]string `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "generate: parse templates")
	}

	out := DefaultTemplates()
	for k, list := range wrapper.Templates {
		if len(list) == 0 {
			continue
		}
		out[model.ArtifactType(strings.ToUpper(strings.TrimSpace(k)))] = list
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
