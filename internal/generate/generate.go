// Package generate renders an artifact into an opening line from fixed
// per-type templates.
package generate

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/sells-group/openers/internal/model"
)

// Generator picks templates with a seeded PRNG. The same seed yields the
// same template sequence. Safe for concurrent use, though concurrent callers
// interleave the sequence; use ForKey for per-lead determinism.
type Generator struct {
	seed      uint64
	templates Templates

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Generator over the default templates.
func New(seed uint64) *Generator {
	return NewWithTemplates(seed, defaultTemplates)
}

// NewWithTemplates returns a Generator over templates. The map is copied.
func NewWithTemplates(seed uint64, templates Templates) *Generator {
	return &Generator{
		seed:      seed,
		templates: templates.clone(),
		rng:       newRand(seed),
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ForKey returns a Generator seeded from this one's seed and key, so a lead
// gets the same template regardless of batch order.
func (g *Generator) ForKey(key string) *Generator {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	seed := g.seed ^ h.Sum64()
	return &Generator{seed: seed, templates: g.templates, rng: newRand(seed)}
}

// Seed returns the generator's seed.
func (g *Generator) Seed() uint64 { return g.seed }

// Templates returns the templates for typ.
func (g *Generator) Templates(typ model.ArtifactType) []string {
	return append([]string(nil), g.templates.For(typ)...)
}

// Generate renders a with one of its type's templates. Unknown types use the
// fallback templates. The artifact text is inserted verbatim.
func (g *Generator) Generate(a model.Artifact) string {
	list := g.templates.For(a.Type)
	if len(list) == 0 {
		return ""
	}
	g.mu.Lock()
	i := g.rng.IntN(len(list))
	g.mu.Unlock()
	return Render(list[i], a)
}

// Render substitutes a's text into tmpl. Fallback artifacts leave tmpl as is.
func Render(tmpl string, a model.Artifact) string {
	if a.IsFallback() || !model.IsKnownType(a.Type) {
		return tmpl
	}
	return strings.Replace(tmpl, Placeholder, a.Text, 1)
}
