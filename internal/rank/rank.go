// Package rank orders validated artifacts by type priority, then score.
package rank

import (
	"sort"

	"github.com/sells-group/openers/internal/model"
)

// Rank returns a copy of arts sorted by type priority, then by descending
// score. Ties keep their input order. Unknown types sort last.
func Rank(arts []model.Artifact) []model.Artifact {
	out := make([]model.Artifact, len(arts))
	copy(out, arts)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := model.PriorityIndex(out[i].Type), model.PriorityIndex(out[j].Type)
		if pi != pj {
			return pi < pj
		}
		return out[i].Score > out[j].Score
	})
	return out
}

// SelectWithFallback returns the top-ranked artifact, or the canonical
// fallback when arts is empty. Lower tiers are never compared by score
// against higher ones.
func SelectWithFallback(arts []model.Artifact) model.Artifact {
	if len(arts) == 0 {
		return model.FallbackArtifact()
	}
	return Rank(arts)[0]
}

// ConfidenceTier returns the tier of a's type.
func ConfidenceTier(a model.Artifact) model.Tier {
	return model.TierOf(a.Type)
}
