package validate

import (
	"strings"

	"github.com/sells-group/openers/internal/model"
)

// ArtifactValidator gates individual candidates before ranking. It has no
// state; the zero value is ready to use.
type ArtifactValidator struct{}

// Validate rejects artifacts carrying timing or hype words, or text too
// generic to identify a company. The fallback artifact is always valid.
func (ArtifactValidator) Validate(a model.Artifact) model.ValidationResult {
	if a.IsFallback() {
		return model.ValidationResult{IsValid: true}
	}

	var errs []string
	if strings.TrimSpace(a.Text) == "" {
		errs = append(errs, "empty artifact text")
	}
	for _, w := range bannedTiming(a.Text) {
		errs = append(errs, "banned timing word "+quote(w))
	}
	for _, w := range bannedHype(a.Text) {
		errs = append(errs, "banned hype word "+quote(w))
	}
	if reason := genericReason(a.Text); reason != "" {
		errs = append(errs, reason)
	}
	return model.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// Filter returns the artifacts that pass Validate, preserving order.
func (v ArtifactValidator) Filter(arts []model.Artifact) []model.Artifact {
	out := make([]model.Artifact, 0, len(arts))
	for _, a := range arts {
		if v.Validate(a).IsValid {
			out = append(out, a)
		}
	}
	return out
}
