package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllPageTypes(t *testing.T) {
	t.Parallel()

	types := AllPageTypes()
	assert.Len(t, types, 7)

	seen := make(map[PageType]bool)
	for _, pt := range types {
		assert.False(t, seen[pt], "duplicate page type: %s", pt)
		seen[pt] = true
	}
}

func TestClassifyPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want PageType
	}{
		{"https://peakcomfort.com", PageTypeHomepage},
		{"https://peakcomfort.com/", PageTypeHomepage},
		{"https://peakcomfort.com/home", PageTypeHomepage},
		{"https://peakcomfort.com/about-us", PageTypeAbout},
		{"https://peakcomfort.com/our-story/", PageTypeAbout},
		{"https://peakcomfort.com/services/ac-repair", PageTypeServices},
		{"https://peakcomfort.com/Portfolio", PageTypeProjects},
		{"https://peakcomfort.com/case-studies/riverside", PageTypeProjects},
		{"https://peakcomfort.com/reviews", PageTypeTestimonials},
		{"https://peakcomfort.com/careers", PageTypeCareers},
		{"https://peakcomfort.com/contact", PageTypeOther},
		{"://bad url", PageTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPath(tt.url))
		})
	}
}
