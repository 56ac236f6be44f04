package model

import (
	"net/url"
	"strings"
)

// PageType represents a classified page category.
type PageType string

const (
	PageTypeHomepage     PageType = "homepage"
	PageTypeAbout        PageType = "about"
	PageTypeServices     PageType = "services"
	PageTypeProjects     PageType = "projects"
	PageTypeTestimonials PageType = "testimonials"
	PageTypeCareers      PageType = "careers"
	PageTypeOther        PageType = "other"
)

// AllPageTypes returns all defined page types.
func AllPageTypes() []PageType {
	return []PageType{
		PageTypeHomepage,
		PageTypeAbout,
		PageTypeServices,
		PageTypeProjects,
		PageTypeTestimonials,
		PageTypeCareers,
		PageTypeOther,
	}
}

// pathKeywords maps URL path fragments to page types, checked in order.
var pathKeywords = []struct {
	keyword  string
	pageType PageType
}{
	{"about", PageTypeAbout},
	{"our-story", PageTypeAbout},
	{"who-we-are", PageTypeAbout},
	{"history", PageTypeAbout},
	{"service", PageTypeServices},
	{"what-we-do", PageTypeServices},
	{"solutions", PageTypeServices},
	{"project", PageTypeProjects},
	{"portfolio", PageTypeProjects},
	{"case-stud", PageTypeProjects},
	{"our-work", PageTypeProjects},
	{"gallery", PageTypeProjects},
	{"clients", PageTypeProjects},
	{"testimonial", PageTypeTestimonials},
	{"review", PageTypeTestimonials},
	{"career", PageTypeCareers},
	{"jobs", PageTypeCareers},
	{"join", PageTypeCareers},
	{"hiring", PageTypeCareers},
}

// ClassifyPath guesses a page type from a URL's path. Unparseable URLs are
// PageTypeOther.
func ClassifyPath(rawURL string) PageType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageTypeOther
	}
	p := strings.ToLower(strings.Trim(u.Path, "/"))
	if p == "" || p == "index.html" || p == "home" {
		return PageTypeHomepage
	}
	for _, kw := range pathKeywords {
		if strings.Contains(p, kw.keyword) {
			return kw.pageType
		}
	}
	return PageTypeOther
}

// Page is one fetched web page. HTML is set only when the scraper saw raw
// markup; Markdown always holds readable text.
type Page struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Markdown   string   `json:"markdown"`
	HTML       string   `json:"html,omitempty"`
	StatusCode int      `json:"status_code"`
	Type       PageType `json:"type,omitempty"`
}
