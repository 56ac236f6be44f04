package model

// Site is what a scraper pulled from a company website.
type Site struct {
	URL      string           `json:"url"`
	Title    string           `json:"title,omitempty"`
	Text     string           `json:"text,omitempty"` // readable body text
	Elements []ScrapedElement `json:"elements,omitempty"`
	Source   string           `json:"source,omitempty"` // scraper name
}

// Research is free text returned by a search provider for one company.
type Research struct {
	Provider string   `json:"provider"`
	Text     string   `json:"text"`
	URL      string   `json:"url,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

// Evidence groups the collaborator data gathered for one lead. Either field
// may be nil.
type Evidence struct {
	Site     *Site     `json:"site,omitempty"`
	Research *Research `json:"research,omitempty"`
}
