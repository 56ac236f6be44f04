package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/pkg/google"
)

// minPlaceReviews is the review count below which a rating says little.
const minPlaceReviews = 10

// PlacesProvider turns a Google Places listing into a review sentence the
// extractor recognizes as a review signal.
type PlacesProvider struct {
	client google.Client
}

// NewPlacesProvider creates a provider over client.
func NewPlacesProvider(client google.Client) *PlacesProvider {
	return &PlacesProvider{client: client}
}

// Name implements Provider.
func (p *PlacesProvider) Name() string { return "google_places" }

// Lookup implements Provider. Only a listing that matches the company's
// domain or name is used.
func (p *PlacesProvider) Lookup(ctx context.Context, q Query) (*model.Research, error) {
	query := q.Company
	if q.Location != "" {
		query += " " + q.Location
	}

	resp, err := p.client.TextSearch(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "research: google places search")
	}

	place, ok := matchPlace(resp.Places, q)
	if !ok || place.Rating <= 0 || place.UserRatingCount < minPlaceReviews {
		return nil, nil
	}

	text := fmt.Sprintf("%s holds %.1f stars across %d reviews on Google.",
		place.DisplayName.Text, place.Rating, place.UserRatingCount)
	res := &model.Research{Provider: p.Name(), Text: text}
	if place.GoogleMapsURI != "" {
		res.URL = place.GoogleMapsURI
		res.Sources = []string{place.GoogleMapsURI}
	}
	return res, nil
}

// matchPlace prefers a website match over a name match.
func matchPlace(places []google.Place, q Query) (google.Place, bool) {
	if q.Domain != "" {
		for _, pl := range places {
			if pl.WebsiteURI != "" && strings.Contains(strings.ToLower(pl.WebsiteURI), q.Domain) {
				return pl, true
			}
		}
	}
	want := normalizeName(q.Company)
	for _, pl := range places {
		got := normalizeName(pl.DisplayName.Text)
		if got == "" || want == "" {
			continue
		}
		if got == want || strings.HasPrefix(got, want+" ") || strings.HasPrefix(want, got+" ") {
			return pl, true
		}
	}
	return google.Place{}, false
}

var nameSuffixes = []string{" llc", " inc", " co", " corp", " ltd", " company"}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(",", "", ".", "", "&", "and").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	for _, suf := range nameSuffixes {
		s = strings.TrimSuffix(s, suf)
	}
	return s
}
