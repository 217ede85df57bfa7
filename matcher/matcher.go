// Package matcher clusters listings from different stores that refer to the
// same product, using name similarity only.
package matcher

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/aluiziolira/go-scrape-prices/models"
)

// DefaultThreshold is the similarity a listing needs to join an existing group.
const DefaultThreshold = 0.75

// Similarity scores two names in [0, 1] after case folding and trimming.
// The score is the Ratcliff/Obershelp ratio computed over runes.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(fold(a), fold(b)).Ratio()
}

func fold(name string) []string {
	runes := []rune(strings.ToLower(strings.TrimSpace(name)))
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// Group assigns listings to groups in a single pass over input order. Each
// listing joins the first group, in creation order, whose representative name
// scores at least threshold; otherwise it starts a new group. The first
// listing of a group fixes its name. A non-positive threshold selects
// DefaultThreshold.
func Group(listings []models.Listing, threshold float64) []models.ProductGroup {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	groups := make([]models.ProductGroup, 0)
	// One matcher per group with the representative as the second sequence,
	// so its index is built once.
	reps := make([]*difflib.SequenceMatcher, 0)

	for _, listing := range listings {
		name := fold(listing.Name)

		match := -1
		for i, m := range reps {
			m.SetSeq1(name)
			if m.Ratio() >= threshold {
				match = i
				break
			}
		}

		if match < 0 {
			groups = append(groups, models.ProductGroup{
				Name:       listing.Name,
				BestPrice:  listing.Price,
				BestSource: listing.Source,
				ImageURL:   listing.ImageURL,
				Category:   listing.Category,
				Listings:   []models.Listing{listing},
			})
			reps = append(reps, difflib.NewMatcher(nil, name))
			continue
		}

		g := &groups[match]
		g.Listings = append(g.Listings, listing)
		if listing.Price < g.BestPrice {
			g.BestPrice = listing.Price
			g.BestSource = listing.Source
		}
	}
	return groups
}

// Flatten returns every listing of groups in group order.
func Flatten(groups []models.ProductGroup) []models.Listing {
	n := 0
	for _, g := range groups {
		n += len(g.Listings)
	}
	out := make([]models.Listing, 0, n)
	for _, g := range groups {
		out = append(out, g.Listings...)
	}
	return out
}
