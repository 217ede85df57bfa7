// Package ranking orders listings by a composite of rating confidence, price,
// popularity, store reliability and discount.
package ranking

import (
	"math"
	"sort"

	"github.com/aluiziolira/go-scrape-prices/models"
)

// Weights of each score component. They sum to 1.
const (
	WeightRating      = 0.30
	WeightPrice       = 0.30
	WeightPopularity  = 0.20
	WeightReliability = 0.10
	WeightDiscount    = 0.10
)

// Options tune the ranking.
type Options struct {
	// PriorWeight is the number of reviews the global average rating counts for.
	PriorWeight        float64
	Reliability        map[string]float64
	DefaultReliability float64
}

// DefaultOptions returns the store reliability table used for live results.
func DefaultOptions() Options {
	return Options{
		PriorWeight: 25,
		Reliability: map[string]float64{
			"Daraz":    0.85,
			"Telemart": 0.80,
			"Shophive": 0.75,
			"Mega":     0.70,
			"PriceOye": 0.80,
		},
		DefaultReliability: 0.70,
	}
}

// Rank returns a copy of listings sorted by descending score. Ties keep input
// order.
func Rank(listings []models.Listing, opts Options) []models.Listing {
	out := make([]models.Listing, len(listings))
	copy(out, listings)
	if len(out) < 2 {
		return out
	}

	scores := Scores(out, opts)
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	ranked := make([]models.Listing, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}

// Scores computes the composite score of every listing relative to the set.
func Scores(listings []models.Listing, opts Options) []float64 {
	scores := make([]float64, len(listings))
	if len(listings) == 0 {
		return scores
	}

	var ratingSum float64
	minPrice, maxPrice := math.MaxInt, 0
	maxReviews := 1
	for _, l := range listings {
		ratingSum += l.Rating
		if l.Price > 0 {
			minPrice = min(minPrice, l.Price)
			maxPrice = max(maxPrice, l.Price)
		}
		maxReviews = max(maxReviews, l.ReviewsCount)
	}
	globalAvg := ratingSum / float64(len(listings))
	priceRange := float64(maxPrice - minPrice)
	if priceRange <= 0 {
		priceRange = 1
	}

	for i, l := range listings {
		reviews := float64(l.ReviewsCount)
		bayesian := (opts.PriorWeight*globalAvg + reviews*l.Rating) / (opts.PriorWeight + reviews)
		if opts.PriorWeight+reviews == 0 {
			bayesian = l.Rating
		}
		ratingScore := clamp01((bayesian - 1) / 4)

		var priceScore float64
		if l.Price > 0 {
			priceScore = 1 - float64(l.Price-minPrice)/priceRange
		}

		var popularity float64
		if maxReviews > 1 {
			popularity = math.Log1p(reviews) / math.Log1p(float64(maxReviews))
		}

		reliability, ok := opts.Reliability[l.Source]
		if !ok {
			reliability = opts.DefaultReliability
		}

		var discount float64
		if l.OriginalPrice != nil && *l.OriginalPrice > l.Price {
			discount = float64(*l.OriginalPrice-l.Price) / float64(*l.OriginalPrice)
		}

		scores[i] = WeightRating*ratingScore +
			WeightPrice*priceScore +
			WeightPopularity*popularity +
			WeightReliability*reliability +
			WeightDiscount*discount
	}
	return scores
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
