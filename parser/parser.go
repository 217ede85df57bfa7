// Package parser normalizes raw scraped fields into canonical listing values.
package parser

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-prices/models"
)

const maxRating = 5.0

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	widthPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
)

// ValidateListing ensures the extractor captured the required fields.
func ValidateListing(l *models.Listing) error {
	if l == nil {
		return fmt.Errorf("listing is nil")
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("listing missing name")
	}
	if l.Price < 0 {
		return fmt.Errorf("listing %q has negative price", l.Name)
	}
	if strings.TrimSpace(l.Source) == "" {
		return fmt.Errorf("listing %q missing store", l.Name)
	}
	return nil
}

// NormalizeListing trims text fields and clamps numeric fields into range.
func NormalizeListing(l *models.Listing) {
	l.Name = NormalizeName(l.Name)
	l.URL = strings.TrimSpace(l.URL)
	l.ImageURL = strings.TrimSpace(l.ImageURL)
	l.Rating = ClampRating(l.Rating)
	if l.ReviewsCount < 0 {
		l.ReviewsCount = 0
	}
	if l.Price < 0 {
		l.Price = 0
	}
	if l.OriginalPrice != nil {
		l.SetOriginalPrice(*l.OriginalPrice)
	}
}

// NormalizeName collapses internal whitespace and trims the ends.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ClampRating bounds a rating to [0, 5] with one decimal place.
func ClampRating(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > maxRating {
		r = maxRating
	}
	return math.Round(r*10) / 10
}

// ParseRating returns the first number found in text, or 0.
func ParseRating(text string) float64 {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return ClampRating(v)
}

// RatingFromWidth converts a CSS width percentage ("width: 80%") to stars.
func RatingFromWidth(style string) float64 {
	m := widthPattern.FindStringSubmatch(style)
	if len(m) < 2 {
		return 0
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return ClampRating(pct / 20)
}

// ParseCount parses an integer count such as "(1,204)" and returns 0 on failure.
func ParseCount(text string) int {
	return ParsePrice(text)
}

// AbsoluteURL resolves href against base, handling protocol-relative links.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
