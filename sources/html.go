package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/parser"
	"github.com/aluiziolira/go-scrape-prices/scraper"
)

// RatingMode selects how a card's rating element is read.
type RatingMode int

const (
	RatingNone  RatingMode = iota
	RatingText             // first number in the element text
	RatingStars            // count of StarSelector matches inside the element
	RatingWidth            // CSS width percentage in the style attribute
)

// Profile is the per-store extraction data for an HTML storefront.
type Profile struct {
	Store   string
	BaseURL string
	// SearchPath is appended to BaseURL; %s receives the escaped keyword.
	SearchPath string
	// PathKeyword escapes the keyword as a path segment instead of a query value.
	PathKeyword bool
	Delay       time.Duration

	Card          string
	Name          string
	Price         string
	OriginalPrice string
	Link          string
	Image         string
	ImageAttrs    []string
	Rating        string
	RatingMode    RatingMode
	StarSelector  string

	ProductPrice string
	OutOfStock   string
}

type htmlSource struct {
	profile Profile
	baseURL string
	fetcher *scraper.Fetcher
	metrics *scraper.Metrics
}

// NewHTMLSource builds an adapter that extracts listings from p's markup.
func NewHTMLSource(p Profile, d Deps) (Adapter, error) {
	return newHTMLSource(p, d)
}

func newHTMLSource(p Profile, d Deps) (*htmlSource, error) {
	if p.Store == "" || p.SearchPath == "" {
		return nil, fmt.Errorf("profile requires a store and a search path")
	}
	base := p.BaseURL
	if d.BaseURL != "" {
		base = d.BaseURL
	}
	base = strings.TrimRight(base, "/")

	f, err := newFetcher(p.Store, p.Delay, d)
	if err != nil {
		return nil, err
	}
	if len(p.ImageAttrs) == 0 {
		p.ImageAttrs = []string{"src", "data-src"}
	}
	return &htmlSource{profile: p, baseURL: base, fetcher: f, metrics: d.Metrics}, nil
}

func (s *htmlSource) Name() string {
	return s.profile.Store
}

func (s *htmlSource) searchURL(keyword string) string {
	// Spaces go out as %20 in both positions; literal '+' is already %2B.
	escaped := strings.ReplaceAll(url.QueryEscape(keyword), "+", "%20")
	if s.profile.PathKeyword {
		escaped = url.PathEscape(keyword)
	}
	return s.baseURL + fmt.Sprintf(s.profile.SearchPath, escaped)
}

func (s *htmlSource) Search(ctx context.Context, keyword string) ([]models.Listing, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%s: keyword is empty", s.profile.Store)
	}
	body, err := s.fetcher.Fetch(ctx, s.searchURL(keyword))
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", s.profile.Store, err)
	}
	return s.parseSearch(body)
}

func (s *htmlSource) parseSearch(body []byte) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s results: %w", s.profile.Store, err)
	}

	listings := make([]models.Listing, 0)
	doc.Find(s.profile.Card).Each(func(i int, card *goquery.Selection) {
		listing, err := s.extractCard(card)
		if err != nil {
			s.metrics.IncSkipped(s.profile.Store)
			slog.Debug("skipping card",
				slog.String("store", s.profile.Store),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			return
		}
		listings = append(listings, listing)
	})
	s.metrics.AddItems(s.profile.Store, len(listings))
	return listings, nil
}

func (s *htmlSource) extractCard(card *goquery.Selection) (models.Listing, error) {
	p := s.profile

	name := parser.NormalizeName(card.Find(p.Name).First().Text())
	if name == "" {
		return models.Listing{}, errMissingName
	}
	priceEl := card.Find(p.Price).First()
	if priceEl.Length() == 0 {
		return models.Listing{}, fmt.Errorf("%q: %w", name, errMissingPrice)
	}

	listing := models.Listing{
		Name:    name,
		Price:   parser.ParsePrice(priceEl.Text()),
		Source:  p.Store,
		InStock: true,
	}
	if p.OriginalPrice != "" {
		if el := card.Find(p.OriginalPrice).First(); el.Length() > 0 {
			listing.SetOriginalPrice(parser.ParsePrice(el.Text()))
		}
	}
	if href, ok := card.Find(p.Link).First().Attr("href"); ok {
		listing.URL = parser.AbsoluteURL(s.baseURL, href)
	}
	listing.ImageURL = firstAttr(card.Find(p.Image).First(), p.ImageAttrs)
	listing.Rating = s.rating(card)
	return listing, nil
}

func (s *htmlSource) rating(card *goquery.Selection) float64 {
	p := s.profile
	if p.RatingMode == RatingNone || p.Rating == "" {
		return 0
	}
	el := card.Find(p.Rating).First()
	if el.Length() == 0 {
		return 0
	}
	switch p.RatingMode {
	case RatingText:
		return parser.ParseRating(el.Text())
	case RatingStars:
		return parser.ClampRating(float64(el.Find(p.StarSelector).Length()))
	case RatingWidth:
		style, _ := el.Attr("style")
		return parser.RatingFromWidth(style)
	}
	return 0
}

func (s *htmlSource) FetchProductPage(ctx context.Context, rawURL string) (models.ProductPage, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return models.ProductPage{}, fmt.Errorf("%s: product url is empty", s.profile.Store)
	}
	body, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return models.ProductPage{}, fmt.Errorf("%s product page: %w", s.profile.Store, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.ProductPage{}, fmt.Errorf("parse %s product page: %w", s.profile.Store, err)
	}

	page := models.ProductPage{InStock: true}
	if el := doc.Find(s.profile.ProductPrice).First(); el.Length() > 0 {
		page.Price = parser.ParsePrice(el.Text())
	}
	if s.profile.OutOfStock != "" && doc.Find(s.profile.OutOfStock).Length() > 0 {
		page.InStock = false
	}
	return page, nil
}

func firstAttr(sel *goquery.Selection, attrs []string) string {
	if sel.Length() == 0 {
		return ""
	}
	for _, attr := range attrs {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
