package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/parser"
	"github.com/aluiziolira/go-scrape-prices/scraper"
)

// Daraz exposes its catalog as JSON when ajax=true; the card selectors are
// only used when that route answers with markup instead.
var darazProfile = Profile{
	Store:      "Daraz",
	BaseURL:    "https://www.daraz.pk",
	SearchPath: "/catalog/?ajax=true&q=%s",
	Delay:      2500 * time.Millisecond,

	Card:          `[data-qa-locator="product-item"], .gridItem, .product-card`,
	Name:          `[class*="title"] a, .title, .product-title`,
	Price:         `[class*="price"] span, .price, .current-price`,
	OriginalPrice: `[class*="origPrice"], del, .old-price`,
	Link:          "a",
	Image:         "img",
	Rating:        ".rating, .stars",
	RatingMode:    RatingText,

	ProductPrice: `.pdp-price, [class*="pdp-price"]`,
	OutOfStock:   `[class*="out-of-stock"], [class*="sold-out"]`,
}

type daraz struct {
	*htmlSource
}

func init() {
	Register("daraz", func(d Deps) (Adapter, error) {
		src, err := newHTMLSource(darazProfile, d)
		if err != nil {
			return nil, err
		}
		return &daraz{htmlSource: src}, nil
	})
}

type darazPayload struct {
	Mods struct {
		ListItems []json.RawMessage `json:"listItems"`
	} `json:"mods"`
}

type darazItem struct {
	Name          string     `json:"name"`
	Price         flexString `json:"price"`
	OriginalPrice flexString `json:"originalPrice"`
	ItemURL       string     `json:"itemUrl"`
	ProductURL    string     `json:"productUrl"`
	Image         string     `json:"image"`
	RatingScore   flexString `json:"ratingScore"`
	Review        flexString `json:"review"`
	InStock       *bool      `json:"inStock"`
}

// flexString accepts both JSON strings and numbers; the API mixes them.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (d *daraz) Search(ctx context.Context, keyword string) ([]models.Listing, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%s: keyword is empty", d.profile.Store)
	}
	body, err := d.fetcher.Fetch(ctx, d.searchURL(keyword), scraper.WithAccept(scraper.AcceptJSON))
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", d.profile.Store, err)
	}

	var payload darazPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Debug("catalog api did not return JSON, parsing markup",
			slog.String("store", d.profile.Store),
			slog.Any("error", err),
		)
		return d.parseSearch(body)
	}
	return d.parseItems(payload.Mods.ListItems), nil
}

func (d *daraz) parseItems(items []json.RawMessage) []models.Listing {
	listings := make([]models.Listing, 0, len(items))
	for i, raw := range items {
		listing, err := d.parseItem(raw)
		if err != nil {
			d.metrics.IncSkipped(d.profile.Store)
			slog.Debug("skipping item",
				slog.String("store", d.profile.Store),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			continue
		}
		listings = append(listings, listing)
	}
	d.metrics.AddItems(d.profile.Store, len(listings))
	return listings
}

func (d *daraz) parseItem(raw json.RawMessage) (models.Listing, error) {
	var item darazItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return models.Listing{}, err
	}

	name := parser.NormalizeName(item.Name)
	if name == "" {
		return models.Listing{}, errMissingName
	}
	if strings.TrimSpace(string(item.Price)) == "" {
		return models.Listing{}, fmt.Errorf("%q: %w", name, errMissingPrice)
	}

	link := item.ItemURL
	if link == "" {
		link = item.ProductURL
	}
	listing := models.Listing{
		Name:         name,
		Price:        parser.ParsePrice(string(item.Price)),
		URL:          parser.AbsoluteURL(d.baseURL, link),
		ImageURL:     strings.TrimSpace(item.Image),
		Rating:       parser.ParseRating(string(item.RatingScore)),
		ReviewsCount: parser.ParseCount(string(item.Review)),
		Source:       d.profile.Store,
		InStock:      item.InStock == nil || *item.InStock,
	}
	listing.SetOriginalPrice(parser.ParsePrice(string(item.OriginalPrice)))
	return listing, nil
}
