package sources

import "time"

var priceoyeProfile = Profile{
	Store:      "PriceOye",
	BaseURL:    "https://priceoye.pk",
	SearchPath: "/search?q=%s",
	Delay:      2 * time.Second,

	Card:       ".product-card, .productBox, .product-item, .p-item",
	Name:       ".product-title, .p-title, h3, h4, .name",
	Price:      ".product-price, .p-price, .price",
	Link:       "a",
	Image:      "img",
	Rating:     ".rating, .stars",
	RatingMode: RatingText,

	ProductPrice: ".product-price, .price, .p-price",
	OutOfStock:   ".out-of-stock, .sold-out",
}

func init() {
	Register("priceoye", func(d Deps) (Adapter, error) {
		return newHTMLSource(priceoyeProfile, d)
	})
}
