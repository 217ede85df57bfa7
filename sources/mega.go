package sources

import "time"

var megaProfile = Profile{
	Store:       "Mega",
	BaseURL:     "https://www.mega.pk",
	SearchPath:  "/search/%s",
	PathKeyword: true,
	Delay:       2 * time.Second,

	Card:  ".product-card, .product-item, .pro-box, .product",
	Name:  ".product-title, .pro-title, h3, h4, .name",
	Price: ".product-price, .pro-price, .price",
	Link:  "a",
	Image: "img",

	ProductPrice: ".product-price, .price, .pro-price",
	OutOfStock:   ".out-of-stock, .sold-out, .unavailable",
}

func init() {
	Register("mega", func(d Deps) (Adapter, error) {
		return newHTMLSource(megaProfile, d)
	})
}
