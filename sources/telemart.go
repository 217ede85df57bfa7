package sources

import "time"

var telemartProfile = Profile{
	Store:      "Telemart",
	BaseURL:    "https://www.telemart.pk",
	SearchPath: "/search?q=%s",
	Delay:      2 * time.Second,

	Card:          ".product-card, .product-item, .product-box",
	Name:          ".product-title, .product-name, h3, h4",
	Price:         ".product-price, .price, .current-price",
	OriginalPrice: ".old-price, .original-price, .was-price",
	Link:          "a",
	Image:         "img",
	Rating:        ".rating, .stars",
	RatingMode:    RatingStars,
	StarSelector:  ".star-filled, .fa-star",

	ProductPrice: ".product-price, .price, .current-price",
	OutOfStock:   ".out-of-stock, .sold-out",
}

func init() {
	Register("telemart", func(d Deps) (Adapter, error) {
		return newHTMLSource(telemartProfile, d)
	})
}
