package sources

import "time"

// Shophive runs Magento; ratings are rendered as a width percentage.
var shophiveProfile = Profile{
	Store:      "Shophive",
	BaseURL:    "https://www.shophive.com",
	SearchPath: "/catalogsearch/result/?q=%s",
	Delay:      2 * time.Second,

	Card:          ".product-item, .item.product, .product-card",
	Name:          ".product-item-link, .product-name, .product-title",
	Price:         `[data-price-type="finalPrice"], .special-price .price, .price`,
	OriginalPrice: `.old-price .price, [data-price-type="oldPrice"]`,
	Link:          "a.product-item-link, a",
	Image:         "img.product-image-photo, img",
	ImageAttrs:    []string{"data-src", "data-original", "src"},
	Rating:        ".rating-result",
	RatingMode:    RatingWidth,

	ProductPrice: `[data-price-type="finalPrice"], .price`,
	OutOfStock:   ".stock.unavailable, .out-of-stock",
}

func init() {
	Register("shophive", func(d Deps) (Adapter, error) {
		return newHTMLSource(shophiveProfile, d)
	})
}
