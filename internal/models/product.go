package models

import "time"

const (
	ProductStatusPublished = "published"
	ProductStatusDraft     = "draft"
)

type Product struct {
	ID          string             `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	SalePrice   float64            `bson:"salePrice,omitempty" json:"salePrice,omitempty"`
	IsOnSale    bool               `bson:"-" json:"isOnSale"`
	Brand       string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Badge       string             `bson:"badge,omitempty" json:"badge,omitempty"`
	SKU         string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Categories  StringList         `bson:"categories" json:"categories"`
	Attributes  []ProductAttribute `bson:"attributes,omitempty" json:"attributes,omitempty"`
	Images      StringList         `bson:"images" json:"images"`
	Stock       int                `bson:"stock" json:"stock"`
	InStock     bool               `bson:"-" json:"inStock"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// EffectivePrice is the price a shopper pays right now.
func (p Product) EffectivePrice() float64 {
	if p.SalePrice > 0 && p.SalePrice < p.Price {
		return p.SalePrice
	}
	return p.Price
}

func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CartProduct is the slim projection used by checkout and reconciliation.
type CartProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	Image string  `json:"image"`
}
