package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"bikestore/internal/models"
)

const ProductsPerPage = 12

const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
)

type Filters struct {
	Page       int                 `json:"page"`
	Category   string              `json:"category,omitempty"`
	MinPrice   *float64            `json:"minPrice,omitempty"`
	MaxPrice   *float64            `json:"maxPrice,omitempty"`
	Search     string              `json:"search,omitempty"`
	Brand      string              `json:"brand,omitempty"`
	Sort       string              `json:"sort,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type ProductList struct {
	Products    []models.Product `json:"products"`
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"totalPages"`
	HasNextPage bool             `json:"hasNextPage"`
	HasPrevPage bool             `json:"hasPrevPage"`
}

func (f Filters) normalized() Filters {
	if f.Page < 1 {
		f.Page = 1
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Search = strings.TrimSpace(f.Search)
	f.Brand = strings.TrimSpace(f.Brand)
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	return f
}

// cacheKey is deterministic for equal filters regardless of map order.
func (f Filters) cacheKey() string {
	f = f.normalized()
	var b strings.Builder
	fmt.Fprintf(&b, "products:p=%d|c=%s|s=%s|b=%s|o=%s", f.Page, f.Category, f.Search, f.Brand, f.Sort)
	if f.MinPrice != nil {
		fmt.Fprintf(&b, "|min=%g", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		fmt.Fprintf(&b, "|max=%g", *f.MaxPrice)
	}

	slugs := make([]string, 0, len(f.Attributes))
	for slug := range f.Attributes {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	for _, slug := range slugs {
		values := append([]string(nil), f.Attributes[slug]...)
		sort.Strings(values)
		fmt.Fprintf(&b, "|a:%s=%s", slug, strings.Join(values, ","))
	}
	return b.String()
}

func buildProductFilter(f Filters) bson.M {
	f = f.normalized()
	filter := bson.M{"status": models.ProductStatusPublished}

	if f.Category != "" {
		filter["categories"] = bson.M{"$in": []string{f.Category}}
	}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		filter["$or"] = []bson.M{
			{"name": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	if f.Brand != "" {
		filter["brand"] = f.Brand
	}

	slugs := make([]string, 0, len(f.Attributes))
	for slug, values := range f.Attributes {
		if len(values) > 0 {
			slugs = append(slugs, slug)
		}
	}
	sort.Strings(slugs)

	and := make([]bson.M, 0, len(slugs))
	for _, slug := range slugs {
		and = append(and, bson.M{
			"attributes": bson.M{"$elemMatch": bson.M{
				"attribute": slug,
				"values":    bson.M{"$in": f.Attributes[slug]},
			}},
		})
	}
	if len(and) > 0 {
		filter["$and"] = and
	}

	return filter
}

func sortFor(sortKey string) bson.D {
	switch sortKey {
	case SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}}
	case SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}}
	case SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}}
	case SortNameAsc:
		return bson.D{{Key: "name", Value: 1}}
	case SortNameDesc:
		return bson.D{{Key: "name", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}
