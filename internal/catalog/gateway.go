// Package catalog is the read side of the product store. Browsing queries go
// through a tagged cache; stock lookups used by checkout never do.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bikestore/internal/models"
)

const (
	productsTTL   = time.Hour
	categoriesTTL = 24 * time.Hour

	// loadTimeout bounds a collapsed load that no longer follows any single
	// caller's context.
	loadTimeout = 10 * time.Second
)

type Gateway struct {
	products   *mongo.Collection
	categories *mongo.Collection
	attributes *mongo.Collection
	cache      Cache
	sfg        singleflight.Group
}

func NewGateway(db *mongo.Database, cache Cache) *Gateway {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Gateway{
		products:   db.Collection("products"),
		categories: db.Collection("categories"),
		attributes: db.Collection("attributes"),
		cache:      cache,
	}
}

// GetProductsByIDs returns the published products among ids. Missing ids are
// omitted; callers compare lengths themselves.
func (g *Gateway) GetProductsByIDs(ctx context.Context, ids []string) ([]models.CartProduct, error) {
	if len(ids) == 0 {
		return []models.CartProduct{}, nil
	}

	cursor, err := g.products.Find(ctx, bson.M{
		"_id":    bson.M{"$in": ids},
		"status": models.ProductStatusPublished,
	})
	if err != nil {
		return nil, fmt.Errorf("find cart products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode cart products: %w", err)
	}

	out := make([]models.CartProduct, 0, len(products))
	for _, p := range products {
		out = append(out, models.CartProduct{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.EffectivePrice(),
			Stock: p.Stock,
			Image: p.Image(),
		})
	}
	return out, nil
}

func (g *Gateway) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return fetchCached(ctx, g, "product-slug:"+slug, productsTTL,
		func(p *models.Product) []string {
			tags := []string{TagProductBySlug(slug)}
			if p != nil {
				tags = append(tags, TagProduct(p.ID))
			}
			return tags
		},
		func(ctx context.Context) (*models.Product, error) {
			var product models.Product
			err := g.products.FindOne(ctx, bson.M{
				"slug":   slug,
				"status": models.ProductStatusPublished,
			}).Decode(&product)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, nil
			}
			if err != nil {
				return nil, fmt.Errorf("find product by slug: %w", err)
			}
			normalizeProduct(&product)
			return &product, nil
		})
}

func (g *Gateway) GetProducts(ctx context.Context, filters Filters) (ProductList, error) {
	filters = filters.normalized()

	return fetchCached(ctx, g, filters.cacheKey(), productsTTL,
		func(list ProductList) []string {
			tags := []string{TagProductsList}
			if filters.Category != "" {
				tags = append(tags, TagProductsByCategory(filters.Category))
			}
			for _, p := range list.Products {
				tags = append(tags, TagProduct(p.ID))
			}
			return tags
		},
		func(ctx context.Context) (ProductList, error) {
			filter := buildProductFilter(filters)
			findOptions := options.Find().
				SetSort(sortFor(filters.Sort)).
				SetSkip(int64((filters.Page - 1) * ProductsPerPage)).
				SetLimit(ProductsPerPage)

			var (
				total    int64
				products []models.Product
			)
			group, gctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				n, err := g.products.CountDocuments(gctx, filter)
				if err != nil {
					return fmt.Errorf("count products: %w", err)
				}
				total = n
				return nil
			})
			group.Go(func() error {
				cursor, err := g.products.Find(gctx, filter, findOptions)
				if err != nil {
					return fmt.Errorf("find products: %w", err)
				}
				defer cursor.Close(gctx)
				if err := cursor.All(gctx, &products); err != nil {
					return fmt.Errorf("decode products: %w", err)
				}
				return nil
			})
			if err := group.Wait(); err != nil {
				return ProductList{}, err
			}

			if products == nil {
				products = []models.Product{}
			}
			for i := range products {
				normalizeProduct(&products[i])
			}

			totalPages := int(math.Ceil(float64(total) / float64(ProductsPerPage)))
			return ProductList{
				Products:    products,
				Total:       total,
				Page:        filters.Page,
				TotalPages:  totalPages,
				HasNextPage: filters.Page < totalPages,
				HasPrevPage: filters.Page > 1,
			}, nil
		})
}

func (g *Gateway) GetCategories(ctx context.Context) ([]models.Category, error) {
	return fetchCached(ctx, g, "categories", categoriesTTL,
		func([]models.Category) []string { return []string{TagCategoriesList} },
		func(ctx context.Context) ([]models.Category, error) {
			opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
			cursor, err := g.categories.Find(ctx, bson.M{}, opts)
			if err != nil {
				return nil, fmt.Errorf("find categories: %w", err)
			}
			defer cursor.Close(ctx)

			categories := make([]models.Category, 0)
			if err := cursor.All(ctx, &categories); err != nil {
				return nil, fmt.Errorf("decode categories: %w", err)
			}
			return categories, nil
		})
}

func (g *Gateway) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return fetchCached(ctx, g, "category-slug:"+slug, categoriesTTL,
		func(c *models.Category) []string {
			tags := []string{TagCategoryBySlug(slug)}
			if c != nil {
				tags = append(tags, TagCategory(c.ID))
			}
			return tags
		},
		func(ctx context.Context) (*models.Category, error) {
			var category models.Category
			err := g.categories.FindOne(ctx, bson.M{"slug": slug}).Decode(&category)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, nil
			}
			if err != nil {
				return nil, fmt.Errorf("find category by slug: %w", err)
			}
			return &category, nil
		})
}

func (g *Gateway) GetFilterableAttributes(ctx context.Context) ([]models.FilterableAttribute, error) {
	return fetchCached(ctx, g, "attributes", categoriesTTL,
		func([]models.FilterableAttribute) []string { return []string{TagAttributesList} },
		func(ctx context.Context) ([]models.FilterableAttribute, error) {
			opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "name", Value: 1}})
			cursor, err := g.attributes.Find(ctx, bson.M{}, opts)
			if err != nil {
				return nil, fmt.Errorf("find attributes: %w", err)
			}
			defer cursor.Close(ctx)

			attributes := make([]models.FilterableAttribute, 0)
			if err := cursor.All(ctx, &attributes); err != nil {
				return nil, fmt.Errorf("decode attributes: %w", err)
			}
			return attributes, nil
		})
}

// GetBrands lists the distinct brands of published products, for the brand
// filter.
func (g *Gateway) GetBrands(ctx context.Context) ([]string, error) {
	return fetchCached(ctx, g, "brands", productsTTL,
		func([]string) []string { return []string{TagBrandsList} },
		func(ctx context.Context) ([]string, error) {
			values, err := g.products.Distinct(ctx, "brand", bson.M{"status": models.ProductStatusPublished})
			if err != nil {
				return nil, fmt.Errorf("distinct brands: %w", err)
			}
			return uniqueBrands(values), nil
		})
}

// uniqueBrands drops blanks and case-insensitive duplicates, keeping the first
// spelling, and sorts the result.
func uniqueBrands(values []interface{}) []string {
	seen := make(map[string]bool, len(values))
	brands := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		brands = append(brands, s)
	}
	sort.Slice(brands, func(i, j int) bool {
		return strings.ToLower(brands[i]) < strings.ToLower(brands[j])
	})
	return brands
}

// Invalidate drops every cached entry carrying one of tags.
func (g *Gateway) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	return g.cache.Invalidate(ctx, tags...)
}

// InvalidateProducts is fired after stock changes so listings stop showing
// stale availability.
func (g *Gateway) InvalidateProducts(ctx context.Context, ids ...string) error {
	tags := []string{TagProductsList, TagBrandsList}
	for _, id := range ids {
		tags = append(tags, TagProduct(id))
	}
	return g.cache.Invalidate(ctx, tags...)
}

func normalizeProduct(p *models.Product) {
	p.IsOnSale = p.SalePrice > 0 && p.SalePrice < p.Price
	p.InStock = p.Stock > 0
}

func fetchCached[T any](
	ctx context.Context,
	g *Gateway,
	key string,
	ttl time.Duration,
	tags func(T) []string,
	load func(context.Context) (T, error),
) (T, error) {
	var zero T

	data, err := g.cache.Get(ctx, key)
	if err == nil {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		log.Printf("[CATALOG] [WARN] dropping undecodable cache entry %s", key)
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Printf("[CATALOG] [WARN] cache get %s: %v", key, err)
	}

	v, err, _ := g.sfg.Do(key, func() (interface{}, error) {
		// Waiters share this load, so one caller going away must not fail
		// the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			log.Printf("[CATALOG] [WARN] cache encode %s: %v", key, err)
			return value, nil
		}
		if err := g.cache.Set(loadCtx, key, encoded, ttl, tags(value)); err != nil {
			log.Printf("[CATALOG] [WARN] cache set %s: %v", key, err)
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
