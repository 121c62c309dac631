package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bikestore/internal/catalog"
	"bikestore/internal/models"
)

// attributeParamPrefix marks query params that filter by product attribute,
// e.g. ?attr.frame-size=M,L.
const attributeParamPrefix = "attr."

type CatalogReader interface {
	GetProducts(ctx context.Context, filters catalog.Filters) (catalog.ProductList, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetFilterableAttributes(ctx context.Context) ([]models.FilterableAttribute, error)
	GetBrands(ctx context.Context) ([]string, error)
}

var validSorts = map[string]bool{
	catalog.SortNewest:    true,
	catalog.SortOldest:    true,
	catalog.SortPriceAsc:  true,
	catalog.SortPriceDesc: true,
	catalog.SortNameAsc:   true,
	catalog.SortNameDesc:  true,
}

func parsePriceParam(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, errors.New("invalid price")
	}
	return &v, nil
}

func parseProductFilters(c *gin.Context) (catalog.Filters, error) {
	filters := catalog.Filters{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Brand:    c.Query("brand"),
		Sort:     c.Query("sort"),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return filters, errInvalidPagination
		}
		filters.Page = page
	}

	if filters.Sort != "" && !validSorts[filters.Sort] {
		return filters, errors.New("invalid sort")
	}

	var err error
	if filters.MinPrice, err = parsePriceParam(c.Query("minPrice")); err != nil {
		return filters, err
	}
	if filters.MaxPrice, err = parsePriceParam(c.Query("maxPrice")); err != nil {
		return filters, err
	}
	if filters.MinPrice != nil && filters.MaxPrice != nil && *filters.MinPrice > *filters.MaxPrice {
		return filters, errors.New("minPrice greater than maxPrice")
	}

	for key, values := range c.Request.URL.Query() {
		slug, ok := strings.CutPrefix(key, attributeParamPrefix)
		if !ok || slug == "" {
			continue
		}
		for _, raw := range values {
			for _, v := range strings.Split(raw, ",") {
				if v = strings.TrimSpace(v); v != "" {
					if filters.Attributes == nil {
						filters.Attributes = make(map[string][]string)
					}
					filters.Attributes[slug] = append(filters.Attributes[slug], v)
				}
			}
		}
	}

	return filters, nil
}

/*
GET /products
- 12 products per page, newest first unless sort is given
- attr.<slug>=a,b narrows by attribute values
*/
func GetProducts(products CatalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		filters, err := parseProductFilters(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := products.GetProducts(ctx, filters)
		if err != nil {
			log.Printf("[%s] catalog error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

func GetProductBySlug(products CatalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:slug"
		defer handlePanic(c, route)

		slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
		if slug == "" {
			respondWithError(c, http.StatusBadRequest, route, "slug is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.GetProductBySlug(ctx, slug)
		if err != nil {
			log.Printf("[%s] catalog error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if product == nil {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		c.JSON(http.StatusOK, product)
	}
}

// GetBrands feeds the brand filter with the brands currently on sale.
func GetBrands(products CatalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /brands"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		brands, err := products.GetBrands(ctx)
		if err != nil {
			log.Printf("[%s] catalog error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, brands)
	}
}
