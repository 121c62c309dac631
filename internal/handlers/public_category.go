package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func GetCategories(categories CatalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := categories.GetCategories(ctx)
		if err != nil {
			log.Printf("[%s] catalog error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

func GetCategoryBySlug(categories CatalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/:slug"
		defer handlePanic(c, route)

		slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		category, err := categories.GetCategoryBySlug(ctx, slug)
		if err != nil {
			log.Printf("[%s] catalog error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if category == nil {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}

		c.JSON(http.StatusOK, category)
	}
}

func GetFilterableAttributes(attributes CatalogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /attributes"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := attributes.GetFilterableAttributes(ctx)
		if err != nil {
			log.Printf("[%s] catalog error: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, list)
	}
}
