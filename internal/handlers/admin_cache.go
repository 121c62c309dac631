package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bikestore/internal/middleware"
)

type CacheInvalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

type invalidateCacheRequest struct {
	Tags []string `json:"tags" binding:"required,min=1,dive,required"`
}

// InvalidateCache drops cached catalog reads after back-office edits.
func InvalidateCache(cache CacheInvalidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/cache/invalidate"
		defer handlePanic(c, route)

		var req invalidateCacheRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "tags are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := cache.Invalidate(ctx, req.Tags...); err != nil {
			respondWithError(c, http.StatusBadGateway, route, "cache unavailable")
			return
		}

		by := ""
		if claims, ok := middleware.ClaimsFrom(c); ok {
			by = claims.Email
		}
		log.Printf("[%s] invalidated %v by=%s", route, req.Tags, by)

		c.JSON(http.StatusOK, gin.H{"invalidated": req.Tags})
	}
}
