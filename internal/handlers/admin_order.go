package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"bikestore/internal/models"
)

type OrderLister interface {
	ListOrders(ctx context.Context, page, limit int, status string) ([]models.Order, int64, error)
}

var listableStatuses = map[string]bool{
	"":                                   true,
	string(models.OrderStatusPending):    true,
	string(models.OrderStatusPaid):       true,
	string(models.OrderStatusProcessing): true,
	string(models.OrderStatusShipped):    true,
	string(models.OrderStatusCompleted):  true,
	string(models.OrderStatusCancelled):  true,
	string(models.OrderStatusRefunded):   true,
}

func ListOrders(orders OrderLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		status := c.Query("status")
		if !listableStatuses[status] {
			respondWithError(c, http.StatusBadRequest, route, "invalid status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, total, err := orders.ListOrders(ctx, page, limit, status)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": list,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		})
	}
}
