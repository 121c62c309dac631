package checkout

import (
	"errors"

	"bikestore/internal/cart"
	"bikestore/internal/models"
)

const (
	IssueNotFound          = "not_found"
	IssueInsufficientStock = "insufficient_stock"
)

var ErrInvalidCart = errors.New("cart is empty or has invalid quantities")

type StockIssue struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Issue       string `json:"issue"`
}

// NormalizeLines merges duplicate products and rejects empty carts and
// non-positive quantities.
func NormalizeLines(lines []cart.Line) ([]cart.Line, error) {
	if len(lines) == 0 {
		return nil, ErrInvalidCart
	}

	out := make([]cart.Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, ErrInvalidCart
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

// ValidateStock compares requested quantities with the current catalog.
// It runs at checkout and again when the payment is approved.
func ValidateStock(lines []cart.Line, products []models.CartProduct) []StockIssue {
	byID := indexProducts(products)

	var issues []StockIssue
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			issues = append(issues, StockIssue{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Issue:     IssueNotFound,
			})
			continue
		}
		if line.Quantity > product.Stock {
			issues = append(issues, StockIssue{
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Stock,
				Issue:       IssueInsufficientStock,
			})
		}
	}
	return issues
}

func ProductIDs(lines []cart.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func indexProducts(products []models.CartProduct) map[string]models.CartProduct {
	byID := make(map[string]models.CartProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID
}
