package checkout

import (
	"github.com/shopspring/decimal"

	"bikestore/internal/cart"
	"bikestore/internal/models"
)

// BuildItems snapshots catalog name, price and image into order lines and
// computes totals. Client-side prices never reach this function. Every line
// must have a matching product; ValidateStock guarantees that upstream.
func BuildItems(lines []cart.Line, products []models.CartProduct, shipping, discount float64) ([]models.OrderItem, models.OrderTotals) {
	byID := indexProducts(products)

	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		product := byID[line.ProductID]
		// Line totals derive from the rounded unit price so the stored
		// snapshot multiplies back to the stored subtotal.
		unit := decimal.NewFromFloat(product.Price).Round(2)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  product.Image,
			Quantity:  line.Quantity,
			UnitPrice: unit.InexactFloat64(),
			Subtotal:  lineTotal.InexactFloat64(),
		})
	}

	shippingCost := decimal.NewFromFloat(shipping).Round(2)
	discountAmount := decimal.NewFromFloat(discount).Round(2)
	total := subtotal.Sub(discountAmount).Add(shippingCost)

	return items, models.OrderTotals{
		Subtotal: subtotal.InexactFloat64(),
		Shipping: shippingCost.InexactFloat64(),
		Discount: discountAmount.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}
