package checkout

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bikestore/internal/cart"
	"bikestore/internal/models"
)

func TestBuildItems_SnapshotsCatalogData(t *testing.T) {
	products := []models.CartProduct{
		{ID: "p1", Name: "Gravel 500", Price: 1000, Image: "a.jpg"},
		{ID: "p2", Name: "Bottle", Price: 12.35},
	}
	lines := []cart.Line{{ProductID: "p2", Quantity: 3}, {ProductID: "p1", Quantity: 2}}

	items, totals := BuildItems(lines, products, 150, 100)

	assert.Equal(t, []models.OrderItem{
		{ProductID: "p2", Name: "Bottle", Quantity: 3, UnitPrice: 12.35, Subtotal: 37.05},
		{ProductID: "p1", Name: "Gravel 500", ImageURL: "a.jpg", Quantity: 2, UnitPrice: 1000, Subtotal: 2000},
	}, items)
	assert.Equal(t, models.OrderTotals{Subtotal: 2037.05, Shipping: 150, Discount: 100, Total: 2087.05}, totals)
}

func TestBuildItems_SubCentPriceKeepsLineInvariant(t *testing.T) {
	products := []models.CartProduct{{ID: "p1", Name: "Tube", Price: 10.005}}

	items, totals := BuildItems([]cart.Line{{ProductID: "p1", Quantity: 2}}, products, 0, 0)

	assert.Equal(t, 10.01, items[0].UnitPrice)
	assert.Equal(t, 20.02, items[0].Subtotal)
	assert.Equal(t, 20.02, totals.Subtotal)
	assert.Equal(t, 20.02, totals.Total)
}

func TestBuildItems_TotalsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("subtotal is the sum of lines and total = subtotal - discount + shipping", prop.ForAll(
		func(mills []int64, qtys []int, shippingCents, discountCents int64) bool {
			n := len(mills)
			if len(qtys) < n {
				n = len(qtys)
			}

			products := make([]models.CartProduct, 0, n)
			lines := make([]cart.Line, 0, n)
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("p%d", i)
				products = append(products, models.CartProduct{ID: id, Price: float64(mills[i]) / 1000})
				lines = append(lines, cart.Line{ProductID: id, Quantity: qtys[i]})
			}

			shipping := float64(shippingCents) / 100
			discount := float64(discountCents) / 100
			items, totals := BuildItems(lines, products, shipping, discount)

			sum := decimal.Zero
			for _, item := range items {
				line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
				if !line.Equal(decimal.NewFromFloat(item.Subtotal)) {
					return false
				}
				sum = sum.Add(line)
			}
			if !sum.Equal(decimal.NewFromFloat(totals.Subtotal)) {
				return false
			}

			want := decimal.NewFromFloat(totals.Subtotal).
				Sub(decimal.NewFromFloat(totals.Discount)).
				Add(decimal.NewFromFloat(totals.Shipping))
			return want.Equal(decimal.NewFromFloat(totals.Total))
		},
		gen.SliceOf(gen.Int64Range(1, 50_000_000)),
		gen.SliceOf(gen.IntRange(1, 20)),
		gen.Int64Range(0, 100_000),
		gen.Int64Range(0, 100_000),
	))

	properties.TestingRun(t)
}
