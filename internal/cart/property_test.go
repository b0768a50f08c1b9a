package cart

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCartProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merge order does not change final quantity", prop.ForAll(
		func(a, b int) bool {
			first, _ := New(oakTable(a)).AddLine(oakTable(b))
			second, _ := New(oakTable(b)).AddLine(oakTable(a))
			return first.Len() == 1 && second.Len() == 1 &&
				first.Lines()[0].Quantity == a+b &&
				second.Lines()[0].Quantity == a+b
		},
		gen.IntRange(1, 500),
		gen.IntRange(1, 500),
	))

	properties.Property("no stored line has quantity below one", prop.ForAll(
		func(qtys []int) bool {
			c := New()
			for i, q := range qtys {
				item := LineItem{ItemID: int64(i % 4), UnitPrice: 1000, Quantity: 1}
				c, _ = c.AddLine(item)
				c, _ = c.SetQuantity(c.Len()-1, q)
			}
			for _, l := range c.Lines() {
				if l.Quantity < 1 {
					return false
				}
			}
			return c.Subtotal() >= 0 && c.ItemCount() >= 0
		},
		gen.SliceOf(gen.IntRange(-5, 20)),
	))

	properties.Property("arbitrary input never breaks the limits", prop.ForAll(
		func(qtys []int, prices []int64) bool {
			c := New()
			for i, q := range qtys {
				price := int64(1)
				if len(prices) > 0 {
					price = prices[i%len(prices)]
				}
				c, _ = c.AddLine(LineItem{ItemID: int64(i % 3), UnitPrice: price, Quantity: q})
				if c.Len() > 0 {
					c, _ = c.SetQuantity(i%c.Len(), q)
				}
			}
			for _, l := range c.Lines() {
				if l.Quantity < 1 || l.Quantity > MaxQuantity || l.Total() < 0 {
					return false
				}
			}
			return c.Subtotal() >= 0 && c.Subtotal() <= MaxSubtotal && c.ItemCount() >= 0
		},
		gen.SliceOf(gen.Int()),
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}
