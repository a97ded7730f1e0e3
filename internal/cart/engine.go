package cart

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/store-bridge/internal/pricing"
)

// Product is the catalog snapshot applied to a cart line on add.
type Product struct {
	ID    int
	Title string
	Price pricing.Money
	Image string
}

// applyAdd merges qty units of p into c. An existing line takes the fresh
// price, title and image; a new line is appended. A merge that would
// overflow the line quantity is rejected and leaves c unchanged.
func applyAdd(c *Cart, p Product, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.index(p.ID); i >= 0 {
		item := &c.Items[i]
		if qty > math.MaxInt-item.Quantity {
			return ErrInvalidQuantity
		}
		item.Quantity += qty
		item.UnitPrice = p.Price
		item.Title = p.Title
		item.Image = p.Image
		item.LineTotal = pricing.LineTotal(item.Quantity, item.UnitPrice)
	} else {
		c.Items = append(c.Items, LineItem{
			ProductID: p.ID,
			Title:     p.Title,
			UnitPrice: p.Price,
			Quantity:  qty,
			LineTotal: pricing.LineTotal(qty, p.Price),
			Image:     p.Image,
		})
	}
	recompute(c)
	return nil
}

// applyRemove drops the line for productID when qty is nil or at least the
// current quantity; otherwise it decrements at the stored unit price.
func applyRemove(c *Cart, productID int, qty *int) error {
	if qty != nil && *qty <= 0 {
		return ErrInvalidQuantity
	}
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotInCart
	}
	if qty == nil || *qty >= c.Items[i].Quantity {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		item := &c.Items[i]
		item.Quantity -= *qty
		item.LineTotal = pricing.LineTotal(item.Quantity, item.UnitPrice)
	}
	recompute(c)
	return nil
}

func recompute(c *Cart) {
	items := make([]pricing.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, pricing.Item{Qty: it.Quantity, LineTotal: it.LineTotal})
	}
	summary := pricing.Compute(items, pricing.TaxRate)
	c.TotalItems = summary.TotalItems
	c.Subtotal = summary.Subtotal
	c.Tax = summary.Tax
	c.Total = summary.Total
}

func priceFromFloat(v float64) pricing.Money {
	if v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
