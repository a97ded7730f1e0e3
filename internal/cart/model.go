package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/store-bridge/internal/pricing"
)

// LineItem is one product's quantity and price inside a cart.
type LineItem struct {
	ProductID int
	Title     string
	UnitPrice pricing.Money
	Quantity  int
	LineTotal pricing.Money
	Image     string
}

// Cart holds a user's line items in first-add order together with derived totals.
type Cart struct {
	Items      []LineItem
	TotalItems int
	Subtotal   pricing.Money
	Tax        pricing.Money
	Total      pricing.Money
}

// NewCart returns an empty cart with zero totals.
func NewCart() Cart {
	return Cart{
		Items:    []LineItem{},
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Total:    decimal.Zero,
	}
}

// Clone returns a deep copy so callers never share the stored item slice.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

// Quantity reports the quantity held for productID, zero when absent.
func (c Cart) Quantity(productID int) int {
	if i := c.index(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// IsEmpty reports whether the cart has no line items.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c Cart) index(productID int) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// ItemView is the wire shape of a line item.
type ItemView struct {
	ProductID    int     `json:"product_id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
	Quantity     int     `json:"quantity"`
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"total_display"`
	Image        string  `json:"image"`
}

// View is the wire shape of a cart. Float fields carry full precision and
// *_display fields are rounded to two decimals.
type View struct {
	Items           []ItemView `json:"items"`
	TotalItems      int        `json:"total_items"`
	Subtotal        float64    `json:"subtotal"`
	SubtotalDisplay string     `json:"subtotal_display"`
	Tax             float64    `json:"tax"`
	TaxDisplay      string     `json:"tax_display"`
	Total           float64    `json:"total"`
	TotalDisplay    string     `json:"total_display"`
}

// View converts the cart into its wire representation.
func (c Cart) View() View {
	items := make([]ItemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, ItemView{
			ProductID:    it.ProductID,
			Title:        it.Title,
			Price:        it.UnitPrice.InexactFloat64(),
			PriceDisplay: pricing.Display(it.UnitPrice),
			Quantity:     it.Quantity,
			Total:        it.LineTotal.InexactFloat64(),
			TotalDisplay: pricing.Display(it.LineTotal),
			Image:        it.Image,
		})
	}
	return View{
		Items:           items,
		TotalItems:      c.TotalItems,
		Subtotal:        c.Subtotal.InexactFloat64(),
		SubtotalDisplay: pricing.Display(c.Subtotal),
		Tax:             c.Tax.InexactFloat64(),
		TaxDisplay:      pricing.Display(c.Tax),
		Total:           c.Total.InexactFloat64(),
		TotalDisplay:    pricing.Display(c.Total),
	}
}

// MarshalJSON renders the cart through View.
func (c Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.View())
}
