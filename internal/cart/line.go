package cart

// Acquisition modes for VariantKey.Mode.
const (
	ModePurchase = "purchase"
	ModeRental   = "rental"
)

// Bounds on a single line and on the whole cart. They keep every total
// representable as int64.
const (
	MaxQuantity       = 100_000
	MaxSubtotal int64 = 1_000_000_000_000_000
)

// VariantKey distinguishes otherwise identical products that must be tracked
// as separate lines, for example buy versus rent or two finishes.
type VariantKey struct {
	Mode  string `json:"mode"`
	Color string `json:"color"`
}

// Display carries presentation attributes. It never takes part in pricing.
type Display struct {
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	PlanMonths  int    `json:"planMonths,omitempty"`
	PaymentType string `json:"paymentType,omitempty"`
}

// LineItem is one purchasable selection in the cart.
type LineItem struct {
	ItemID    int64      `json:"itemId"`
	UnitPrice int64      `json:"unitPrice"`
	Quantity  int        `json:"quantity"`
	Variant   VariantKey `json:"variant"`
	Display   Display    `json:"display"`
}

// SameLine reports whether l and other identify the same cart line.
func (l LineItem) SameLine(other LineItem) bool {
	return l.ItemID == other.ItemID && l.Variant == other.Variant
}

// Total returns unit price × quantity.
func (l LineItem) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Label names the line for notices, falling back to the item id.
func (l LineItem) Label() string {
	if l.Display.Name != "" {
		return l.Display.Name
	}
	return "item " + itoa(l.ItemID)
}

func (l LineItem) valid() bool {
	if l.Quantity < 1 || l.Quantity > MaxQuantity || l.UnitPrice < 0 {
		return false
	}
	return l.UnitPrice == 0 || int64(l.Quantity) <= MaxSubtotal/l.UnitPrice
}
