package domain

// Money is an amount in a currency, as returned by the storefront.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// ProductVariant is a purchasable variant of a product.
type ProductVariant struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	AvailableForSale bool   `json:"availableForSale"`
	Price            Money  `json:"price"`
}

// Product is a storefront product snapshot.
type Product struct {
	ID          string           `json:"id"`
	Handle      string           `json:"handle"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Variants    []ProductVariant `json:"variants"`
}

// CartLine is one line of a cart.
type CartLine struct {
	ID            string `json:"id"`
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// Cart is a storefront cart.
type Cart struct {
	ID          string     `json:"id"`
	CheckoutURL string     `json:"checkoutUrl"`
	Lines       []CartLine `json:"lines"`
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}

// CartMutationKind selects which cart mutation to run.
type CartMutationKind string

const (
	CartAddLines    CartMutationKind = "add"
	CartUpdateLines CartMutationKind = "update"
	CartRemoveLines CartMutationKind = "remove"
)

// CartMutation is a single change applied to a cart.
type CartMutation struct {
	Kind   CartMutationKind
	CartID string
	Lines  []CartLine
}
