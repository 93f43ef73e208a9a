package models

// Product is one sellable item together with its remaining stock.
// PriceRef is the payment provider's price identifier and is opaque here.
type Product struct {
	ID       string `json:"id"`
	PriceRef string `json:"price_ref"`
	Stock    int    `json:"stock"`
}
