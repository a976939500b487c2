// Package catalog serves the read-only lookups the order core consumes:
// products with sale prices, the client directory and municipalities.
package catalog

import "github.com/shopspring/decimal"

// Municipality is a delivery zone.
type Municipality struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client is the canonical client shape produced by NormalizeClient.
type Client struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Phone        string        `json:"phone"`
	Email        *string       `json:"email,omitempty"`
	Address      *string       `json:"address,omitempty"`
	Municipality *Municipality `json:"municipality,omitempty"`
}

// MunicipalityName returns the municipality label or an empty string.
func (c Client) MunicipalityName() string {
	if c.Municipality == nil {
		return ""
	}
	return c.Municipality.Name
}

// Product is a sellable item with its current unit price.
type Product struct {
	ID          int64           `json:"id"`
	Code        *string         `json:"code,omitempty"`
	Description string          `json:"description"`
	SalePrice   decimal.Decimal `json:"sale_price"`
}
