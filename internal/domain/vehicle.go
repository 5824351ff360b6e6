package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Key identifies a catalog entry. Two keys are equal when brand and model
// match ignoring case.
type Key struct {
	Brand string
	Model string
}

// NewKey builds a key from a brand and model pair
func NewKey(brand, model string) Key {
	return Key{Brand: strings.TrimSpace(brand), Model: strings.TrimSpace(model)}
}

// Equal reports whether two keys denote the same catalog entry
func (k Key) Equal(other Key) bool {
	return k.Folded() == other.Folded()
}

// Folded returns the case-folded form used for map lookups.
func (k Key) Folded() string {
	return Fold(k.Brand) + "\x00" + Fold(k.Model)
}

func (k Key) String() string {
	return k.Brand + " " + k.Model
}

// Fold normalizes s for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Entry represents one tracked vehicle model in the catalog
type Entry struct {
	Brand     string          `json:"brand" validate:"required,notblank"`
	Model     string          `json:"model" validate:"required,notblank"`
	Price     decimal.Decimal `json:"price" validate:"gt=0"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	ImagePath string          `json:"image_path"`
}

// Key returns the identity key of the entry
func (e Entry) Key() Key {
	return Key{Brand: e.Brand, Model: e.Model}
}

// InStock reports whether at least one unit is available
func (e Entry) InStock() bool {
	return e.Quantity > 0
}

// Value is price times quantity
func (e Entry) Value() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Sale represents one completed transaction. Sales are never modified.
type Sale struct {
	Timestamp time.Time       `json:"timestamp"`
	Brand     string          `json:"brand"`
	Model     string          `json:"model"`
	Price     decimal.Decimal `json:"sale_price"`
}

// NewSale creates a sale record for the entry at its current price
func NewSale(entry Entry, at time.Time) Sale {
	return Sale{
		Timestamp: at.Truncate(time.Second),
		Brand:     entry.Brand,
		Model:     entry.Model,
		Price:     entry.Price,
	}
}

// Key returns the exact brand and model the sale was recorded under
func (s Sale) Key() Key {
	return Key{Brand: s.Brand, Model: s.Model}
}

// Label is the "<brand> <model>" label used in reports
func (s Sale) Label() string {
	return s.Brand + " " + s.Model
}
