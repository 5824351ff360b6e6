package service

import (
	"fmt"
	"sort"
	"strings"

	"showroom/internal/domain"

	"github.com/shopspring/decimal"
)

// NoSalesYet is reported as the best seller when the ledger is empty
const NoSalesYet = "N/A (No sales yet)"

// FilterParams narrows a catalog listing. Nil price bounds are open.
type FilterParams struct {
	Text        string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
}

// BestSeller is the most frequently sold brand and model
type BestSeller struct {
	Key   domain.Key `json:"-"`
	Label string     `json:"label"`
	Units int        `json:"units"`
}

func (b BestSeller) String() string {
	return fmt.Sprintf("%s (%d units)", b.Label, b.Units)
}

// Summary aggregates the report figures shown to operators
type Summary struct {
	InventoryValue decimal.Decimal `json:"inventory_value"`
	Revenue        decimal.Decimal `json:"revenue"`
	SalesCount     int             `json:"sales_count"`
	BestSeller     string          `json:"best_seller"`
}

// QueryEngine computes listings and reports over catalog and ledger
// snapshots. It holds no state.
type QueryEngine struct{}

// NewQueryEngine creates a new QueryEngine
func NewQueryEngine() QueryEngine {
	return QueryEngine{}
}

// Filter returns the entries matching params sorted by brand then model
func (QueryEngine) Filter(entries []domain.Entry, params FilterParams) []domain.Entry {
	text := domain.Fold(strings.TrimSpace(params.Text))

	result := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if text != "" &&
			!strings.Contains(domain.Fold(e.Brand), text) &&
			!strings.Contains(domain.Fold(e.Model), text) {
			continue
		}
		if params.MinPrice != nil && e.Price.LessThan(*params.MinPrice) {
			continue
		}
		if params.MaxPrice != nil && e.Price.GreaterThan(*params.MaxPrice) {
			continue
		}
		if params.InStockOnly && !e.InStock() {
			continue
		}
		result = append(result, e)
	}

	sortEntries(result)
	return result
}

// TotalInventoryValue is the sum of price times quantity
func (QueryEngine) TotalInventoryValue(entries []domain.Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Value())
	}
	return total
}

// TotalRevenue is the sum of all sale prices
func (QueryEngine) TotalRevenue(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Price)
	}
	return total
}

// BestSeller returns the brand and model sold most often, grouped by the
// exact pair recorded in the ledger. Ties go to the smallest brand, then the
// smallest model. ok is false for an empty ledger.
func (QueryEngine) BestSeller(sales []domain.Sale) (best BestSeller, ok bool) {
	counts := make(map[domain.Key]int)
	for _, s := range sales {
		counts[s.Key()]++
	}

	for key, n := range counts {
		if !ok || n > best.Units || (n == best.Units && keyLess(key, best.Key)) {
			best = BestSeller{Key: key, Units: n}
			ok = true
		}
	}
	best.Label = best.Key.String()
	return best, ok
}

func keyLess(a, b domain.Key) bool {
	if a.Brand != b.Brand {
		return a.Brand < b.Brand
	}
	return a.Model < b.Model
}

// BestSellingModel formats BestSeller, or NoSalesYet when nothing was sold
func (q QueryEngine) BestSellingModel(sales []domain.Sale) string {
	best, ok := q.BestSeller(sales)
	if !ok {
		return NoSalesYet
	}
	return best.String()
}

// RecentSales returns the sales newest first
func (QueryEngine) RecentSales(sales []domain.Sale) []domain.Sale {
	result := make([]domain.Sale, len(sales))
	for i, s := range sales {
		result[len(sales)-1-i] = s
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// Summarize computes the report aggregates
func (q QueryEngine) Summarize(entries []domain.Entry, sales []domain.Sale) Summary {
	return Summary{
		InventoryValue: q.TotalInventoryValue(entries),
		Revenue:        q.TotalRevenue(sales),
		SalesCount:     len(sales),
		BestSeller:     q.BestSellingModel(sales),
	}
}

func sortEntries(entries []domain.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Brand != entries[j].Brand {
			return entries[i].Brand < entries[j].Brand
		}
		return entries[i].Model < entries[j].Model
	})
}
