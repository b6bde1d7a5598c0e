package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"marginreco/internal/ledger"
)

var reconcileInputs = []string{
	ledger.ColSalePrice,
	ledger.ColRecordedDiscount,
	ledger.ColPurchasePrice,
	ledger.Normalized(ledger.ColAdditionalDiscount),
	ledger.ColDealerShareTotal,
	ledger.ColMfrShareTotal,
	ledger.Normalized(ledger.ColAdditionalAccessories),
	ledger.ColCommission,
	ledger.ColDiscountCredit,
	ledger.ColMargin,
}

// PriceLine is the price-based profit of one location
type PriceLine struct {
	Location string
	Sale     decimal.Decimal
	Discount decimal.Decimal
	NetSale  decimal.Decimal
	Purchase decimal.Decimal
	Profit   decimal.Decimal
}

// DiscountLine compares the share split against the recorded discount
type DiscountLine struct {
	Location           string
	AdditionalDiscount decimal.Decimal
	DealerShare        decimal.Decimal
	ManufacturerShare  decimal.Decimal
	TotalDiscount      decimal.Decimal
	RecordedDiscount   decimal.Decimal
	Difference         decimal.Decimal
}

// ShareLine is the share-based balance of one location
type ShareLine struct {
	Location            string
	ManufacturerShare   decimal.Decimal
	AccessoriesDiscount decimal.Decimal
	Commission          decimal.Decimal
	DiscountCredit      decimal.Decimal
	Balance             decimal.Decimal
}

// Reconciliation re-derives total profit along two paths and compares it with the
// ledger's own margin total.
type Reconciliation struct {
	PriceBased  []PriceLine
	Discounts   []DiscountLine
	ShareBased  []ShareLine
	Total       decimal.Decimal
	TotalMargin decimal.Decimal
	Diff        decimal.Decimal
	// LastGroupTotal is set when the totals were read from the last location group.
	LastGroupTotal bool
}

// Consistent reports whether both derivations agree
func (r *Reconciliation) Consistent() bool {
	return r.Diff.IsZero()
}

// ReconcileOptions configures the reconciliation check
type ReconcileOptions struct {
	// LastGroupTotal keeps the aggregate row in the location grouping and takes the
	// grand totals from the last group in sort order instead of summing all groups.
	LastGroupTotal bool
}

type locationSums struct {
	location string
	sums     map[string]decimal.Decimal
	margin   decimal.Decimal
}

// Reconcile groups the ledger by location (sorted) and computes both derivations.
// The result is informational; a non-zero Diff never fails the run.
func Reconcile(t *ledger.Table, opts ReconcileOptions) (*Reconciliation, error) {
	if err := t.Require(ledger.ColLocation); err != nil {
		return nil, err
	}
	if err := t.RequireNumeric(reconcileInputs...); err != nil {
		return nil, err
	}

	rows := t.Len()
	if !opts.LastGroupTotal && ledger.HasAggregateRow(t) {
		rows--
	}
	groups := groupByLocation(t, rows)

	rec := &Reconciliation{LastGroupTotal: opts.LastGroupTotal}
	totals := make([]decimal.Decimal, len(groups))
	for n, g := range groups {
		s := g.sums
		price := PriceLine{
			Location: g.location,
			Sale:     s[ledger.ColSalePrice],
			Discount: s[ledger.ColRecordedDiscount],
			Purchase: s[ledger.ColPurchasePrice],
		}
		price.NetSale = price.Sale.Sub(price.Discount).RoundBank(0)
		price.Profit = price.NetSale.Sub(price.Purchase).RoundBank(0)

		disc := DiscountLine{
			Location:           g.location,
			AdditionalDiscount: s[ledger.Normalized(ledger.ColAdditionalDiscount)],
			DealerShare:        s[ledger.ColDealerShareTotal],
			ManufacturerShare:  s[ledger.ColMfrShareTotal],
			RecordedDiscount:   s[ledger.ColRecordedDiscount],
		}
		disc.TotalDiscount = disc.AdditionalDiscount.Add(disc.DealerShare).Add(disc.ManufacturerShare).RoundBank(0)
		disc.Difference = disc.TotalDiscount.Sub(disc.RecordedDiscount).RoundBank(0)

		share := ShareLine{
			Location:            g.location,
			ManufacturerShare:   s[ledger.ColMfrShareTotal],
			AccessoriesDiscount: s[ledger.Normalized(ledger.ColAdditionalAccessories)],
			Commission:          s[ledger.ColCommission],
			DiscountCredit:      s[ledger.ColDiscountCredit],
		}
		share.Balance = share.ManufacturerShare.Sub(share.AccessoriesDiscount).Sub(share.Commission).
			Sub(share.DiscountCredit).RoundBank(0)

		rec.PriceBased = append(rec.PriceBased, price)
		rec.Discounts = append(rec.Discounts, disc)
		rec.ShareBased = append(rec.ShareBased, share)
		totals[n] = price.Profit.Add(share.Balance).RoundBank(0)
	}

	if len(groups) == 0 {
		return rec, nil
	}
	if opts.LastGroupTotal {
		last := len(groups) - 1
		rec.Total = totals[last]
		rec.TotalMargin = groups[last].margin
	} else {
		for n, g := range groups {
			rec.Total = rec.Total.Add(totals[n])
			rec.TotalMargin = rec.TotalMargin.Add(g.margin)
		}
	}
	rec.Diff = rec.Total.Sub(rec.TotalMargin).Abs()
	return rec, nil
}

// groupByLocation sums the reconciliation inputs of the first n rows per location,
// rounding each group sum. Groups are returned in lexical order.
func groupByLocation(t *ledger.Table, n int) []locationSums {
	index := make(map[string]*locationSums)
	var names []string
	for i := 0; i < n; i++ {
		loc := t.Cell(i, ledger.ColLocation).String()
		g, ok := index[loc]
		if !ok {
			g = &locationSums{location: loc, sums: make(map[string]decimal.Decimal, len(reconcileInputs))}
			index[loc] = g
			names = append(names, loc)
		}
		for _, col := range reconcileInputs {
			g.sums[col] = g.sums[col].Add(t.Number(i, col))
		}
	}
	sort.Strings(names)

	out := make([]locationSums, 0, len(names))
	for _, name := range names {
		g := index[name]
		for col, v := range g.sums {
			g.sums[col] = v.RoundBank(0)
		}
		g.margin = g.sums[ledger.ColMargin]
		out = append(out, *g)
	}
	return out
}
