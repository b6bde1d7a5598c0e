package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

// summaryInputs are the ledger columns read by BuildSummary
var summaryInputs = []string{
	ledger.ColLocation,
	ledger.ColModel,
	ledger.ColUnits,
	ledger.ColPriceDelta,
	ledger.Normalized(ledger.ColAdditionalDiscount),
	ledger.Normalized(ledger.ColAdditionalAccessories),
	ledger.ColCommission,
	ledger.ColDealerShareTotal,
	ledger.ColMargin,
	ledger.ColMfrShareTotal,
	ledger.ColDiscountCredit,
}

// ModelLine is one row of a location block: a model, or the location TOTAL.
type ModelLine struct {
	Model                   string
	Qty                     decimal.Decimal
	PriceDelta              decimal.Decimal
	AdditionalDiscount      decimal.Decimal
	AccessoriesDiscount     decimal.Decimal
	Commission              decimal.Decimal
	DealerShare             decimal.Decimal
	NetMargin               decimal.Decimal
	PerUnitMargin           decimal.NullDecimal
	ManufacturerShare       decimal.Decimal
	DiscountCredit          decimal.Decimal
	TotalAdditionalDiscount decimal.Decimal
	AdditionalPerUnit       decimal.NullDecimal
}

// LocationSummary groups the model lines of one location
type LocationSummary struct {
	Location string
	Models   []ModelLine
	Total    ModelLine
}

// Lines returns the model lines followed by the TOTAL line
func (l LocationSummary) Lines() []ModelLine {
	return append(append([]ModelLine{}, l.Models...), l.Total)
}

// Summary is the per-location, per-model breakdown of the ledger
type Summary struct {
	Locations []LocationSummary
}

// TotalLabel is the model label of a location's total line
const TotalLabel = "TOTAL"

// BuildSummary groups records by location, then by model, both in order of first
// appearance. The aggregate row is excluded explicitly.
func BuildSummary(t *ledger.Table) (*Summary, error) {
	if err := t.RequireNumeric(summaryInputs[2:]...); err != nil {
		return nil, err
	}
	if err := t.Require(ledger.ColLocation, ledger.ColModel); err != nil {
		return nil, err
	}
	if !ledger.HasAggregateRow(t) {
		return nil, apperrors.NewSchemaError("ledger has no aggregate row")
	}
	records := t.Len() - 1

	var locations []string
	byLocation := make(map[string][]int)
	for i := 0; i < records; i++ {
		loc := t.Cell(i, ledger.ColLocation).String()
		if _, seen := byLocation[loc]; !seen {
			locations = append(locations, loc)
		}
		byLocation[loc] = append(byLocation[loc], i)
	}

	sum := &Summary{}
	for _, loc := range locations {
		var models []string
		byModel := make(map[string][]int)
		for _, i := range byLocation[loc] {
			m := t.Cell(i, ledger.ColModel).String()
			if _, seen := byModel[m]; !seen {
				models = append(models, m)
			}
			byModel[m] = append(byModel[m], i)
		}

		ls := LocationSummary{Location: loc}
		for _, m := range models {
			ls.Models = append(ls.Models, modelLine(t, m, byModel[m]))
		}
		ls.Total = totalLine(ls.Models)
		sum.Locations = append(sum.Locations, ls)
	}
	return sum, nil
}

func modelLine(t *ledger.Table, model string, rows []int) ModelLine {
	line := ModelLine{
		Model:               model,
		Qty:                 sumRows(t, ledger.ColUnits, rows),
		PriceDelta:          sumRows(t, ledger.ColPriceDelta, rows),
		AdditionalDiscount:  sumRows(t, ledger.Normalized(ledger.ColAdditionalDiscount), rows),
		AccessoriesDiscount: sumRows(t, ledger.Normalized(ledger.ColAdditionalAccessories), rows),
		Commission:          sumRows(t, ledger.ColCommission, rows),
		DealerShare:         sumRows(t, ledger.ColDealerShareTotal, rows),
		NetMargin:           sumRows(t, ledger.ColMargin, rows),
		ManufacturerShare:   sumRows(t, ledger.ColMfrShareTotal, rows),
		DiscountCredit:      sumRows(t, ledger.ColDiscountCredit, rows),
	}
	line.PerUnitMargin = perUnit(line.NetMargin, line.Qty)
	line.TotalAdditionalDiscount = line.additionalTotal()
	line.AdditionalPerUnit = perUnit(line.TotalAdditionalDiscount, line.Qty)
	return line
}

// totalLine sums the model lines and rounds; per-unit figures are recomputed from the
// location sums, never averaged over models.
func totalLine(models []ModelLine) ModelLine {
	total := ModelLine{Model: TotalLabel}
	for _, m := range models {
		total.Qty = total.Qty.Add(m.Qty)
		total.PriceDelta = total.PriceDelta.Add(m.PriceDelta)
		total.AdditionalDiscount = total.AdditionalDiscount.Add(m.AdditionalDiscount)
		total.AccessoriesDiscount = total.AccessoriesDiscount.Add(m.AccessoriesDiscount)
		total.Commission = total.Commission.Add(m.Commission)
		total.DealerShare = total.DealerShare.Add(m.DealerShare)
		total.NetMargin = total.NetMargin.Add(m.NetMargin)
		total.ManufacturerShare = total.ManufacturerShare.Add(m.ManufacturerShare)
		total.DiscountCredit = total.DiscountCredit.Add(m.DiscountCredit)
	}
	for _, d := range []*decimal.Decimal{
		&total.Qty, &total.PriceDelta, &total.AdditionalDiscount, &total.AccessoriesDiscount,
		&total.Commission, &total.DealerShare, &total.NetMargin, &total.ManufacturerShare, &total.DiscountCredit,
	} {
		*d = d.RoundBank(0)
	}
	total.PerUnitMargin = perUnit(total.NetMargin, total.Qty)
	total.TotalAdditionalDiscount = total.additionalTotal()
	total.AdditionalPerUnit = perUnit(total.TotalAdditionalDiscount, total.Qty)
	return total
}

func (m ModelLine) additionalTotal() decimal.Decimal {
	return m.AdditionalDiscount.Add(m.AccessoriesDiscount).Add(m.Commission).RoundBank(0)
}

// perUnit is round(amount / qty); undefined for zero quantity.
func perUnit(amount, qty decimal.Decimal) decimal.NullDecimal {
	if qty.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Div(qty).RoundBank(0))
}

func sumRows(t *ledger.Table, col string, rows []int) decimal.Decimal {
	total := decimal.Zero
	for _, i := range rows {
		total = total.Add(t.Number(i, col))
	}
	return total
}

// String is used in log lines
func (l LocationSummary) String() string {
	return fmt.Sprintf("%s: %d models, qty %s, margin %s", l.Location, len(l.Models), l.Total.Qty, l.Total.NetMargin)
}
