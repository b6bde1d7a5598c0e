package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"marginreco/internal/classify"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// TaxMultiplier returns GST% + CESS% + 100.
func TaxMultiplier(gstRate, cessRate decimal.Decimal) decimal.Decimal {
	return gstRate.Add(cessRate).Add(hundred)
}

// NormalizeAmount strips tax from a tax-inclusive amount: round(raw * 100 / gst).
// The multiplier must be strictly positive.
func NormalizeAmount(raw, gst decimal.Decimal) (decimal.Decimal, error) {
	if gst.Sign() <= 0 {
		return decimal.Zero, apperrors.NewDivisionError(fmt.Sprintf("tax multiplier must be positive, got %s", gst))
	}
	return raw.Mul(hundred).Div(gst).RoundBank(0), nil
}

// NormalizeTax adds the gst column and a pre-tax sibling for every classified column.
// Siblings are appended category by category, Additional first. Originals are kept.
// A record with a non-positive multiplier aborts the stage.
func NormalizeTax(in *ledger.Table, cls *classify.Classification) (*ledger.Table, error) {
	tagged := categoryOrder(cls)
	required := append([]string{ledger.ColGSTRate, ledger.ColCessRate}, tagged...)
	if err := in.RequireNumeric(required...); err != nil {
		return nil, err
	}

	out := in.Clone()
	n := out.Len()

	multipliers := make([]decimal.Decimal, n)
	gstCol := make([]ledger.Value, n)
	for i := 0; i < n; i++ {
		gst := TaxMultiplier(out.Number(i, ledger.ColGSTRate), out.Number(i, ledger.ColCessRate))
		if gst.Sign() <= 0 {
			return nil, apperrors.NewDivisionError(fmt.Sprintf("tax multiplier is %s for record %d (vehicle %q)",
				gst, i+1, out.Cell(i, ledger.ColVehicleID).String())).
				WithContext("record", i+1).
				WithContext("vehicle_id", out.Cell(i, ledger.ColVehicleID).String())
		}
		multipliers[i] = gst
		gstCol[i] = ledger.Num(gst)
	}
	if err := out.SetColumn(ledger.ColTaxMultiplier, gstCol); err != nil {
		return nil, err
	}

	for _, col := range tagged {
		values := make([]ledger.Value, n)
		for i := 0; i < n; i++ {
			norm, err := NormalizeAmount(out.Number(i, col), multipliers[i])
			if err != nil {
				return nil, err
			}
			values[i] = ledger.Num(norm)
		}
		if err := out.SetColumn(ledger.Normalized(col), values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AggregateShares sums the normalized dealer and manufacturer columns per record.
// Each sibling is already rounded, so the totals are independent of column order.
// TOTAL DLR SHARE follows the dealer siblings and TOTAL TATA SHARE the manufacturer ones.
func AggregateShares(in *ledger.Table, cls *classify.Classification) (*ledger.Table, error) {
	additional := normalizedNames(cls.Members(classify.Additional))
	dealer := normalizedNames(cls.Members(classify.DealerShare))
	mfr := normalizedNames(cls.Members(classify.ManufacturerShare))
	if err := in.RequireNumeric(append(dealer, mfr...)...); err != nil {
		return nil, err
	}

	out := in.Clone()
	anchor := lastOf(out, append(append([]string{ledger.ColTaxMultiplier}, additional...), dealer...))
	if err := out.InsertColumn(anchor, ledger.ColDealerShareTotal, sumColumns(out, dealer)); err != nil {
		return nil, err
	}
	anchor = lastOf(out, append([]string{ledger.ColDealerShareTotal}, mfr...))
	if err := out.InsertColumn(anchor, ledger.ColMfrShareTotal, sumColumns(out, mfr)); err != nil {
		return nil, err
	}
	return out, nil
}

// categoryOrder lists the classified columns grouped by category, each once
func categoryOrder(cls *classify.Classification) []string {
	seen := make(map[string]bool)
	var out []string
	for _, cat := range classify.Categories {
		for _, col := range cls.Members(cat) {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}

// lastOf returns the right-most of cols present in t, or "" when none is
func lastOf(t *ledger.Table, cols []string) string {
	last, at := "", -1
	for _, c := range cols {
		if j := t.ColumnIndex(c); j > at {
			last, at = c, j
		}
	}
	return last
}

func normalizedNames(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ledger.Normalized(c)
	}
	return out
}

func sumColumns(t *ledger.Table, cols []string) []ledger.Value {
	values := make([]ledger.Value, t.Len())
	for i := range values {
		total := decimal.Zero
		for _, c := range cols {
			total = total.Add(t.Number(i, c))
		}
		values[i] = ledger.Num(total)
	}
	return values
}
