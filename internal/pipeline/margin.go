package pipeline

import (
	"github.com/shopspring/decimal"

	"marginreco/internal/ledger"
)

// marginInputs are read by ComputeMargin; the normalized siblings exist only when the
// classifier tagged their originals as Additional.
var marginInputs = []string{
	ledger.ColSalePrice,
	ledger.ColPurchasePrice,
	ledger.ColJoinedDiscount,
	ledger.Normalized(ledger.ColAdditionalDiscount),
	ledger.ColDealerShareTotal,
	ledger.Normalized(ledger.ColAdditionalAccessories),
	ledger.ColCommission,
}

// PriceDelta is round(sale - purchase - discount).
func PriceDelta(sale, purchase, discount decimal.Decimal) decimal.Decimal {
	return sale.Sub(purchase).Sub(discount).RoundBank(0)
}

// Margin is round(delta - additional discount - dealer share - accessories - commission).
func Margin(delta, additional, dealerShare, accessories, commission decimal.Decimal) decimal.Decimal {
	return delta.Sub(additional).Sub(dealerShare).Sub(accessories).Sub(commission).RoundBank(0)
}

// ComputeMargin adds the price delta column after gst and the margin column after
// TOTAL TATA SHARE.
func ComputeMargin(in *ledger.Table) (*ledger.Table, error) {
	if err := in.RequireNumeric(marginInputs...); err != nil {
		return nil, err
	}

	out := in.Clone()
	n := out.Len()
	deltas := make([]ledger.Value, n)
	margins := make([]ledger.Value, n)
	for i := 0; i < n; i++ {
		delta := PriceDelta(
			out.Number(i, ledger.ColSalePrice),
			out.Number(i, ledger.ColPurchasePrice),
			out.Number(i, ledger.ColJoinedDiscount),
		)
		deltas[i] = ledger.Num(delta)
		margins[i] = ledger.Num(Margin(
			delta,
			out.Number(i, ledger.Normalized(ledger.ColAdditionalDiscount)),
			out.Number(i, ledger.ColDealerShareTotal),
			out.Number(i, ledger.Normalized(ledger.ColAdditionalAccessories)),
			out.Number(i, ledger.ColCommission),
		))
	}
	if err := out.InsertColumn(ledger.ColTaxMultiplier, ledger.ColPriceDelta, deltas); err != nil {
		return nil, err
	}
	if err := out.InsertColumn(ledger.ColMfrShareTotal, ledger.ColMargin, margins); err != nil {
		return nil, err
	}
	return out, nil
}
