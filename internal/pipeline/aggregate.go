package pipeline

import (
	"github.com/shopspring/decimal"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

// AppendAggregateRow appends the totals row and renames the joined discount column to
// its report name.
//
// Numeric columns other than the sequence column are summed. The sequence column holds
// the record count and the location column holds "Total (N)"; every other cell is absent.
// The unit-count column is numeric, so it carries the total number of units.
func AppendAggregateRow(in *ledger.Table) (*ledger.Table, error) {
	if in.Len() == 0 {
		return nil, apperrors.NewJoinIntegrityError("cannot build an aggregate row for an empty ledger")
	}
	if err := in.Require(ledger.ColJoinedDiscount); err != nil {
		return nil, err
	}

	out := in.Clone()
	records := out.Len()
	seqCol := ledger.SequenceColumn(out)
	locCol := ledger.LocationColumn(out)

	total := make(map[string]ledger.Value, len(out.Columns()))
	for _, col := range out.Columns() {
		switch {
		case col != seqCol && out.IsNumeric(col):
			sum := decimal.Zero
			for i := 0; i < records; i++ {
				sum = sum.Add(out.Number(i, col))
			}
			total[col] = ledger.Num(sum)
		case col == seqCol:
			total[col] = ledger.Int(int64(records))
		case col == locCol:
			total[col] = ledger.Str(ledger.AggregateLabel(records))
		}
	}
	out.AppendRecord(total)

	if err := out.Rename(ledger.ColJoinedDiscount, ledger.ColDiscountCredit); err != nil {
		return nil, err
	}
	return out, nil
}
