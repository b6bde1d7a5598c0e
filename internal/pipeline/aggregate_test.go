package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

func TestAppendAggregateRow(t *testing.T) {
	in := ledger.MustTable(
		[]string{"SNO", ledger.ColLocation, ledger.ColModel, ledger.ColUnits, ledger.ColJoinedDiscount, ledger.ColMargin},
		[]ledger.Value{ledger.Int(1), ledger.Str("Pune"), ledger.Str("Nexon"), ledger.Int(1), ledger.Int(5000), ledger.Int(80000)},
		[]ledger.Value{ledger.Int(2), ledger.Str("Mumbai"), ledger.Str("Punch"), ledger.Int(1), ledger.Int(3000), ledger.Int(40000)},
		[]ledger.Value{ledger.Int(7), ledger.Str("Pune"), ledger.Str("Nexon"), ledger.Int(2), ledger.Empty(), ledger.Int(160000)},
	)

	out, err := AppendAggregateRow(in)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())

	last := out.Len() - 1
	assert.Equal(t, "3", out.Cell(last, "SNO").String(), "sequence holds the record count")
	assert.Equal(t, "4", out.Cell(last, ledger.ColUnits).String(), "units are summed")
	assert.Equal(t, "Total (3)", out.Cell(last, ledger.ColLocation).String())
	assert.True(t, out.Cell(last, ledger.ColModel).IsAbsent())
	assert.Equal(t, "280000", out.Cell(last, ledger.ColMargin).String())

	assert.False(t, out.Has(ledger.ColJoinedDiscount))
	assert.Equal(t, "8000", out.Cell(last, ledger.ColDiscountCredit).String())
	assert.True(t, ledger.HasAggregateRow(out))
	assert.Equal(t, 3, in.Len(), "input untouched")
}

func TestAppendAggregateRowEmpty(t *testing.T) {
	in := ledger.MustTable([]string{ledger.ColLocation, ledger.ColJoinedDiscount})
	_, err := AppendAggregateRow(in)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeJoinIntegrity))
}
