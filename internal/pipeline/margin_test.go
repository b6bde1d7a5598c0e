package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

func TestPriceDeltaAndMargin(t *testing.T) {
	delta := PriceDelta(dec("1000000"), dec("900000"), dec("5000"))
	assert.True(t, delta.Equal(dec("95000")))

	margin := Margin(delta, dec("10000"), dec("2000"), dec("1000"), dec("2000"))
	assert.True(t, margin.Equal(dec("80000")))

	assert.True(t, PriceDelta(dec("10.5"), dec("0"), dec("0")).Equal(dec("10")), "half to even")
}

func TestComputeMargin(t *testing.T) {
	in := ledger.MustTable(marginInputs, []ledger.Value{
		ledger.Int(700000), ledger.Int(650000), ledger.Int(3000), ledger.Int(5000),
		ledger.Int(1000), ledger.Empty(), ledger.Int(1000),
	})

	out, err := ComputeMargin(in)
	require.NoError(t, err)
	assert.Equal(t, "47000", out.Cell(0, ledger.ColPriceDelta).String())
	assert.Equal(t, "40000", out.Cell(0, ledger.ColMargin).String())
}

func TestComputeMarginRequiresInputs(t *testing.T) {
	in := ledger.MustTable([]string{ledger.ColSalePrice, ledger.ColPurchasePrice})
	_, err := ComputeMargin(in)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
	assert.Contains(t, err.Error(), ledger.ColJoinedDiscount)
}
