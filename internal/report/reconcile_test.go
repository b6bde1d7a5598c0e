package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
	"marginreco/internal/shared/testutil"
)

func TestReconcile(t *testing.T) {
	rec, err := Reconcile(sampleLedger(t), ReconcileOptions{})
	require.NoError(t, err)

	require.Len(t, rec.PriceBased, 2)
	assert.Equal(t, "Mumbai", rec.PriceBased[0].Location, "groups are sorted")
	assert.Equal(t, "Pune", rec.PriceBased[1].Location)

	pune := rec.PriceBased[1]
	assert.Equal(t, "3000000", pune.Sale.String())
	assert.Equal(t, "48000", pune.Discount.String())
	assert.Equal(t, "2952000", pune.NetSale.String())
	assert.Equal(t, "252000", pune.Profit.String())

	assert.Equal(t, "48000", rec.Discounts[1].TotalDiscount.String())
	assert.True(t, rec.Discounts[1].Difference.IsZero())

	assert.Equal(t, "-12000", rec.ShareBased[1].Balance.String())
	assert.Equal(t, "-2000", rec.ShareBased[0].Balance.String())

	assert.Equal(t, int64(testutil.SampleTotalMargin), rec.Total.IntPart())
	assert.Equal(t, int64(testutil.SampleTotalMargin), rec.TotalMargin.IntPart())
	assert.True(t, rec.Consistent())
	assert.False(t, rec.LastGroupTotal)
}

func TestReconcileDetectsInconsistency(t *testing.T) {
	tbl := sampleLedger(t)
	setCell(t, tbl, 0, ledger.ColRecordedDiscount, ledger.Int(17000))

	rec, err := Reconcile(tbl, ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.Equal(t, "1000", rec.Diff.String())
	assert.Equal(t, "1000", rec.Discounts[1].Difference.Neg().String())
}

func TestReconcileDetectsMarginPerturbation(t *testing.T) {
	tbl := sampleLedger(t)
	setCell(t, tbl, 0, ledger.ColMargin, ledger.Int(80001))

	rec, err := Reconcile(tbl, ReconcileOptions{})
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.Equal(t, "1", rec.Diff.String())
	assert.Equal(t, "280001", rec.TotalMargin.String())
}

func TestReconcileLastGroupTotal(t *testing.T) {
	rec, err := Reconcile(sampleLedger(t), ReconcileOptions{LastGroupTotal: true})
	require.NoError(t, err)

	require.Len(t, rec.PriceBased, 3, "aggregate row forms its own group")
	assert.Equal(t, ledger.AggregateLabel(testutil.SampleRecords), rec.PriceBased[2].Location)
	assert.Equal(t, "294000", rec.PriceBased[2].Profit.String())
	assert.Equal(t, "-14000", rec.ShareBased[2].Balance.String())
	assert.Equal(t, int64(testutil.SampleTotalMargin), rec.Total.IntPart())
	assert.True(t, rec.Consistent())
	assert.True(t, rec.LastGroupTotal)
}

func TestReconcileRequiresColumns(t *testing.T) {
	tbl := sampleLedger(t)
	tbl.Drop(ledger.ColDiscountCredit)

	_, err := Reconcile(tbl, ReconcileOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}
