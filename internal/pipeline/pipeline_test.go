package pipeline

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
	"marginreco/internal/shared/testutil"
)

func TestPipelineRun(t *testing.T) {
	primary, secondary := testutil.SampleTables()
	logger, logs := testutil.NewTestLogger(t)

	p := New(Options{DropColumns: ledger.DefaultDropColumns}, logger)
	res, err := p.Run(context.Background(), primary, secondary)
	require.NoError(t, err)

	out := res.Ledger
	assert.Equal(t, testutil.SampleRecords, res.Records())
	assert.False(t, out.Has("Address"), "unrelated columns dropped")
	assert.True(t, primary.Has("Address"), "input untouched")

	assert.Equal(t, []string{
		"SNO", "Location", "Model", "ChassisNo", "COUNT", "Sale Price(+)", "Purchase Price(-)",
		"GST%", "CESS%", "Discount-DBT(-)", "AdditionalDiscount", "AdditionalFreeAcc(-)", "DSAComission(-)",
		"Dlr Share Retail Support", "Tata Share Retail Support",
		"gst", "purchase -sales", "AdditionalDiscount ", "AdditionalFreeAcc(-) ",
		"Dlr Share Retail Support ", "TOTAL DLR SHARE",
		"Tata Share Retail Support ", "TOTAL TATA SHARE", "Margin", "Tata DMS Credit",
	}, out.Columns())

	margins := []string{"80000", "40000", "160000"}
	for i, want := range margins {
		assert.Equal(t, want, out.Cell(i, ledger.ColMargin).String(), "record %d", i)
	}

	last := out.Len() - 1
	assert.Equal(t, "Total (3)", out.Cell(last, ledger.ColLocation).String())
	assert.Equal(t, "280000", out.Cell(last, ledger.ColMargin).String())
	assert.Equal(t, "4", out.Cell(last, ledger.ColUnits).String())
	assert.Equal(t, "18000", out.Cell(last, ledger.ColDiscountCredit).String())

	assert.Equal(t, testutil.SampleDropped, res.Join.Dropped)
	assert.Equal(t, testutil.SampleDuplicates, res.Join.DuplicatesCollapsed)
	assert.Equal(t, 2, res.Classification.Counts()["Additional"])

	require.Len(t, res.Stages, 6)
	for _, st := range res.Stages {
		assert.Equal(t, StageStatusCompleted, st.Status, st.ID)
	}
	assert.Equal(t, StageLedgerJoin, res.Stages[3].ID)
	assert.Equal(t, 4, res.Stages[3].RowsIn)
	assert.Equal(t, 3, res.Stages[3].RowsOut)

	testutil.AssertLogContains(t, logs, slog.LevelWarn, "records without a discount ledger entry dropped")
}

func TestPipelineRepeatedVehicleIdentifier(t *testing.T) {
	primary, _ := testutil.SampleTables()
	ids := primary.Column(ledger.ColVehicleID)
	ids[2] = ledger.Str("MAT001")
	require.NoError(t, primary.SetColumn(ledger.ColVehicleID, ids))
	secondary := discountTable(
		[]ledger.Value{ledger.Str("MAT001"), ledger.Int(500)},
		[]ledger.Value{ledger.Str("MAT001"), ledger.Int(700)},
	)

	res, err := New(Options{DropColumns: ledger.DefaultDropColumns}, nil).Run(context.Background(), primary, secondary)
	require.NoError(t, err)
	require.Equal(t, 2, res.Records())
	assert.Equal(t, 2, res.Join.Matched)

	out := res.Ledger
	for i := 0; i < res.Records(); i++ {
		assert.Equal(t, "MAT001", out.Cell(i, ledger.ColVehicleID).String())
		assert.Equal(t, "500", out.Cell(i, ledger.ColDiscountCredit).String(), "record %d", i)
	}
	assert.Equal(t, "84500", out.Cell(0, ledger.ColMargin).String())
	assert.Equal(t, "169500", out.Cell(1, ledger.ColMargin).String())
	assert.Equal(t, "1000", out.Cell(out.Len()-1, ledger.ColDiscountCredit).String())
}

func TestPipelineReportsFailingStage(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(primary, secondary *ledger.Table) (*ledger.Table, *ledger.Table)
		stage   string
		errType apperrors.ErrorType
	}{
		{
			name: "missing primary column",
			mutate: func(p, s *ledger.Table) (*ledger.Table, *ledger.Table) {
				p.Drop(ledger.ColCommission)
				return p, s
			},
			stage:   StagePrepare,
			errType: apperrors.ErrTypeSchema,
		},
		{
			name: "non-positive tax multiplier",
			mutate: func(p, s *ledger.Table) (*ledger.Table, *ledger.Table) {
				gst := p.Column(ledger.ColGSTRate)
				gst[1] = ledger.Int(-122)
				if err := p.SetColumn(ledger.ColGSTRate, gst); err != nil {
					panic(err)
				}
				return p, s
			},
			stage:   StageTaxNormalize,
			errType: apperrors.ErrTypeDivision,
		},
		{
			name: "no matching discounts",
			mutate: func(p, _ *ledger.Table) (*ledger.Table, *ledger.Table) {
				return p, discountTable([]ledger.Value{ledger.Str("NOPE"), ledger.Int(1)})
			},
			stage:   StageLedgerJoin,
			errType: apperrors.ErrTypeJoinIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary, secondary := tt.mutate(testutil.SampleTables())
			res, err := New(Options{}, nil).Run(context.Background(), primary, secondary)
			require.Error(t, err)
			assert.Equal(t, tt.stage, FailedStage(err))
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)

			failed := res.Stages[len(res.Stages)-1]
			assert.Equal(t, StageStatusFailed, failed.Status)
			assert.NotEmpty(t, failed.Error)
		})
	}
}

func TestPipelineOverlapMode(t *testing.T) {
	primary, secondary := testutil.SampleTables()
	require.NoError(t, primary.Rename("Tata Share Retail Support", "Tata Dlr Share"))

	_, err := New(Options{}, nil).Run(context.Background(), primary, secondary)
	require.Error(t, err)
	assert.Equal(t, StagePrepare, FailedStage(err))

	res, err := New(Options{AllowOverlap: true}, nil).Run(context.Background(), primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Classification.Overlapping())
	// the overlapping column now counts as a dealer share too, lowering the first margin by 4000
	assert.Equal(t, "76000", res.Ledger.Cell(0, ledger.ColMargin).String())
}
