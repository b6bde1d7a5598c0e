package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginreco/internal/classify"
	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTaxMultiplier(t *testing.T) {
	assert.True(t, TaxMultiplier(dec("28"), dec("22")).Equal(dec("150")))
	assert.True(t, TaxMultiplier(dec("0"), dec("0")).Equal(dec("100")))
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		gst     string
		want    string
		wantErr bool
	}{
		{name: "exact", raw: "15000", gst: "150", want: "10000"},
		{name: "rounds down", raw: "1", gst: "3", want: "33"},
		{name: "half to even up", raw: "3", gst: "200", want: "2"},
		{name: "half to even down", raw: "5", gst: "200", want: "2"},
		{name: "negative amount", raw: "-300", gst: "150", want: "-200"},
		{name: "zero multiplier", raw: "100", gst: "0", wantErr: true},
		{name: "negative multiplier", raw: "100", gst: "-5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAmount(dec(tt.raw), dec(tt.gst))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDivision))
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func chargeTable(gst, cess int64) *ledger.Table {
	return ledger.MustTable(
		[]string{ledger.ColVehicleID, ledger.ColGSTRate, ledger.ColCessRate, "AdditionalDiscount", "Dlr Share", "Tata Share", "Tata Bonus"},
		[]ledger.Value{ledger.Str("MAT1"), ledger.Int(gst), ledger.Int(cess), ledger.Int(15000), ledger.Int(3000), ledger.Int(6000), ledger.Empty()},
	)
}

func classifyColumns(t *testing.T, tbl *ledger.Table) *classify.Classification {
	t.Helper()
	cls, err := classify.NewClassifier(nil, false).Classify(tbl.Columns())
	require.NoError(t, err)
	return cls
}

func TestNormalizeTax(t *testing.T) {
	in := chargeTable(28, 22)
	cls := classifyColumns(t, in)

	out, err := NormalizeTax(in, cls)
	require.NoError(t, err)

	assert.Equal(t, "150", out.Cell(0, ledger.ColTaxMultiplier).String())
	assert.Equal(t, "10000", out.Cell(0, "AdditionalDiscount ").String())
	assert.Equal(t, "2000", out.Cell(0, "Dlr Share ").String())
	assert.Equal(t, "4000", out.Cell(0, "Tata Share ").String())
	assert.Equal(t, "0", out.Cell(0, "Tata Bonus ").String(), "blank charge normalizes to zero")

	assert.Equal(t, "15000", out.Cell(0, "AdditionalDiscount").String(), "original kept")
	assert.False(t, in.Has(ledger.ColTaxMultiplier), "input untouched")
}

func TestNormalizeTaxRejectsNonPositiveMultiplier(t *testing.T) {
	in := chargeTable(-100, 0)
	_, err := NormalizeTax(in, classifyColumns(t, in))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDivision))
	assert.Contains(t, err.Error(), "MAT1")
}

func TestAggregateShares(t *testing.T) {
	in := chargeTable(28, 22)
	cls := classifyColumns(t, in)
	normalized, err := NormalizeTax(in, cls)
	require.NoError(t, err)

	out, err := AggregateShares(normalized, cls)
	require.NoError(t, err)
	assert.Equal(t, "2000", out.Cell(0, ledger.ColDealerShareTotal).String())
	assert.Equal(t, "4000", out.Cell(0, ledger.ColMfrShareTotal).String())
}

func TestAggregateSharesWithoutMembers(t *testing.T) {
	in := ledger.MustTable([]string{ledger.ColGSTRate, ledger.ColCessRate},
		[]ledger.Value{ledger.Int(0), ledger.Int(0)})
	cls := classifyColumns(t, in)

	out, err := AggregateShares(in, cls)
	require.NoError(t, err)
	assert.Equal(t, "0", out.Cell(0, ledger.ColDealerShareTotal).String())
	assert.Equal(t, "0", out.Cell(0, ledger.ColMfrShareTotal).String())
}

func TestAggregateSharesRoundsBeforeSumming(t *testing.T) {
	// At a multiplier of 150 each 1 normalizes to round(0.67) = 1, while the raw sum
	// 2 would normalize to round(1.33) = 1.
	charges := map[string]int64{"Dlr A": 1, "Dlr B": 1, "Tata X": 1, "Tata Y": 2, "AdditionalDiscount": 3}
	tests := []struct {
		name    string
		header  []string
		columns []string
	}{
		{
			name:   "header order",
			header: []string{"AdditionalDiscount", "Dlr A", "Dlr B", "Tata X", "Tata Y"},
			columns: []string{"AdditionalDiscount ", "Dlr A ", "Dlr B ", ledger.ColDealerShareTotal,
				"Tata X ", "Tata Y ", ledger.ColMfrShareTotal},
		},
		{
			name:   "permuted",
			header: []string{"Tata Y", "Dlr B", "AdditionalDiscount", "Tata X", "Dlr A"},
			columns: []string{"AdditionalDiscount ", "Dlr B ", "Dlr A ", ledger.ColDealerShareTotal,
				"Tata Y ", "Tata X ", ledger.ColMfrShareTotal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := append([]string{ledger.ColVehicleID, ledger.ColGSTRate, ledger.ColCessRate}, tt.header...)
			row := []ledger.Value{ledger.Str("MAT1"), ledger.Int(28), ledger.Int(22)}
			for _, h := range tt.header {
				row = append(row, ledger.Int(charges[h]))
			}
			in := ledger.MustTable(cols, row)
			cls := classifyColumns(t, in)

			normalized, err := NormalizeTax(in, cls)
			require.NoError(t, err)
			out, err := AggregateShares(normalized, cls)
			require.NoError(t, err)

			assert.Equal(t, "2", out.Cell(0, ledger.ColDealerShareTotal).String())
			assert.Equal(t, "2", out.Cell(0, ledger.ColMfrShareTotal).String())
			want := append(append(cols, ledger.ColTaxMultiplier), tt.columns...)
			assert.Equal(t, want, out.Columns())
		})
	}
}
