// Package report builds the reporting views of a derived margin ledger: the trimmed
// ledger, the per-location summary and the reconciliation check.
package report

import (
	"marginreco/internal/ledger"
)

// Report bundles every view emitted for one run
type Report struct {
	Ledger         *ledger.Table
	Trimmed        *ledger.Table
	Summary        *Summary
	Reconciliation *Reconciliation
}

// Build derives all views from a ledger that ends with its aggregate row.
func Build(t *ledger.Table, opts ReconcileOptions) (*Report, error) {
	summary, err := BuildSummary(t)
	if err != nil {
		return nil, err
	}
	rec, err := Reconcile(t, opts)
	if err != nil {
		return nil, err
	}
	return &Report{
		Ledger:         t,
		Trimmed:        Trim(t),
		Summary:        summary,
		Reconciliation: rec,
	}, nil
}

// Trim removes every column whose aggregate-row value is exactly zero. Only the last
// row is inspected; absent or text cells keep their column.
func Trim(t *ledger.Table) *ledger.Table {
	out := t.Clone()
	out.Drop(ZeroColumns(t)...)
	return out
}

// ZeroColumns lists the columns Trim removes
func ZeroColumns(t *ledger.Table) []string {
	if t.Len() == 0 {
		return nil
	}
	last := t.Len() - 1
	var zero []string
	for _, col := range t.Columns() {
		if t.Cell(last, col).IsZero() {
			zero = append(zero, col)
		}
	}
	return zero
}
