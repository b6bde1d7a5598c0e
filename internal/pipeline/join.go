package pipeline

import (
	"fmt"

	apperrors "marginreco/internal/errors"
	"marginreco/internal/ledger"
)

// JoinStats describes what the discount join kept and discarded
type JoinStats struct {
	PrimaryRecords      int `json:"primary_records"`
	SecondaryRows       int `json:"secondary_rows"`
	UniqueIdentifiers   int `json:"unique_identifiers"`
	DuplicatesCollapsed int `json:"duplicates_collapsed"`
	Matched             int `json:"matched"`
	Dropped             int `json:"dropped"`
}

// DedupDiscounts keeps the first discount row seen for each vehicle identifier.
// Rows without an identifier are skipped.
func DedupDiscounts(secondary *ledger.Table) (map[string]ledger.Value, int) {
	discounts := make(map[string]ledger.Value, secondary.Len())
	duplicates := 0
	for i := 0; i < secondary.Len(); i++ {
		key := secondary.Cell(i, ledger.ColDiscountVehicleID).Key()
		if key == "" {
			continue
		}
		if _, seen := discounts[key]; seen {
			duplicates++
			continue
		}
		discounts[key] = secondary.Cell(i, ledger.ColJoinedDiscount)
	}
	return discounts, duplicates
}

// JoinDiscounts inner-joins the discount ledger onto the primary ledger by vehicle
// identifier. Primary order is preserved and unmatched records are dropped; the helper
// key column is not carried over.
func JoinDiscounts(primary, secondary *ledger.Table) (*ledger.Table, JoinStats, error) {
	stats := JoinStats{PrimaryRecords: primary.Len(), SecondaryRows: secondary.Len()}

	if err := primary.Require(ledger.ColVehicleID); err != nil {
		return nil, stats, err
	}
	if err := ledger.ValidateSecondary(secondary); err != nil {
		return nil, stats, err
	}
	if primary.Has(ledger.ColJoinedDiscount) {
		return nil, stats, apperrors.NewSchemaError(fmt.Sprintf("primary ledger already has a %q column", ledger.ColJoinedDiscount))
	}

	discounts, duplicates := DedupDiscounts(secondary)
	stats.UniqueIdentifiers = len(discounts)
	stats.DuplicatesCollapsed = duplicates
	if len(discounts) == 0 {
		return nil, stats, apperrors.NewJoinIntegrityError("discount ledger has no rows with a vehicle identifier")
	}

	out, err := ledger.NewTable(append(primary.Columns(), ledger.ColJoinedDiscount))
	if err != nil {
		return nil, stats, err
	}
	for i := 0; i < primary.Len(); i++ {
		discount, ok := discounts[primary.Cell(i, ledger.ColVehicleID).Key()]
		if !ok {
			continue
		}
		if err := out.AppendRow(append(primary.Row(i), discount)); err != nil {
			return nil, stats, err
		}
	}

	stats.Matched = out.Len()
	stats.Dropped = stats.PrimaryRecords - stats.Matched
	if stats.Matched == 0 {
		return nil, stats, apperrors.NewJoinIntegrityError(fmt.Sprintf("none of %d records matched the discount ledger", stats.PrimaryRecords)).
			WithContext("primary_records", stats.PrimaryRecords).
			WithContext("unique_identifiers", stats.UniqueIdentifiers)
	}
	return out, stats, nil
}
