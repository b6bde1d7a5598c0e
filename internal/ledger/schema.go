package ledger

import (
	"fmt"
	"strings"
)

// Primary ledger columns. Header strings are the schema contract of the dealer
// management system export; renaming any of them breaks ingestion.
const (
	ColSequence              = "SNO"
	ColLocation              = "Location"
	ColModel                 = "Model"
	ColVehicleID             = "ChassisNo"
	ColUnits                 = "COUNT"
	ColSalePrice             = "Sale Price(+)"
	ColPurchasePrice         = "Purchase Price(-)"
	ColGSTRate               = "GST%"
	ColCessRate              = "CESS%"
	ColRecordedDiscount      = "Discount-DBT(-)"
	ColAdditionalDiscount    = "AdditionalDiscount"
	ColAdditionalAccessories = "AdditionalFreeAcc(-)"
	ColCommission            = "DSAComission(-)"
)

// Secondary (discount) ledger columns.
const (
	ColDiscountVehicleID = "Chassis_No"
	ColJoinedDiscount    = "Total Discount"
)

// Derived columns.
const (
	ColTaxMultiplier     = "gst"
	ColPriceDelta        = "purchase -sales"
	ColDealerShareTotal  = "TOTAL DLR SHARE"
	ColMfrShareTotal     = "TOTAL TATA SHARE"
	ColMargin            = "Margin"
	ColDiscountCredit    = "Tata DMS Credit"
	NormalizedColumnMark = " "
)

// PrimaryRequired lists the columns every primary ledger must carry.
var PrimaryRequired = []string{
	ColLocation,
	ColModel,
	ColVehicleID,
	ColUnits,
	ColSalePrice,
	ColPurchasePrice,
	ColGSTRate,
	ColCessRate,
	ColRecordedDiscount,
	ColAdditionalDiscount,
	ColAdditionalAccessories,
	ColCommission,
}

// PrimaryNumeric lists the required primary columns that must hold numbers.
var PrimaryNumeric = []string{
	ColUnits,
	ColSalePrice,
	ColPurchasePrice,
	ColGSTRate,
	ColCessRate,
	ColRecordedDiscount,
	ColAdditionalDiscount,
	ColAdditionalAccessories,
	ColCommission,
}

// SecondaryRequired lists the columns the discount ledger must carry.
var SecondaryRequired = []string{ColDiscountVehicleID, ColJoinedDiscount}

// DefaultDropColumns are export columns unrelated to margins. They are removed before
// classification so that their names cannot land in a share category.
var DefaultDropColumns = []string{
	"Address", "City", "Locality", "PinCode", "Customer PhoneNo", "Mobile No", "Color Code", "Color", "Source",
	"Manuf. Discount(-)", "GatePass No.", "GatePass Date", "Registration Amount-RDTAX(+)",
	"Insurance Amount-INSU(+)", "Logistics Charges-HANDL(+)", "Extended Warranty-EXTWAR(+)",
	"Accessories Amount-ACCA", "HSRP Charges-HSRP(+)", "FASTAG Charges-FASTAG(+)", "AMC Charges-AMC(+)",
	"Other Charges-OTHCHG(+)", "DISCOUNT ON INSURANC-DAT(-)", "OP_SGST_RTO-OPSGSTRTO1(+)",
	"OP_CGSTEV_RTO-OPCGSTEVRT1(+)", "RTO CHARGES-RTO(+)", "RDTAX (Paid)(-)", "INSU (Paid)(-)", "HANDL (Paid)(-)",
	"EXTWAR (Paid)(-)", "HSRP (Paid)(-)", "FASTAG (Paid)(-)", "AMC (Paid)(-)", "OTHCHG (Paid)(-)",
	"OP_SGST_RTO (Paid)(-)", "OP_CGSTEV_RT (Paid)(-)", "RTO (Paid)(-)", "ACC_Paid(-)", "Consumer Offer(Cash)",
	"Consumer Offer(Acc)(-)", "CorpDisc_Dealer", "CorpDisc_Mfr(+)", "Voucher Credit(+)", "Voucher Debit(-)",
	"InterestAmt(-)", "Accessories Free Scheme Dlr Share", "Accessories Free Scheme Mfr Share",
	"Discounts on Insurance", "EW Free Scheme Dlr Share", "EW Free Scheme Mfr Share", "Actual Acc. Amount Used(+)",
	"Supplement Purchase Invoice No", "Supplement Purchase Invoice Amount(-)", "Debit Note No",
	"Debit Note Amount(+)", "Profit", "Profit With Interest", "DSA Adjustment",
}

// Normalized returns the name of the pre-tax sibling of a charge column.
func Normalized(col string) string {
	return col + NormalizedColumnMark
}

// ValidatePrimary checks the primary ledger header and numeric columns once at ingestion.
func ValidatePrimary(t *Table) error {
	if err := t.Require(PrimaryRequired...); err != nil {
		return err
	}
	return t.RequireNumeric(PrimaryNumeric...)
}

// ValidateSecondary checks the discount ledger header.
func ValidateSecondary(t *Table) error {
	if err := t.Require(SecondaryRequired...); err != nil {
		return err
	}
	return t.RequireNumeric(ColJoinedDiscount)
}

// AggregateLabel is the location label of the aggregate row.
func AggregateLabel(records int) string {
	return fmt.Sprintf("Total (%d)", records)
}

// HasAggregateRow reports whether the last row carries the aggregate location label.
func HasAggregateRow(t *Table) bool {
	if t.Len() == 0 {
		return false
	}
	last := t.Len() - 1
	return t.Cell(last, LocationColumn(t)).String() == AggregateLabel(last)
}

// SequenceColumn returns the table's sequence column name, matched case-insensitively, or "".
func SequenceColumn(t *Table) string {
	return findFold(t, ColSequence)
}

// LocationColumn returns the table's location column name, matched case-insensitively.
func LocationColumn(t *Table) string {
	if c := findFold(t, ColLocation); c != "" {
		return c
	}
	return ColLocation
}

func findFold(t *Table, name string) string {
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return ""
}
