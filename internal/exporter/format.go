package exporter

import (
	"github.com/shopspring/decimal"

	"marginreco/internal/ledger"
)

// cellValue converts a ledger cell to what excelize stores; nil leaves the cell empty.
func cellValue(v ledger.Value) interface{} {
	switch v.Kind() {
	case ledger.Number:
		return number(v.Decimal())
	case ledger.Text:
		return v.String()
	default:
		return nil
	}
}

// number keeps integral amounts as integers so they render without a fraction
func number(d decimal.Decimal) interface{} {
	if d.IsInteger() {
		return d.IntPart()
	}
	return d.InexactFloat64()
}

func nullNumber(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return number(d.Decimal)
}

// rendered is the text width source for a stored value
func rendered(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return decimal.NewFromInt(x).String()
	case float64:
		return decimal.NewFromFloat(x).String()
	default:
		return ""
	}
}
