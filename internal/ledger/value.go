package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the type of a cell
type Kind uint8

const (
	// Absent marks an empty cell
	Absent Kind = iota
	// Number marks a numeric cell
	Number
	// Text marks a non-numeric cell
	Text
)

// Value is a single ledger cell.
type Value struct {
	kind Kind
	num  decimal.Decimal
	text string
}

// Empty returns an absent cell
func Empty() Value {
	return Value{}
}

// Num returns a numeric cell
func Num(d decimal.Decimal) Value {
	return Value{kind: Number, num: d}
}

// Int returns a numeric cell holding an integer
func Int(i int64) Value {
	return Num(decimal.NewFromInt(i))
}

// Str returns a text cell
func Str(s string) Value {
	return Value{kind: Text, text: s}
}

// Kind returns the cell kind
func (v Value) Kind() Kind {
	return v.kind
}

// IsNumber reports whether the cell holds a number
func (v Value) IsNumber() bool {
	return v.kind == Number
}

// IsAbsent reports whether the cell is empty
func (v Value) IsAbsent() bool {
	return v.kind == Absent
}

// Decimal returns the numeric value. Absent and text cells read as zero.
func (v Value) Decimal() decimal.Decimal {
	if v.kind == Number {
		return v.num
	}
	return decimal.Zero
}

// String renders the cell the way it is shown in reports
func (v Value) String() string {
	switch v.kind {
	case Number:
		return v.num.String()
	case Text:
		return v.text
	default:
		return ""
	}
}

// Key returns the join key form of the cell
func (v Value) Key() string {
	return strings.TrimSpace(v.String())
}

// Equal compares kind and content; numbers compare by value
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Number:
		return v.num.Equal(o.num)
	case Text:
		return v.text == o.text
	default:
		return true
	}
}

// IsZero reports whether the cell is a number equal to zero.
// Absent cells are not zero.
func (v Value) IsZero() bool {
	return v.kind == Number && v.num.IsZero()
}
