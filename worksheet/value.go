package worksheet

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/TsubasaBE/go-xlsx/xldate"
)

// ErrValueKind is returned when a value is read as a kind it does not
// hold, or built from input its kind does not allow.
var ErrValueKind = errors.New("worksheet: wrong value kind")

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindBool
	KindString
	KindError
	KindDate
)

var kindNames = [...]string{"empty", "number", "bool", "string", "error", "date"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrorCodes lists the cell error values a document may hold.
var ErrorCodes = []string{"#NULL!", "#DIV/0!", "#VALUE!", "#REF!", "#NAME?", "#NUM!", "#N/A", "#GETTING_DATA"}

// Value is a cell value: exactly one of empty, number, boolean, text, error
// code or date.  Conversions between kinds are explicit; the accessors fail
// with ErrValueKind rather than coerce.
//
// The zero Value is empty.
type Value struct {
	kind   Kind
	num    float64 // number; date serial
	str    string  // text; error code; date format hint
	b      bool
	inline bool // text stored in the cell rather than the shared-string table
}

// Empty returns the empty value.
func Empty() Value { return Value{} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Boolean returns a boolean value.
func Boolean(b bool) Value { return Value{kind: KindBool, b: b} }

// Text returns a text value stored through the shared-string table.
func Text(s string) Value { return Value{kind: KindString, str: s} }

// InlineText returns a text value stored inside the cell itself.
func InlineText(s string) Value { return Value{kind: KindString, str: s, inline: true} }

// ErrorCode returns an error value.  code must be one of ErrorCodes.
func ErrorCode(code string) (Value, error) {
	for _, c := range ErrorCodes {
		if c == code {
			return Value{kind: KindError, str: code}, nil
		}
	}
	return Value{}, fmt.Errorf("%w: unknown error code %q", ErrValueKind, code)
}

// DateSerial returns a date value from a serial number.  format is the
// number-format code used to display it; "" lets the worksheet choose.
func DateSerial(serial float64, format string) (Value, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 {
		return Value{}, fmt.Errorf("%w: invalid date serial %v", ErrValueKind, serial)
	}
	return Value{kind: KindDate, num: serial, str: format}, nil
}

// Date returns a date value for t in the given date system.
func Date(t time.Time, date1904 bool, format string) (Value, error) {
	serial, err := xldate.FromTime(t, date1904)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrValueKind, err)
	}
	return Value{kind: KindDate, num: serial, str: format}, nil
}

// Kind returns the variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is the empty value.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Inline reports whether a text value is stored inline.
func (v Value) Inline() bool { return v.kind == KindString && v.inline }

func (v Value) wrong(want Kind) error {
	return fmt.Errorf("%w: value is %s, not %s", ErrValueKind, v.kind, want)
}

// Float returns a numeric value.
func (v Value) Float() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.wrong(KindNumber)
	}
	return v.num, nil
}

// Bool returns a boolean value.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.wrong(KindBool)
	}
	return v.b, nil
}

// Str returns a text value.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", v.wrong(KindString)
	}
	return v.str, nil
}

// Code returns an error value's code.
func (v Value) Code() (string, error) {
	if v.kind != KindError {
		return "", v.wrong(KindError)
	}
	return v.str, nil
}

// Serial returns a date value's serial number.
func (v Value) Serial() (float64, error) {
	if v.kind != KindDate {
		return 0, v.wrong(KindDate)
	}
	return v.num, nil
}

// DateFormat returns a date value's format hint.
func (v Value) DateFormat() string {
	if v.kind != KindDate {
		return ""
	}
	return v.str
}

// Time converts a date value to a time in the given date system.
func (v Value) Time(date1904 bool) (time.Time, error) {
	if v.kind != KindDate {
		return time.Time{}, v.wrong(KindDate)
	}
	return xldate.ToTime(v.num, date1904)
}

// Equal reports whether v and o hold the same kind and content.  The
// shared/inline storage choice is not part of a text value's content, and
// an empty date format hint matches any hint.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindString, KindError:
		return v.str == o.str
	case KindDate:
		return v.num == o.num && (v.str == "" || o.str == "" || v.str == o.str)
	}
	return true
}

// String renders v for debugging and logs.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindString, KindError:
		return v.str
	case KindDate:
		return "date(" + strconv.FormatFloat(v.num, 'g', -1, 64) + ")"
	}
	return ""
}
