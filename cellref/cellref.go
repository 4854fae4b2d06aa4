// Package cellref converts between numeric (row, column) coordinates and
// A1-style cell addresses such as "B7" or "AA1:AC10".
//
// Rows and columns are 1-based.  Column letters use bijective base-26
// (A=1 … Z=26, AA=27 …) so there is no letter standing for zero.  The
// supported range is the one Excel 2007+ uses: rows 1–1,048,576 and
// columns 1–16,384 (A–XFD).
package cellref

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxRows is the largest valid row number.
	MaxRows = 1_048_576
	// MaxCols is the largest valid column number (column "XFD").
	MaxCols = 16_384
)

// ErrInvalidAddress is returned for address text that is malformed or that
// names a row or column outside [1, MaxRows] × [1, MaxCols].  Out-of-range
// input is never clamped.
var ErrInvalidAddress = errors.New("cellref: invalid address")

// Ref identifies a single cell.  The zero value is not a valid reference.
type Ref struct {
	Row int
	Col int
}

// New returns the reference for (row, col) after checking both bounds.
func New(row, col int) (Ref, error) {
	r := Ref{Row: row, Col: col}
	if !r.Valid() {
		return Ref{}, fmt.Errorf("%w: row %d, column %d out of range", ErrInvalidAddress, row, col)
	}
	return r, nil
}

// MustParse is like Parse but panics on error.  It is intended for
// constants in tests and examples.
func MustParse(s string) Ref {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Valid reports whether r lies inside the supported grid.
func (r Ref) Valid() bool {
	return r.Row >= 1 && r.Row <= MaxRows && r.Col >= 1 && r.Col <= MaxCols
}

// String returns the canonical A1 form ("AA12").  It returns an empty string
// for an invalid reference.
func (r Ref) String() string {
	if !r.Valid() {
		return ""
	}
	return ColumnName(r.Col) + strconv.Itoa(r.Row)
}

// Less orders references row-major: by row, then by column.
func (r Ref) Less(o Ref) bool {
	if r.Row != o.Row {
		return r.Row < o.Row
	}
	return r.Col < o.Col
}

// Parse decodes an A1-style address.  Column letters are case-insensitive
// and "$" absolute markers are accepted, so "$b$7" parses the same as "B7".
func Parse(s string) (Ref, error) {
	in := s
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}
	start := i
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	letters := s[start:i]
	if letters == "" {
		return Ref{}, fmt.Errorf("%w: %q has no column letters", ErrInvalidAddress, in)
	}
	if i < len(s) && s[i] == '$' {
		i++
	}
	digits := s[i:]
	if digits == "" {
		return Ref{}, fmt.Errorf("%w: %q has no row number", ErrInvalidAddress, in)
	}
	if digits[0] == '0' {
		return Ref{}, fmt.Errorf("%w: %q row has a leading zero", ErrInvalidAddress, in)
	}
	for j := 0; j < len(digits); j++ {
		if !isDigit(digits[j]) {
			return Ref{}, fmt.Errorf("%w: %q has a non-digit in the row", ErrInvalidAddress, in)
		}
	}
	// Seven digits exceed MaxRows; reject before Atoi so huge inputs cannot
	// overflow.
	if len(digits) > 7 {
		return Ref{}, fmt.Errorf("%w: %q row exceeds %d", ErrInvalidAddress, in, MaxRows)
	}
	row, _ := strconv.Atoi(digits)
	if row > MaxRows {
		return Ref{}, fmt.Errorf("%w: %q row exceeds %d", ErrInvalidAddress, in, MaxRows)
	}
	col, err := ColumnNumber(letters)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q", err, in)
	}
	return Ref{Row: row, Col: col}, nil
}

// ColumnName returns the letters for a 1-based column number, or "" when n
// is outside [1, MaxCols].
func ColumnName(n int) string {
	if n < 1 || n > MaxCols {
		return ""
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ColumnNumber decodes column letters (case-insensitive) to a 1-based
// column number.
func ColumnNumber(letters string) (int, error) {
	if letters == "" || len(letters) > 3 {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, letters)
	}
	n := 0
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, letters)
		}
		n = n*26 + int(c-'A') + 1
	}
	if n > MaxCols {
		return 0, fmt.Errorf("%w: column %q exceeds %s", ErrInvalidAddress, strings.ToUpper(letters), ColumnName(MaxCols))
	}
	return n, nil
}

func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
