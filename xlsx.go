// Package xlsx reads, edits and writes Office Open XML spreadsheet (.xlsx)
// packages.  No cgo is required.
//
// # Quick start
//
//	wb, err := xlsx.Open("Book1.xlsx")
//	if err != nil { ... }
//
//	fmt.Println(wb.Sheets()) // ["Sheet1", "Sheet2"]
//
//	sheet, err := wb.Sheet("Sheet1")
//	if err != nil { ... }
//
//	sheet.SetValueAt("C1", worksheet.Text("Total"))
//	for row, cells := range sheet.Rows() {
//	    for _, c := range cells {
//	        fmt.Printf("%d %s = %v\n", row, c.Ref, c.Value)
//	    }
//	}
//
//	err = wb.SaveAs("Book1.xlsx")
//
// # Values
//
// A cell holds a [worksheet.Value]: empty, number, boolean, text, error code
// or date.  Text is stored in the workbook's shared-string table unless it
// is built with [worksheet.InlineText].  Dates are stored as serial numbers
// together with a date number format; [worksheet.Value.Time] converts them
// back using the workbook's date system.
//
// # Display strings
//
// [worksheet.Worksheet.FormattedValue] renders a cell through the number
// format of its style, the way a spreadsheet application shows it.
//
// # Saving
//
// Only parts that changed are re-serialized; everything else is copied
// from the source archive byte-for-byte.  Before anything is written the
// package's relationships and content types are checked, and a save that
// would produce an inconsistent package fails with [ErrIntegrity] and
// leaves the workbook unchanged.
package xlsx

import (
	"io"
	"time"

	"github.com/TsubasaBE/go-xlsx/cellref"
	"github.com/TsubasaBE/go-xlsx/numfmt"
	"github.com/TsubasaBE/go-xlsx/opc"
	"github.com/TsubasaBE/go-xlsx/rels"
	"github.com/TsubasaBE/go-xlsx/stringtable"
	"github.com/TsubasaBE/go-xlsx/styles"
	"github.com/TsubasaBE/go-xlsx/workbook"
	"github.com/TsubasaBE/go-xlsx/worksheet"
	"github.com/TsubasaBE/go-xlsx/xldate"
)

// Version is the current version of the go-xlsx library.
const Version = "0.1.0"

// Errors returned by the library, re-exported so callers can match them
// with errors.Is without importing every package.
var (
	ErrCorruptArchive       = opc.ErrCorruptArchive
	ErrMalformedXML         = opc.ErrMalformedXML
	ErrMissingRequiredPart  = workbook.ErrMissingRequiredPart
	ErrInvalidAddress       = cellref.ErrInvalidAddress
	ErrInvalidStringIndex   = stringtable.ErrInvalidStringIndex
	ErrInvalidStyleIndex    = styles.ErrInvalidStyleIndex
	ErrInvalidNumFmt        = styles.ErrInvalidNumFmt
	ErrDanglingRelationship = rels.ErrDanglingRelationship
	ErrUnregisteredPart     = rels.ErrUnregisteredPart
	ErrIntegrity            = rels.ErrIntegrity
	ErrUnknownSheet         = workbook.ErrUnknownSheet
	ErrDuplicateSheetName   = workbook.ErrDuplicateSheetName
	ErrInvalidSheetName     = workbook.ErrInvalidSheetName
	ErrLastSheet            = workbook.ErrLastSheet
	ErrIteratorInvalidated  = worksheet.ErrIteratorInvalidated
	ErrValueKind            = worksheet.ErrValueKind
)

// Open opens the named .xlsx file with default options.
func Open(name string) (*workbook.Workbook, error) {
	return workbook.Open(name, workbook.Options{})
}

// OpenBytes opens an .xlsx package held in memory with default options.
func OpenBytes(data []byte) (*workbook.Workbook, error) {
	return workbook.OpenBytes(data, workbook.Options{})
}

// OpenReader reads an .xlsx workbook from an arbitrary [io.ReaderAt].
// size must equal the total byte length of the data.
func OpenReader(r io.ReaderAt, size int64) (*workbook.Workbook, error) {
	return workbook.OpenReader(r, size, workbook.Options{})
}

// New returns an empty workbook with a single sheet named "Sheet1".
func New() (*workbook.Workbook, error) {
	return workbook.New(workbook.Options{})
}

// ConvertDate converts a serial number in the 1900 date system to a
// [time.Time].  Serial 60 is the phantom 1900-02-29 and maps to
// 1900-03-01.
func ConvertDate(date float64) (time.Time, error) {
	return xldate.ToTime(date, false)
}

// ConvertDateEx converts a serial number to a [time.Time], respecting the
// workbook's date system.  Pass wb.Date1904().
func ConvertDateEx(date float64, date1904 bool) (time.Time, error) {
	return xldate.ToTime(date, date1904)
}

// IsDateFormat reports whether a number-format id (and, for custom ids, its
// format code) displays numbers as dates or times.
func IsDateFormat(id int, formatCode string) bool {
	return numfmt.IsDateFormat(id, formatCode)
}
