// Package numfmt classifies spreadsheet number-format codes and renders
// values through them.
//
// Tokenizing is delegated to [github.com/xuri/nfp]; this package decides
// what the tokens mean.  Rendering covers the common subset of the format
// language: General, fixed decimals, thousands separators, percent,
// scientific notation, literal text, and date, time and elapsed-time
// tokens.  Anything it cannot place falls back to the General rendering
// rather than dropping the value.
package numfmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/nfp"

	"github.com/TsubasaBE/go-xlsx/internal/dateformat"
	"github.com/TsubasaBE/go-xlsx/xldate"
)

// ErrInvalidFormat is returned by Validate for a code that cannot be a
// number format.
var ErrInvalidFormat = errors.New("numfmt: invalid format code")

// Validate checks that code is a usable format code: non-empty, with
// balanced quotes and brackets, and no more than four sections.
func Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFormat)
	}
	inQuote, escaped, depth := false, false, 0
	for _, ch := range code {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case ch == '\\':
			escaped = true
		case ch == '"':
			inQuote = true
		case ch == '[':
			depth++
		case ch == ']':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: %q has an unmatched ']'", ErrInvalidFormat, code)
			}
		}
	}
	if inQuote {
		return fmt.Errorf("%w: %q has an unterminated quote", ErrInvalidFormat, code)
	}
	if depth != 0 {
		return fmt.Errorf("%w: %q has an unterminated '['", ErrInvalidFormat, code)
	}
	// The tokenizer returns no sections at all once a fifth one starts.
	if len(parse(code)) == 0 {
		return fmt.Errorf("%w: %q has more than four sections", ErrInvalidFormat, code)
	}
	return nil
}

func parse(code string) []nfp.Section {
	ps := nfp.NumberFormatParser()
	return ps.Parse(code)
}

// IsDateFormat reports whether the format identified by id renders a number
// as a date, a time of day or an elapsed time.  code is consulted for
// custom ids and for built-in ids this package has no entry for.
func IsDateFormat(id int, code string) bool {
	if dateformat.IsBuiltInDateID(id) {
		return true
	}
	if _, ok := BuiltIn[id]; ok && id < FirstCustomID {
		return false
	}
	return IsDateCode(code)
}

// IsDateCode reports whether any section of code contains a date or time
// token.
func IsDateCode(code string) bool {
	if code == "" {
		return false
	}
	sections := parse(code)
	if len(sections) == 0 {
		return dateformat.ScanFormatStr(code)
	}
	for _, sec := range sections {
		for _, tok := range sec.Items {
			if isDateToken(tok) {
				return true
			}
		}
	}
	return false
}

// isDateToken limits nfp's broad DateTimes class (which also covers era and
// calendar letters such as "b" and "g") to the tokens this package renders.
func isDateToken(tok nfp.Token) bool {
	switch tok.TType {
	case nfp.TokenTypeElapsedDateTimes:
		return true
	case nfp.TokenTypeDateTimes:
		u := strings.ToUpper(tok.TValue)
		if u == "AM/PM" || u == "A/P" {
			return true
		}
		return u != "" && strings.ContainsRune("YMDHS", rune(u[0]))
	}
	return false
}

// Resolve returns the effective code for id: custom when non-empty, then
// the built-in code, else "General".
func Resolve(id int, custom string) string {
	if custom != "" {
		return custom
	}
	if s, ok := BuiltIn[id]; ok {
		return s
	}
	return "General"
}

// FormatNumber renders v through code.  date1904 selects the date system
// used by date and time tokens.
func FormatNumber(v float64, code string, date1904 bool) string {
	if code == "" || strings.EqualFold(code, "General") {
		return General(v)
	}
	sections := parse(code)
	if len(sections) == 0 {
		return General(v)
	}
	sec, signShown := pickSection(sections, v)
	if IsDateCode(code) {
		return renderDateTime(v, sec, date1904)
	}
	return renderNumber(v, sec, signShown)
}

// FormatText renders s through the text section of code: the fourth
// section, or a lone section containing "@".
func FormatText(s, code string) string {
	sections := parse(code)
	var sec nfp.Section
	switch len(sections) {
	case 4:
		sec = sections[3]
	case 1:
		sec = sections[0]
	default:
		return s
	}
	var sb strings.Builder
	used := false
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeTextPlaceHolder:
			sb.WriteString(s)
			used = true
		case nfp.TokenTypeLiteral:
			sb.WriteString(tok.TValue)
		}
	}
	if !used {
		return s
	}
	return sb.String()
}

// pickSection selects the section for v.  signShown is true when the chosen
// section is responsible for the minus sign itself.
//
//	1 section    all values
//	2 sections   positive and zero; negative
//	3+ sections  positive; negative; zero
func pickSection(sections []nfp.Section, v float64) (nfp.Section, bool) {
	switch {
	case len(sections) == 1:
		return sections[0], false
	case v < 0:
		return sections[1], true
	case v == 0 && len(sections) >= 3:
		return sections[2], false
	}
	return sections[0], false
}

// General renders v the way the General format does: integers without a
// decimal point, other values with up to 10 significant digits.
func General(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'G', -1, 64)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'G', 10, 64)
	mant, exp, sci := strings.Cut(s, "E")
	if strings.Contains(mant, ".") {
		mant = strings.TrimRight(strings.TrimRight(mant, "0"), ".")
	}
	if sci {
		return mant + "E" + exp
	}
	return mant
}

// numberLayout is what renderNumber learns from one pass over a section.
type numberLayout struct {
	percent, thousands, decimal, sci bool
	intZeros, fracZeros, fracOpt      int
	expDigits                         int
	placeholders                      bool
}

func scanNumber(sec nfp.Section) (numberLayout, bool) {
	var l numberLayout
	part := 0 // 0 integer, 1 fraction, 2 exponent
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeGeneral:
			return l, false
		case nfp.TokenTypePercent:
			l.percent = true
		case nfp.TokenTypeThousandsSeparator:
			if part == 0 {
				l.thousands = true
			}
		case nfp.TokenTypeDecimalPoint:
			if part == 0 {
				l.decimal, part = true, 1
			}
		case nfp.TokenTypeExponential:
			l.sci, part = true, 2
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			l.placeholders = true
			n := len(tok.TValue)
			zero := tok.TType == nfp.TokenTypeZeroPlaceHolder
			switch {
			case part == 2:
				l.expDigits += n
			case part == 1 && zero:
				l.fracZeros += n
			case part == 1:
				l.fracOpt += n
			case zero:
				l.intZeros += n
			}
		}
	}
	return l, l.placeholders
}

// renderNumber handles the non-date path.
func renderNumber(v float64, sec nfp.Section, signShown bool) string {
	l, ok := scanNumber(sec)
	if !ok {
		// A section of pure literals, such as "TRUE";"TRUE";"FALSE".
		var lit strings.Builder
		general := false
		for _, tok := range sec.Items {
			switch tok.TType {
			case nfp.TokenTypeLiteral:
				lit.WriteString(tok.TValue)
			case nfp.TokenTypeGeneral:
				general = true
			}
		}
		if general || lit.Len() == 0 {
			return lit.String() + General(v)
		}
		return lit.String()
	}

	abs := math.Abs(v)
	if l.percent {
		abs *= 100
	}
	exp := 0
	if l.sci && abs != 0 {
		exp = int(math.Floor(math.Log10(abs)))
		abs /= math.Pow(10, float64(exp))
	}
	prec := l.fracZeros + l.fracOpt
	intPart, fracPart, _ := strings.Cut(strconv.FormatFloat(abs, 'f', prec, 64), ".")
	if l.sci && intPart == "10" {
		// Mantissa rounding carried into the next power of ten.
		exp++
		intPart, fracPart, _ = strings.Cut(strconv.FormatFloat(abs/10, 'f', prec, 64), ".")
	}
	for len(fracPart) > l.fracZeros && strings.HasSuffix(fracPart, "0") {
		fracPart = fracPart[:len(fracPart)-1]
	}
	if intPart == "0" && l.intZeros == 0 {
		intPart = ""
	}
	for len(intPart) < l.intZeros {
		intPart = "0" + intPart
	}
	if l.thousands {
		intPart = groupThousands(intPart)
	}

	var sb strings.Builder
	if v < 0 && !signShown && strings.Trim(intPart+fracPart, "0,") != "" {
		sb.WriteByte('-')
	}
	part, wroteInt, wroteFrac, wroteExp := 0, false, false, false
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeLiteral:
			sb.WriteString(tok.TValue)
		case nfp.TokenTypeDecimalPoint:
			if part == 0 {
				part = 1
				if fracPart != "" {
					sb.WriteByte('.')
				}
			}
		case nfp.TokenTypeExponential:
			part = 2
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			switch {
			case part == 0 && !wroteInt:
				sb.WriteString(intPart)
				wroteInt = true
			case part == 1 && !wroteFrac:
				sb.WriteString(fracPart)
				wroteFrac = true
			case part == 2 && !wroteExp:
				sb.WriteString(formatExponent(exp, l.expDigits))
				wroteExp = true
			}
		case nfp.TokenTypePercent:
			sb.WriteByte('%')
		}
	}
	return sb.String()
}

func formatExponent(exp, width int) string {
	sign := "+"
	if exp < 0 {
		sign, exp = "-", -exp
	}
	s := strconv.Itoa(exp)
	for len(s) < width {
		s = "0" + s
	}
	return "E" + sign + s
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// renderDateTime renders v as a date or time using the tokens of sec.
func renderDateTime(v float64, sec nfp.Section, date1904 bool) string {
	t, err := xldate.ToTime(math.Abs(v), date1904)
	if err != nil {
		return General(v)
	}
	ampm := false
	for _, tok := range sec.Items {
		u := strings.ToUpper(tok.TValue)
		if tok.TType == nfp.TokenTypeDateTimes && (u == "AM/PM" || u == "A/P") {
			ampm = true
		}
	}
	var sb strings.Builder
	afterHour := false
	for i, tok := range sec.Items {
		u := strings.ToUpper(tok.TValue)
		switch tok.TType {
		case nfp.TokenTypeDateTimes:
			minute := afterHour || beforeSecond(sec.Items[i+1:])
			sb.WriteString(dateToken(u, t, ampm, minute))
			if u != "" && u[0] == 'H' {
				afterHour = true
			} else if u != "" && u[0] != 'A' {
				afterHour = false
			}
		case nfp.TokenTypeElapsedDateTimes:
			sb.WriteString(elapsedToken(u, math.Abs(v)))
			afterHour = u != "" && u[0] == 'H'
		case nfp.TokenTypeLiteral:
			sb.WriteString(tok.TValue)
		case nfp.TokenTypeDecimalPoint:
			sb.WriteString(subSecond(sec.Items[i+1:]))
		}
	}
	if sb.Len() == 0 {
		return General(v)
	}
	return sb.String()
}

// beforeSecond reports whether the next date token is a seconds token,
// which makes a preceding "m" mean minutes.
func beforeSecond(rest []nfp.Token) bool {
	for _, tok := range rest {
		if tok.TType == nfp.TokenTypeLiteral {
			continue
		}
		if tok.TType != nfp.TokenTypeDateTimes {
			return false
		}
		u := strings.ToUpper(tok.TValue)
		return u == "S" || u == "SS"
	}
	return false
}

// subSecond renders the ".0" digits after a seconds token.  Times are
// rounded to whole seconds, so the digits are always zero.
func subSecond(rest []nfp.Token) string {
	if len(rest) == 0 || rest[0].TType != nfp.TokenTypeZeroPlaceHolder {
		return "."
	}
	return "." + strings.Repeat("0", len(rest[0].TValue))
}

func dateToken(u string, t time.Time, ampm, minute bool) string {
	switch u {
	case "YYYY", "YYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY", "Y":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMMM":
		return t.Month().String()[:1]
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		if minute {
			return fmt.Sprintf("%02d", t.Minute())
		}
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		if minute {
			return strconv.Itoa(t.Minute())
		}
		return strconv.Itoa(int(t.Month()))
	case "DDDD":
		return t.Weekday().String()
	case "DDD":
		return t.Weekday().String()[:3]
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "HH", "H":
		h := t.Hour()
		if ampm {
			h %= 12
			if h == 0 {
				h = 12
			}
		}
		if u == "HH" {
			return fmt.Sprintf("%02d", h)
		}
		return strconv.Itoa(h)
	case "SS":
		return fmt.Sprintf("%02d", t.Second())
	case "S":
		return strconv.Itoa(t.Second())
	case "AM/PM":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "A/P":
		if t.Hour() < 12 {
			return "A"
		}
		return "P"
	}
	return ""
}

// elapsedToken renders [h], [m] and [s] style tokens from the raw serial.
func elapsedToken(u string, serial float64) string {
	secs := int64(math.Round(serial * 86400))
	switch u {
	case "H", "HH":
		return strconv.FormatInt(secs/3600, 10)
	case "M":
		return strconv.FormatInt(secs/60, 10)
	case "MM":
		return fmt.Sprintf("%02d", secs/60)
	case "S", "SS":
		return strconv.FormatInt(secs, 10)
	}
	return ""
}
