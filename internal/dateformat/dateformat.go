// Package dateformat holds the date-format classification shared by the
// numfmt and styles packages.
package dateformat

// IsBuiltInDateID reports whether id is a built-in numFmtId that renders a
// date, a datetime, a time of day or an elapsed time.
//
// The recognised IDs follow ECMA-376 §18.8.30:
//
//	14–22   date and time formats (18–21 are time-only)
//	27–36   locale-specific CJK date formats
//	45–47   elapsed-time and seconds formats
//	50–58   locale-specific CJK date formats (variant set)
func IsBuiltInDateID(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// ScanFormatStr scans the unquoted, unbracketed part of a format code for
// date and time letters (d, m, y, h, s).  An e or E also counts unless it
// follows a digit placeholder, where it is a scientific exponent.
//
// It is the fallback for codes the tokenizer rejects outright.
func ScanFormatStr(code string) bool {
	inQuote, inBracket := false, false
	var prev rune
	for _, ch := range code {
		switch {
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case inBracket:
			if ch == ']' {
				inBracket = false
			}
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case isDateLetter(ch):
			return true
		case ch == 'e' || ch == 'E':
			if prev != '0' && prev != '#' && prev != '?' && prev != '.' {
				return true
			}
		}
		if !inQuote && !inBracket {
			prev = ch
		}
	}
	return false
}

func isDateLetter(ch rune) bool {
	switch ch {
	case 'd', 'D', 'm', 'M', 'y', 'Y', 'h', 'H', 's', 'S':
		return true
	}
	return false
}
