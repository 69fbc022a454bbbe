package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Publication date heuristics for archive file names. The patterns are
// tuned to one archive's naming conventions, not a general date parser:
//
//	"SJAA1961"   => 1961-01-01
//	"Eph79_06"   => 1979-06-01
//	"Eph79_05Un" => 1979-05-01
//	"eph78_Misc" => 1978-01-01
//	"Misc_80"    => 1980-01-01
var monthAbbrevs = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4,
	"may": 5, "jun": 6, "jul": 7, "aug": 8,
	"sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	reYear4Month2 = regexp.MustCompile(`(\d{4})[_-](\d{2})`)
	reYear4Abbrev = regexp.MustCompile(`(?i)(\d{4})[_-]?([a-z]{3})`)

	rePrefixYear2Month2 = regexp.MustCompile(`(?i)([a-z]+)(\d{2})[_-](\d{2})`)
	reAbbrevYear2       = regexp.MustCompile(`(?i)([a-z]{3})(\d{2})(?:[^0-9]|$)`)
	reYear2Abbrev       = regexp.MustCompile(`(?i)(\d{2})[_-]?([a-z]{3})`)

	reYear4 = regexp.MustCompile(`\d{4}`)

	rePrefixYear2 = regexp.MustCompile(`(?i)([a-z]+)(\d{2})(?:[_-]|$)`)
	reDelimYear2  = regexp.MustCompile(`[_-](\d{2})(?:[_-]|$)`)
)

// ParsePublicationDate extracts a best-guess publication date from a
// document name, normalized to the first day of the inferred month
// (January 1 when only a year is known). Patterns are tried in a fixed
// priority order, first match wins; unparseable names yield nil.
func ParsePublicationDate(name string) *time.Time {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	if date := tryFourDigitYearWithMonth(name); date != nil {
		return date
	}
	if date := tryTwoDigitYearWithMonth(name); date != nil {
		return date
	}
	if date := tryFourDigitYearOnly(name); date != nil {
		return date
	}
	return tryTwoDigitYearOnly(name)
}

// Pattern: 4-digit year, separator, 2-digit month ("Doc2019_03"), or
// 4-digit year with an optional separator before a month abbreviation
// ("2019Mar"). A matched-but-invalid candidate falls through to the
// next pattern group, it does not keep scanning within this one.
func tryFourDigitYearWithMonth(name string) *time.Time {
	if m := reYear4Month2.FindStringSubmatch(name); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]))
	}
	if m := reYear4Abbrev.FindStringSubmatch(name); m != nil {
		if month, ok := monthAbbrevs[strings.ToLower(m[2])]; ok {
			return buildDate(atoi(m[1]), month)
		}
	}
	return nil
}

// Pattern: prefix + 2-digit year + 2-digit month ("Eph79_06"), month
// abbreviation + 2-digit year ("Sep99"), or 2-digit year + month
// abbreviation ("99Sep").
func tryTwoDigitYearWithMonth(name string) *time.Time {
	if m := rePrefixYear2Month2.FindStringSubmatch(name); m != nil {
		return buildDate(expandTwoDigitYear(atoi(m[2])), atoi(m[3]))
	}
	if m := reAbbrevYear2.FindStringSubmatch(name); m != nil {
		if month, ok := monthAbbrevs[strings.ToLower(m[1])]; ok {
			return buildDate(expandTwoDigitYear(atoi(m[2])), month)
		}
	}
	if m := reYear2Abbrev.FindStringSubmatch(name); m != nil {
		if month, ok := monthAbbrevs[strings.ToLower(m[2])]; ok {
			return buildDate(expandTwoDigitYear(atoi(m[1])), month)
		}
	}
	return nil
}

// Pattern: any bare 4-digit year ("SJAA1961"), accepted only inside
// [1900, 2100].
func tryFourDigitYearOnly(name string) *time.Time {
	if m := reYear4.FindString(name); m != "" {
		year := atoi(m)
		if year >= 1900 && year <= 2100 {
			return buildDate(year, 1)
		}
	}
	return nil
}

// Pattern: alphabetic prefix + 2-digit year ("eph78"), or a delimited
// 2-digit year token ("Misc_80").
func tryTwoDigitYearOnly(name string) *time.Time {
	if m := rePrefixYear2.FindStringSubmatch(name); m != nil {
		return buildDate(expandTwoDigitYear(atoi(m[2])), 1)
	}
	if m := reDelimYear2.FindStringSubmatch(name); m != nil {
		return buildDate(expandTwoDigitYear(atoi(m[1])), 1)
	}
	return nil
}

// Years 00-30 land in the 2000s, 31-99 in the 1900s.
func expandTwoDigitYear(twoDigit int) int {
	if twoDigit <= 30 {
		return 2000 + twoDigit
	}
	return 1900 + twoDigit
}

func buildDate(year, month int) *time.Time {
	if year < 1900 || year > 2100 {
		return nil
	}
	if month < 1 || month > 12 {
		return nil
	}
	date := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return &date
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
