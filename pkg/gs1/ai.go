package gs1

import (
	"fmt"
	"strconv"
)

type format int

const (
	numeric format = iota
	alphanumeric
	date
)

type definition struct {
	title      string
	format     format
	minLen     int
	maxLen     int
	checkDigit bool
}

// definitions keyed by AI; four-digit measure AIs are keyed by their first
// three digits since the last digit is a decimal point position
var definitions = map[string]definition{
	"00":  {title: "SSCC", format: numeric, minLen: 18, maxLen: 18, checkDigit: true},
	"01":  {title: "GTIN", format: numeric, minLen: 14, maxLen: 14, checkDigit: true},
	"02":  {title: "CONTENT", format: numeric, minLen: 14, maxLen: 14, checkDigit: true},
	"10":  {title: "BATCH/LOT", format: alphanumeric, minLen: 1, maxLen: 20},
	"11":  {title: "PROD DATE", format: date, minLen: 6, maxLen: 6},
	"13":  {title: "PACK DATE", format: date, minLen: 6, maxLen: 6},
	"15":  {title: "BEST BEFORE or BEST BY", format: date, minLen: 6, maxLen: 6},
	"16":  {title: "SELL BY", format: date, minLen: 6, maxLen: 6},
	"17":  {title: "USE BY OR EXPIRY", format: date, minLen: 6, maxLen: 6},
	"20":  {title: "VARIANT", format: numeric, minLen: 2, maxLen: 2},
	"21":  {title: "SERIAL", format: alphanumeric, minLen: 1, maxLen: 20},
	"22":  {title: "CPV", format: alphanumeric, minLen: 1, maxLen: 20},
	"30":  {title: "VAR. COUNT", format: numeric, minLen: 1, maxLen: 8},
	"37":  {title: "COUNT", format: numeric, minLen: 1, maxLen: 8},
	"240": {title: "ADDITIONAL ID", format: alphanumeric, minLen: 1, maxLen: 30},
	"241": {title: "CUST. PART No.", format: alphanumeric, minLen: 1, maxLen: 30},
	"250": {title: "SECONDARY SERIAL", format: alphanumeric, minLen: 1, maxLen: 30},
	"400": {title: "ORDER NUMBER", format: alphanumeric, minLen: 1, maxLen: 30},
	"410": {title: "SHIP TO LOC", format: numeric, minLen: 13, maxLen: 13, checkDigit: true},
	"414": {title: "LOC No.", format: numeric, minLen: 13, maxLen: 13, checkDigit: true},
	"422": {title: "ORIGIN", format: numeric, minLen: 3, maxLen: 3},
	"310": {title: "NET WEIGHT (kg)", format: numeric, minLen: 6, maxLen: 6},
	"320": {title: "NET WEIGHT (lb)", format: numeric, minLen: 6, maxLen: 6},
	"392": {title: "PRICE", format: numeric, minLen: 1, maxLen: 15},
	"710": {title: "NHRN PZN", format: alphanumeric, minLen: 1, maxLen: 20},
	"711": {title: "NHRN CIP", format: alphanumeric, minLen: 1, maxLen: 20},
	"712": {title: "NHRN CN", format: alphanumeric, minLen: 1, maxLen: 20},
	"714": {title: "NHRN AIM", format: alphanumeric, minLen: 1, maxLen: 20},
}

// aiLength gives the AI length implied by its first two digits
func aiLength(prefix string) int {
	p, _ := strconv.Atoi(prefix)
	switch {
	case p <= 22, p == 30, p == 37, p >= 90:
		return 2
	case p >= 31 && p <= 36, p == 39, p == 70, p == 80, p == 81, p == 82:
		return 4
	}
	return 3
}

// predefinedLength reports whether the AI's value has a fixed length and
// therefore needs no separator
func predefinedLength(ai string) (int, bool) {
	switch ai[:2] {
	case "00":
		return 18, true
	case "01", "02", "03":
		return 14, true
	case "04":
		return 16, true
	case "11", "12", "13", "14", "15", "16", "17", "18", "19":
		return 6, true
	case "20":
		return 2, true
	case "31", "32", "33", "34", "35", "36":
		return 6, true
	case "41":
		return 13, true
	}
	return 0, false
}

func lookup(ai string) (definition, bool) {
	if def, ok := definitions[ai]; ok {
		return def, true
	}
	if len(ai) == 4 {
		def, ok := definitions[ai[:3]]
		return def, ok
	}
	return definition{}, false
}

func (d definition) check(value string) error {
	if len(value) < d.minLen || len(value) > d.maxLen {
		if d.minLen == d.maxLen {
			return fmt.Errorf("length %d, want %d", len(value), d.minLen)
		}
		return fmt.Errorf("length %d outside %d-%d", len(value), d.minLen, d.maxLen)
	}
	switch d.format {
	case numeric:
		if !isDigits(value) {
			return fmt.Errorf("non-numeric value %q", value)
		}
	case date:
		if err := checkDate(value); err != nil {
			return err
		}
	case alphanumeric:
		for _, r := range value {
			if r < 0x21 || r > 0x7e {
				return fmt.Errorf("character %q outside GS1 set", r)
			}
		}
	}
	if d.checkDigit && !ValidCheckDigit(value) {
		return fmt.Errorf("check digit mismatch")
	}
	return nil
}

// checkDate validates YYMMDD; day 00 means the last day of the month
func checkDate(value string) error {
	if !isDigits(value) {
		return fmt.Errorf("non-numeric date %q", value)
	}
	month, _ := strconv.Atoi(value[2:4])
	day, _ := strconv.Atoi(value[4:6])
	if month < 1 || month > 12 {
		return fmt.Errorf("month %02d out of range", month)
	}
	if day > 31 {
		return fmt.Errorf("day %02d out of range", day)
	}
	return nil
}

// ValidCheckDigit verifies the GS1 mod-10 check digit of a numeric key
func ValidCheckDigit(key string) bool {
	if len(key) < 2 || !isDigits(key) {
		return false
	}
	sum := 0
	body := key[:len(key)-1]
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		// weight 3 on the digit nearest the check digit, alternating
		if (len(body)-1-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	return (10-sum%10)%10 == int(key[len(key)-1]-'0')
}
