// Package gs1 splits GS1 element strings, as carried by GS1 DataMatrix
// symbols, into application identifiers and values.
package gs1

import (
	"errors"
	"fmt"
	"strings"
)

// GroupSeparator terminates variable-length fields (FNC1 in the symbol)
const GroupSeparator = '\x1d'

// ErrNotGS1 is returned for payloads that carry no GS1 marker
var ErrNotGS1 = errors.New("payload is not a GS1 element string")

// Element is one application identifier and its data
type Element struct {
	AI    string `json:"ai"`
	Title string `json:"title,omitempty"`
	Value string `json:"value"`
	Valid bool   `json:"valid"`
	Issue string `json:"issue,omitempty"`
}

// symbology identifiers that announce GS1 data
var symbologyPrefixes = []string{"]d2", "]C1", "]Q3", "]e0"}

// IsGS1 reports whether payload is marked as a GS1 element string, either by
// a symbology identifier, a leading FNC1, or the bracketed human-readable form
func IsGS1(payload string) bool {
	for _, p := range symbologyPrefixes {
		if strings.HasPrefix(payload, p) {
			return true
		}
	}
	return strings.HasPrefix(payload, string(GroupSeparator)) || strings.HasPrefix(payload, "(")
}

// Parse splits payload into elements. Malformed values are returned with
// Valid false and an Issue rather than failing the whole parse; an error is
// returned only when the payload cannot be segmented at all.
func Parse(payload string) ([]Element, error) {
	if !IsGS1(payload) {
		return nil, ErrNotGS1
	}
	if strings.HasPrefix(payload, "(") {
		return parseBracketed(payload)
	}

	data := payload
	for _, p := range symbologyPrefixes {
		data = strings.TrimPrefix(data, p)
	}
	data = strings.TrimLeft(data, string(GroupSeparator))

	var elements []Element
	for len(data) > 0 {
		ai, err := readAI(data)
		if err != nil {
			return elements, err
		}
		data = data[len(ai):]

		var value string
		if n, fixed := predefinedLength(ai); fixed {
			if len(data) < n {
				value, data = data, ""
			} else {
				value, data = data[:n], data[n:]
			}
			data = strings.TrimPrefix(data, string(GroupSeparator))
		} else if i := strings.IndexRune(data, GroupSeparator); i >= 0 {
			value, data = data[:i], data[i+1:]
		} else {
			value, data = data, ""
		}

		elements = append(elements, newElement(ai, value))
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: no elements after marker", ErrNotGS1)
	}
	return elements, nil
}

// parseBracketed handles the "(01)09501101530003(10)AB12" form
func parseBracketed(payload string) ([]Element, error) {
	var elements []Element
	rest := payload
	for len(rest) > 0 {
		if rest[0] != '(' {
			return elements, fmt.Errorf("expected '(' at %q", rest)
		}
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return elements, fmt.Errorf("unterminated application identifier in %q", rest)
		}
		ai := rest[1:end]
		if ai == "" || !isDigits(ai) {
			return elements, fmt.Errorf("invalid application identifier %q", ai)
		}
		rest = rest[end+1:]
		next := strings.IndexByte(rest, '(')
		if next < 0 {
			next = len(rest)
		}
		elements = append(elements, newElement(ai, rest[:next]))
		rest = rest[next:]
	}
	return elements, nil
}

// readAI reads the application identifier at the start of data
func readAI(data string) (string, error) {
	if len(data) < 2 || !isDigits(data[:2]) {
		return "", fmt.Errorf("invalid application identifier at %q", truncate(data))
	}
	n := aiLength(data[:2])
	if len(data) < n || !isDigits(data[:n]) {
		return "", fmt.Errorf("truncated application identifier at %q", truncate(data))
	}
	return data[:n], nil
}

func newElement(ai, value string) Element {
	def, known := lookup(ai)
	e := Element{AI: ai, Title: def.title, Value: value, Valid: true}
	if !known {
		return e
	}
	if err := def.check(value); err != nil {
		e.Valid = false
		e.Issue = err.Error()
	}
	return e
}

func truncate(s string) string {
	if len(s) > 12 {
		return s[:12] + "..."
	}
	return s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
