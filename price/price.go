// Package price converts exchange-native decimal strings into fixed-point
// scaled integers. No floating point touches this path: prices are folded
// digit-by-digit so that hot-path parsing is deterministic and allocation-free.
package price

import (
	"errors"
	"strings"
)

// Scale is the fixed-point exponent applied to every parsed price (10^8).
const Scale int64 = 100_000_000

var (
	// ErrEmpty is returned for a blank (post-trim) input string.
	ErrEmpty = errors.New("price: empty input")
	// ErrMultipleDecimalPoints is returned when more than one '.' is present.
	ErrMultipleDecimalPoints = errors.New("price: multiple decimal points")
	// ErrInvalidDigit is returned when a non-digit byte appears in the
	// integer part or within the first nine fractional bytes; bytes after
	// the ninth fractional digit are not inspected.
	ErrInvalidDigit = errors.New("price: invalid digit")
	// ErrOverflow is returned when the scaled value exceeds int64 range.
	ErrOverflow = errors.New("price: integer overflow")
)

// Parse converts s, a non-negative decimal string optionally surrounded by
// whitespace, into an int64 equal to round_half_up(value(s) * 1e8).
//
// Up to 8 fractional digits contribute directly; a 9th fractional digit
// rounds the result half-up and digits beyond the 9th are ignored. A
// leading '-' is rejected — this codec is for non-negative market prices
// only.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}

	dot := strings.IndexByte(s, '.')
	var intPart, fracPart string
	if dot == -1 {
		intPart = s
	} else {
		intPart = s[:dot]
		fracPart = s[dot+1:]
		if strings.IndexByte(fracPart, '.') != -1 {
			return 0, ErrMultipleDecimalPoints
		}
	}

	var result int64
	for i := 0; i < len(intPart); i++ {
		c := intPart[i]
		if c < '0' || c > '9' {
			return 0, ErrInvalidDigit
		}
		digit := int64(c - '0')
		var ok bool
		result, ok = checkedMulAdd(result, 10, digit)
		if !ok {
			return 0, ErrOverflow
		}
	}

	scaled, ok := checkedMul(result, Scale)
	if !ok {
		return 0, ErrOverflow
	}
	result = scaled

	if fracPart == "" {
		return result, nil
	}

	var fracValue int64
	scale := Scale / 10
	var roundDigit byte
	haveRoundDigit := false

	for i := 0; i < len(fracPart); i++ {
		if i > 8 {
			// Digits past the 9th are ignored entirely, along with
			// whatever trailing bytes follow them — matching price.rs,
			// which stops inspecting the string at this point rather
			// than validating it to the end.
			break
		}
		c := fracPart[i]
		if c < '0' || c > '9' {
			return 0, ErrInvalidDigit
		}
		digit := int64(c - '0')

		switch {
		case i < 8:
			fracValue += digit * scale
			scale /= 10
		case i == 8:
			roundDigit = byte(digit)
			haveRoundDigit = true
		}
	}

	sum, ok := checkedAdd(result, fracValue)
	if !ok {
		return 0, ErrOverflow
	}
	result = sum

	if haveRoundDigit && roundDigit >= 5 {
		result, ok = checkedAdd(result, 1)
		if !ok {
			return 0, ErrOverflow
		}
	}

	return result, nil
}

func checkedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

func checkedMulAdd(acc, mul, add int64) (int64, bool) {
	r, ok := checkedMul(acc, mul)
	if !ok {
		return 0, false
	}
	return checkedAdd(r, add)
}

func checkedAdd(a, b int64) (int64, bool) {
	r := a + b
	if r < a {
		return 0, false
	}
	return r, true
}
