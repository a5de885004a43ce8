// Package tagcode converts non-negative serial numbers into short,
// case-insensitive alphanumeric tags and back.
//
// Tags use the characters 2-9 and a-z. The digits 0 and 1 are never
// produced because they are easily confused with o and l; Decode accepts
// them anyway and reads them as o and l. Output positions rotate through
// three bases (34, 26, 8), so every third character is a digit and the
// one before it is a letter. A tag therefore never holds more than two
// letters or two digits in a row.
package tagcode

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

const (
	nAlphaNum = 34 // 2-9 then a-z
	nAlpha    = 26 // a-z
	nDigits   = 8  // 2-9

	// MaxSerial is the largest serial Encode accepts.
	MaxSerial = math.MaxInt64

	// MaxTagLen is the length of the tag for MaxSerial.
	MaxTagLen = 15
)

// bases is indexed by position mod 3, least significant position first.
var bases = [3]uint64{nAlphaNum, nAlpha, nDigits}

var (
	ErrOutOfRange = errors.New("serial out of range")
	ErrInvalidTag = errors.New("invalid tag")
)

// Base returns the digit base used at position p, counted from the
// rightmost character.
func Base(p int) int {
	return int(bases[p%3])
}

// Encode returns the tag for serial. Negative serials fail with
// ErrOutOfRange.
func Encode(serial int64) (string, error) {
	if serial < 0 {
		return "", fmt.Errorf("%w: %d is negative", ErrOutOfRange, serial)
	}

	var buf [MaxTagLen]byte
	n := uint64(serial)
	i := len(buf)
	for p := 0; ; p++ {
		base := bases[p%3]
		digit := n % base
		n /= base
		i--
		buf[i] = digitChar(base, digit)
		if n == 0 {
			break
		}
	}
	// filled right to left, so buf[i:] is already most significant first
	return string(buf[i:]), nil
}

func digitChar(base, digit uint64) byte {
	switch base {
	case nAlpha:
		return byte('a' + digit)
	case nDigits:
		return byte('2' + digit)
	}
	if digit < nDigits {
		return byte('2' + digit)
	}
	return byte('a' + digit - nDigits)
}

// charDigit is the inverse of digitChar. ok is false when c is not one of
// the characters base can produce.
func charDigit(base uint64, c byte) (digit uint64, ok bool) {
	isLetter := c >= 'a' && c <= 'z'
	isDigit := c >= '2' && c <= '9'
	switch {
	case base == nAlpha && isLetter:
		return uint64(c - 'a'), true
	case base == nDigits && isDigit:
		return uint64(c - '2'), true
	case base == nAlphaNum && isLetter:
		return uint64(c-'a') + nDigits, true
	case base == nAlphaNum && isDigit:
		return uint64(c - '2'), true
	}
	return 0, false
}

// Normalize lowercases tag and rewrites the digits 0 and 1 to the
// letters o and l.
func Normalize(tag string) string {
	b := []byte(tag)
	for i, c := range b {
		switch {
		case c == '0':
			b[i] = 'o'
		case c == '1':
			b[i] = 'l'
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Decode returns the serial for tag. Case is ignored and 0/1 are read as
// o/l. The result is re-encoded and must reproduce the normalized tag
// exactly, otherwise Decode fails with ErrInvalidTag.
func Decode(tag string) (int64, error) {
	if tag == "" {
		return 0, fmt.Errorf("%w: tag is empty", ErrInvalidTag)
	}
	norm := Normalize(tag)

	var serial, mult uint64 = 0, 1
	for p := 0; p < len(norm); p++ {
		base := bases[p%3]
		digit, ok := charDigit(base, norm[len(norm)-1-p])
		if !ok {
			return 0, invalid(tag)
		}
		hi, lo := bits.Mul64(digit, mult)
		var carry uint64
		serial, carry = bits.Add64(serial, lo, 0)
		if hi != 0 || carry != 0 {
			return 0, invalid(tag)
		}
		hi, mult = bits.Mul64(mult, base)
		if hi != 0 && p+1 < len(norm) {
			return 0, invalid(tag)
		}
	}
	if serial > MaxSerial {
		return 0, invalid(tag)
	}

	check, err := Encode(int64(serial))
	if err != nil || check != norm {
		return 0, invalid(tag)
	}
	return int64(serial), nil
}

func invalid(tag string) error {
	return fmt.Errorf("%w: %q does not round-trip", ErrInvalidTag, tag)
}

// Valid reports whether tag decodes.
func Valid(tag string) bool {
	_, err := Decode(tag)
	return err == nil
}
