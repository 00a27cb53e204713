// Package base45 implements the 45-character alphabet encoding used by
// compact health-certificate tokens. Three symbols carry a 16-bit value,
// a trailing pair of symbols carries a single byte.
package base45

import (
	"errors"
	"fmt"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

// ErrTruncatedInput reports an input whose length modulo 3 is 1. No valid
// encoder produces such a remainder.
var ErrTruncatedInput = errors.New("base45: truncated input")

// InvalidCharacterError reports a byte outside the 45-symbol alphabet.
type InvalidCharacterError struct {
	Char byte
}

func (e InvalidCharacterError) Error() string {
	return fmt.Sprintf("base45: invalid character %q", e.Char)
}

// InvalidTripleError reports a symbol group whose combined value does not
// fit the output width (16 bits for a full group, 8 bits for a tail pair).
type InvalidTripleError struct {
	Sum uint32
}

func (e InvalidTripleError) Error() string {
	return fmt.Sprintf("base45: invalid group sum %d", e.Sum)
}

func symbolValue(c byte) (uint32, error) {
	switch {
	case c >= '0' && c <= '9':
		return uint32(c - '0'), nil
	case c >= 'A' && c <= 'Z':
		return uint32(c-'A') + 10, nil
	}
	switch c {
	case ' ':
		return 36, nil
	case '$':
		return 37, nil
	case '%':
		return 38, nil
	case '*':
		return 39, nil
	case '+':
		return 40, nil
	case '-':
		return 41, nil
	case '.':
		return 42, nil
	case '/':
		return 43, nil
	case ':':
		return 44, nil
	}
	return 0, InvalidCharacterError{Char: c}
}

// Decode converts a base45 string back into raw bytes. Each group of three
// symbols (c, d, e) carries the value c + 45*d + 2025*e, emitted as a
// little-endian byte pair; a trailing group of two symbols carries one byte.
func Decode(s string) ([]byte, error) {
	in := []byte(s)
	if len(in)%3 == 1 {
		return nil, ErrTruncatedInput
	}

	out := make([]byte, 0, len(in)*2/3+1)

	i := 0
	for ; i+3 <= len(in); i += 3 {
		vc, err := symbolValue(in[i])
		if err != nil {
			return nil, err
		}
		vd, err := symbolValue(in[i+1])
		if err != nil {
			return nil, err
		}
		ve, err := symbolValue(in[i+2])
		if err != nil {
			return nil, err
		}

		sum := vc + 45*vd + 45*45*ve
		if sum > 0xffff {
			return nil, InvalidTripleError{Sum: sum}
		}
		out = append(out, byte(sum), byte(sum>>8))
	}

	// A two-symbol tail carries a single byte.
	if i < len(in) {
		vc, err := symbolValue(in[i])
		if err != nil {
			return nil, err
		}
		vd, err := symbolValue(in[i+1])
		if err != nil {
			return nil, err
		}

		sum := vc + 45*vd
		if sum > 0xff {
			return nil, InvalidTripleError{Sum: sum}
		}
		out = append(out, byte(sum))
	}

	return out, nil
}

// Encode is the exact inverse of Decode: byte pairs are read little-endian
// into a 16-bit value encoded as three symbols, a trailing single byte is
// encoded as two symbols.
func Encode(b []byte) string {
	out := make([]byte, 0, (len(b)/2)*3+2)

	i := 0
	for ; i+2 <= len(b); i += 2 {
		n := uint32(b[i]) | uint32(b[i+1])<<8
		out = append(out, alphabet[n%45], alphabet[(n/45)%45], alphabet[n/(45*45)])
	}
	if i < len(b) {
		n := uint32(b[i])
		out = append(out, alphabet[n%45], alphabet[n/45])
	}

	return string(out)
}
