// Package hcert implements the decode-and-verify pipeline for digitally
// signed health-certificate tokens: restricted-alphabet text, zlib
// compression, a signed CBOR envelope, and a CWT-style certificate payload
// verified against a trust list.
package hcert

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/Xiphoseer/dcc-decode/pkg/base45"
)

// TokenPrefix identifies scheme version 1 of the text token.
const TokenPrefix = "HC1:"

// Decode reverses the token encoding chain up to the signed envelope:
// prefix check, base45 decoding, zlib decompression, envelope parse.
// Interpreting the payload and checking the signature are separate steps.
func Decode(token string) (*SignedEnvelope, error) {
	text := strings.TrimRight(token, "\r\n")

	tail, ok := strings.CutPrefix(text, TokenPrefix)
	if !ok {
		return nil, ErrBadPrefix
	}

	compressed, err := base45.Decode(tail)
	if err != nil {
		return nil, fmt.Errorf("hcert: base45 decoding failed: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("hcert: zlib decoding failed: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("hcert: zlib decoding failed: %w", err)
	}

	return ParseEnvelope(raw)
}
