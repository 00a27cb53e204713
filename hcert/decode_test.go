package hcert

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"

	"github.com/Xiphoseer/dcc-decode/pkg/base45"
)

// buildToken wraps envelope bytes in the full token encoding chain.
func buildToken(t *testing.T, envelope []byte) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(envelope); err != nil {
		t.Fatalf("failed to compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close compressor: %v", err)
	}
	return TokenPrefix + base45.Encode(buf.Bytes())
}

func TestDecodeToken(t *testing.T) {
	ts := newTestSigner(t)
	payload := mustMarshal(t, testClaims())
	data := signEnvelope(t, ts, payload, false)

	token := buildToken(t, data)

	env, err := Decode(token + "\n")
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !bytes.Equal(env.KeyID(), ts.kid) {
		t.Errorf("KeyID = %x, want %x", env.KeyID(), ts.kid)
	}
	if !bytes.Equal(env.Payload(), payload) {
		t.Errorf("payload does not survive the encoding chain")
	}

	// The full pipeline output feeds both independent consumers.
	record, err := NewDecoder(WithDecodeLogger(discardLogger())).Decode(env.Payload())
	if err != nil {
		t.Fatalf("payload decode error: %v", err)
	}
	if record.Issuer != "X" {
		t.Errorf("Issuer = %q, want X", record.Issuer)
	}

	v := NewVerifier(trustStoreFor(t, ts.kid, ts.der))
	if _, err := v.Verify(env); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
}

func TestDecodeTokenBadPrefix(t *testing.T) {
	for _, token := range []string{"", "HC2:ABC", "NCF620", "hc1:ABC"} {
		if _, err := Decode(token); !errors.Is(err, ErrBadPrefix) {
			t.Errorf("Decode(%q) error = %v, want ErrBadPrefix", token, err)
		}
	}
}

func TestDecodeTokenBadAlphabet(t *testing.T) {
	_, err := Decode("HC1:abc")
	var charErr base45.InvalidCharacterError
	if !errors.As(err, &charErr) {
		t.Errorf("Decode() error = %v, want base45.InvalidCharacterError", err)
	}
}

func TestDecodeTokenBadCompression(t *testing.T) {
	// Valid base45 that does not decompress.
	token := TokenPrefix + base45.Encode([]byte("definitely not zlib data"))
	if _, err := Decode(token); err == nil {
		t.Error("Decode() = nil error for non-zlib content")
	}
}

func TestDecodeTokenMalformedEnvelope(t *testing.T) {
	token := buildToken(t, mustMarshal(t, "not an envelope"))
	_, err := Decode(token)
	var envErr MalformedEnvelopeError
	if !errors.As(err, &envErr) {
		t.Errorf("Decode() error = %v, want MalformedEnvelopeError", err)
	}
}
