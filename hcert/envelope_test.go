package hcert

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := cbor.Marshal(v)
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}
	return b
}

func TestParseEnvelope(t *testing.T) {
	kid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	payload := []byte("payload bytes")
	signature := []byte("signature bytes")
	protected := mustMarshal(t, map[int64]interface{}{1: int64(-7)})

	data := mustMarshal(t, signedCWT{
		Protected:   protected,
		Unprotected: coseHeader{Kid: kid},
		Payload:     payload,
		Signature:   signature,
	})

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope() error: %v", err)
	}
	if !bytes.Equal(env.KeyID(), kid) {
		t.Errorf("KeyID = %x, want %x", env.KeyID(), kid)
	}
	if !bytes.Equal(env.Protected(), protected) {
		t.Errorf("Protected = %x, want %x", env.Protected(), protected)
	}
	if !bytes.Equal(env.Payload(), payload) {
		t.Errorf("Payload = %x, want %x", env.Payload(), payload)
	}
	if !bytes.Equal(env.Signature(), signature) {
		t.Errorf("Signature = %x, want %x", env.Signature(), signature)
	}
}

func TestParseEnvelopeTagged(t *testing.T) {
	kid := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	inner := signedCWT{
		Protected:   mustMarshal(t, map[int64]interface{}{1: int64(-7)}),
		Unprotected: coseHeader{Kid: kid},
		Payload:     []byte("p"),
		Signature:   []byte("s"),
	}
	data := mustMarshal(t, cbor.Tag{Number: 18, Content: inner})

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope() error: %v", err)
	}
	if !bytes.Equal(env.KeyID(), kid) {
		t.Errorf("KeyID = %x, want %x", env.KeyID(), kid)
	}
}

// The protected header carries the authoritative key identifier; a kid
// duplicated in the unprotected map must lose.
func TestParseEnvelopeKidPrecedence(t *testing.T) {
	protectedKid := []byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	unprotectedKid := []byte{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}

	data := mustMarshal(t, signedCWT{
		Protected:   mustMarshal(t, map[int64]interface{}{1: int64(-7), 4: protectedKid}),
		Unprotected: coseHeader{Kid: unprotectedKid},
		Payload:     []byte("p"),
		Signature:   []byte("s"),
	})

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope() error: %v", err)
	}
	if !bytes.Equal(env.KeyID(), protectedKid) {
		t.Errorf("KeyID = %x, want protected-header kid %x", env.KeyID(), protectedKid)
	}
}

func TestParseEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not cbor", []byte("this is not cbor at all")},
		{"not an array", mustMarshal(t, map[int64]interface{}{1: "x"})},
		{"wrong element count", mustMarshal(t, []interface{}{[]byte{}, map[int64]interface{}{}, []byte("p")})},
		{"undecodable protected header", mustMarshal(t, []interface{}{
			[]byte{0xff, 0xff}, map[int64]interface{}{}, []byte("p"), []byte("s"),
		})},
		{"missing key identifier", mustMarshal(t, signedCWT{
			Protected: mustMarshal(t, map[int64]interface{}{1: int64(-7)}),
			Payload:   []byte("p"),
			Signature: []byte("s"),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.data)
			var envErr MalformedEnvelopeError
			if !errors.As(err, &envErr) {
				t.Errorf("ParseEnvelope() error = %v, want MalformedEnvelopeError", err)
			}
		})
	}
}
