package hcert

import (
	"github.com/fxamacker/cbor/v2"
)

// COSE header parameters this package reads (RFC 8152 common headers).
type coseHeader struct {
	Alg int    `cbor:"1,keyasint,omitempty"`
	Kid []byte `cbor:"4,keyasint,omitempty"`
}

// signedCWT is the COSE_Sign1 wire shape: a four-element array of protected
// header bytes, unprotected header map, payload and signature.
type signedCWT struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected coseHeader
	Payload     []byte
	Signature   []byte
}

// SignedEnvelope is the parsed signed wrapper around a certificate payload.
// Immutable once parsed; payload and signature stay opaque at this layer.
type SignedEnvelope struct {
	keyID     []byte
	protected []byte
	payload   []byte
	signature []byte
}

// KeyID identifies the trust-list entry expected to verify the signature.
func (e *SignedEnvelope) KeyID() []byte { return e.keyID }

// Protected returns the serialized protected-header bytes.
func (e *SignedEnvelope) Protected() []byte { return e.protected }

// Payload returns the encoded certificate payload.
func (e *SignedEnvelope) Payload() []byte { return e.payload }

// Signature returns the raw signature bytes.
func (e *SignedEnvelope) Signature() []byte { return e.signature }

// ParseEnvelope parses decompressed token bytes into a SignedEnvelope. The
// input may carry the COSE_Sign1 tag or be a bare array. The key identifier
// is taken from the protected header when present there, falling back to
// the unprotected map.
func ParseEnvelope(data []byte) (*SignedEnvelope, error) {
	var raw signedCWT
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, MalformedEnvelopeError{Reason: err.Error()}
	}

	kid := raw.Unprotected.Kid
	if len(raw.Protected) > 0 {
		var ph coseHeader
		if err := cbor.Unmarshal(raw.Protected, &ph); err != nil {
			return nil, MalformedEnvelopeError{Reason: "undecodable protected header: " + err.Error()}
		}
		if len(ph.Kid) > 0 {
			kid = ph.Kid
		}
	}
	if len(kid) == 0 {
		return nil, MalformedEnvelopeError{Reason: "missing key identifier"}
	}

	return &SignedEnvelope{
		keyID:     kid,
		protected: raw.Protected,
		payload:   raw.Payload,
		signature: raw.Signature,
	}, nil
}
