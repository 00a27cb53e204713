package hcert

import (
	"encoding/asn1"
	"errors"
	"fmt"
)

// Input format errors. Always fatal for the current token.
var (
	// ErrBadPrefix reports a token that does not carry the HC1 scheme prefix.
	ErrBadPrefix = errors.New("hcert: token does not start with " + TokenPrefix)
)

// MalformedEnvelopeError reports decompressed bytes whose structure is not
// the expected four-element signed envelope.
type MalformedEnvelopeError struct {
	Reason string
}

func (e MalformedEnvelopeError) Error() string {
	return "hcert: malformed envelope: " + e.Reason
}

// MissingFieldError reports a required payload field that is absent.
type MissingFieldError struct {
	Name string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("hcert: missing required field %q", e.Name)
}

// MalformedFieldError reports a present payload field of the wrong shape.
type MalformedFieldError struct {
	Name string
	Err  error
}

func (e MalformedFieldError) Error() string {
	return fmt.Sprintf("hcert: malformed field %q: %v", e.Name, e.Err)
}

func (e MalformedFieldError) Unwrap() error {
	return e.Err
}

// Trust and verification outcomes. ErrUntrustedSigner is a reportable
// determination distinct from a cryptographic failure.
var (
	ErrUntrustedSigner  = errors.New("hcert: no trust-list entry for key identifier")
	ErrSignatureInvalid = errors.New("hcert: signature verification failed")

	ErrCertificateExpired     = errors.New("hcert: certificate has expired")
	ErrCertificateNotYetValid = errors.New("hcert: certificate is not yet valid")
)

// UnsupportedAlgorithmError reports a signer public-key algorithm outside
// the closed set this verifier implements. It carries the raw identifiers
// for diagnostics; verification never falls back silently.
type UnsupportedAlgorithmError struct {
	OID      asn1.ObjectIdentifier
	CurveOID asn1.ObjectIdentifier
}

func (e UnsupportedAlgorithmError) Error() string {
	if len(e.CurveOID) > 0 {
		return fmt.Sprintf("hcert: unsupported signer algorithm %v on curve %v", e.OID, e.CurveOID)
	}
	return fmt.Sprintf("hcert: unsupported signer algorithm %v", e.OID)
}
