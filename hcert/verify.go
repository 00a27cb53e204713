package hcert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/Xiphoseer/dcc-decode/trustlist"
)

// SignatureAlgorithm is the closed set of signer key algorithms this
// verifier implements. Anything outside the set is an explicit
// UnsupportedAlgorithmError, never a fallback.
type SignatureAlgorithm int

const (
	AlgUnknown SignatureAlgorithm = iota
	// AlgES256 is an EC public key on P-256 paired with ECDSA-SHA256.
	AlgES256
)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveP256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
)

// publicKeyInfo mirrors the SubjectPublicKeyInfo SEQUENCE.
type publicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// signerAlgorithm inspects the certificate's subject-public-key-info
// algorithm identifier and maps it onto the supported set.
func signerAlgorithm(cert *x509.Certificate) (SignatureAlgorithm, error) {
	var spki publicKeyInfo
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return AlgUnknown, fmt.Errorf("hcert: failed to parse subject public key info: %w", err)
	}

	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return AlgUnknown, UnsupportedAlgorithmError{OID: spki.Algorithm.Algorithm}
	}

	var curve asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curve); err != nil {
		return AlgUnknown, UnsupportedAlgorithmError{OID: spki.Algorithm.Algorithm}
	}
	if !curve.Equal(oidNamedCurveP256) {
		return AlgUnknown, UnsupportedAlgorithmError{OID: spki.Algorithm.Algorithm, CurveOID: curve}
	}

	return AlgES256, nil
}

// SigStructure reconstructs the byte sequence the issuer signed: the COSE
// Signature1 structure over the protected header and payload with no
// external data. Reconstruction must be byte-exact.
func SigStructure(protected, payload []byte) ([]byte, error) {
	if protected == nil {
		protected = []byte{}
	}
	if payload == nil {
		payload = []byte{}
	}
	b, err := cbor.Marshal([]interface{}{
		"Signature1",
		protected,
		[]byte{},
		payload,
	})
	if err != nil {
		return nil, fmt.Errorf("hcert: failed to encode signing structure: %w", err)
	}
	return b, nil
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithCurrentTime enables claim-validity checking against the given time.
func WithCurrentTime(t time.Time) VerifierOption {
	return func(v *Verifier) {
		v.currentTime = t
	}
}

// Verifier checks envelope signatures against a trust store. Stateless per
// call; safe for concurrent use over the immutable store.
type Verifier struct {
	store       *trustlist.Store
	currentTime time.Time
}

// NewVerifier builds a verifier over the given trust store.
func NewVerifier(store *trustlist.Store, opts ...VerifierOption) *Verifier {
	v := &Verifier{store: store}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify resolves the envelope's key identifier against the trust store and
// checks the signature with the matched signer. ErrUntrustedSigner reports
// an unknown key identifier; the signer is returned alongside any
// verification error for diagnostics.
func (v *Verifier) Verify(env *SignedEnvelope) (*trustlist.Signer, error) {
	signer := v.store.FindByKeyID(env.KeyID())
	if signer == nil {
		return nil, ErrUntrustedSigner
	}
	if err := v.VerifySignature(env, signer); err != nil {
		return signer, err
	}
	return signer, nil
}

// VerifySignature checks the envelope signature against one signer. The
// algorithm is dispatched from the signer certificate, the signed byte
// sequence is reconstructed from the envelope, and the cryptographic check
// is delegated to the COSE library.
func (v *Verifier) VerifySignature(env *SignedEnvelope, signer *trustlist.Signer) error {
	cert, err := signer.Certificate()
	if err != nil {
		return fmt.Errorf("hcert: failed to load signer certificate: %w", err)
	}

	alg, err := signerAlgorithm(cert)
	if err != nil {
		return err
	}

	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return UnsupportedAlgorithmError{OID: oidPublicKeyECDSA}
	}

	toBeSigned, err := SigStructure(env.Protected(), env.Payload())
	if err != nil {
		return err
	}

	var coseAlg cose.Algorithm
	switch alg {
	case AlgES256:
		coseAlg = cose.AlgorithmES256
	default:
		return UnsupportedAlgorithmError{}
	}

	verifier, err := cose.NewVerifier(coseAlg, pub)
	if err != nil {
		return fmt.Errorf("hcert: failed to create verifier: %w", err)
	}
	if err := verifier.Verify(toBeSigned, env.Signature()); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

// ValidateClaims checks the payload validity window against the verifier's
// configured current time. A zero current time disables the check.
func (v *Verifier) ValidateClaims(p *CertPayload) error {
	if v.currentTime.IsZero() {
		return nil
	}
	if v.currentTime.Before(p.IssuedAt) {
		return ErrCertificateNotYetValid
	}
	if v.currentTime.After(p.ExpirationTime) {
		return ErrCertificateExpired
	}
	return nil
}
