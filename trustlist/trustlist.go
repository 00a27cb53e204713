// Package trustlist loads the list of trusted signer certificates and
// provides key-identifier lookup for signature verification.
package trustlist

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CertTypeDCC tags document-signer entries; other entry types (CSCA,
// upload certificates) do not participate in lookup.
const CertTypeDCC = "DCC"

// Certificate is one raw trust-list record as published.
type Certificate struct {
	CertificateType string `json:"certificateType"`
	Country         string `json:"country"`
	Kid             string `json:"kid"`
	RawData         string `json:"rawData"`
	Signature       string `json:"signature"`
	Thumbprint      string `json:"thumbprint"`
	Timestamp       string `json:"timestamp"`
}

// TrustList is the JSON document shape of the published list.
type TrustList struct {
	Certificates []Certificate `json:"certificates"`
}

// Load reads a trust-list JSON file.
func Load(path string) (*TrustList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var list TrustList
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode trust list %s: %w", path, err)
	}
	return &list, nil
}

// Signer is a decoded trust-list entry, ready for lookup and public-key
// extraction. Read-only after construction.
type Signer struct {
	KeyID      []byte
	Country    string
	Raw        []byte // DER certificate
	Thumbprint []byte
	Timestamp  string
}

// Certificate parses the signer's DER bytes.
func (s *Signer) Certificate() (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(s.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer certificate: %w", err)
	}
	return cert, nil
}

// VerifyThumbprint checks the declared SHA-256 thumbprint against the raw
// certificate bytes.
func (s *Signer) VerifyThumbprint() error {
	if len(s.Thumbprint) == 0 {
		return fmt.Errorf("signer has no thumbprint")
	}
	sum := sha256.Sum256(s.Raw)
	if !bytes.Equal(sum[:], s.Thumbprint) {
		return fmt.Errorf("thumbprint mismatch for kid %x", s.KeyID)
	}
	return nil
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for skipped entries.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the in-memory lookup table over the trust list. Immutable after
// construction, safe for concurrent readers.
type Store struct {
	signers []*Signer
	logger  *slog.Logger
}

// NewStore decodes the list's base64 fields and indexes the document-signer
// entries. Entries that fail to decode are logged and skipped; lookup order
// follows load order.
func NewStore(list *TrustList, opts ...StoreOption) *Store {
	store := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(store)
	}
	if list == nil {
		return store
	}

	for _, cert := range list.Certificates {
		if cert.CertificateType != CertTypeDCC {
			continue
		}

		kid, err := base64.StdEncoding.DecodeString(cert.Kid)
		if err != nil {
			store.logger.Warn("skipping trust-list entry with invalid kid", "kid", cert.Kid, "err", err)
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(cert.RawData)
		if err != nil {
			store.logger.Warn("skipping trust-list entry with invalid rawData", "kid", cert.Kid, "err", err)
			continue
		}
		// The thumbprint is hex encoded; it is optional for lookup.
		thumbprint, err := hex.DecodeString(cert.Thumbprint)
		if err != nil {
			thumbprint = nil
		}

		store.signers = append(store.signers, &Signer{
			KeyID:      kid,
			Country:    cert.Country,
			Raw:        raw,
			Thumbprint: thumbprint,
			Timestamp:  cert.Timestamp,
		})
	}
	return store
}

// Len reports the number of usable signer entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.signers)
}

// FindByKeyID returns the first signer whose key identifier matches id
// byte-for-byte, or nil when the identifier is unknown. A nil result is a
// trust determination, not an error.
func (s *Store) FindByKeyID(id []byte) *Signer {
	if s == nil {
		return nil
	}
	for _, signer := range s.signers {
		if bytes.Equal(signer.KeyID, id) {
			return signer
		}
	}
	return nil
}
