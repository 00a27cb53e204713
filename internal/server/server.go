// Package server exposes the decode-and-verify pipeline over HTTP. The
// trust store and value sets are loaded once and shared read-only; each
// request runs the stateless pipeline on its own.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Xiphoseer/dcc-decode/hcert"
	"github.com/Xiphoseer/dcc-decode/trustlist"
	"github.com/Xiphoseer/dcc-decode/valueset"
)

type Server struct {
	decoder  *hcert.Decoder
	verifier *hcert.Verifier
	logger   *slog.Logger
}

func NewServer(store *trustlist.Store, sets *valueset.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		decoder:  hcert.NewDecoder(hcert.WithValueSets(sets), hcert.WithDecodeLogger(logger)),
		verifier: hcert.NewVerifier(store),
		logger:   logger,
	}
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type VerifyResponse struct {
	KeyID       string             `json:"kid,omitempty"`
	Record      *hcert.CertPayload `json:"record,omitempty"`
	Trusted     bool               `json:"trusted"`
	Verified    bool               `json:"verified"`
	Country     string             `json:"country,omitempty"`
	DecodeError string             `json:"decodeError,omitempty"`
	VerifyError string             `json:"verifyError,omitempty"`
}

func (s *Server) VerifyToken(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	logger := s.logger.With("request_id", reqID)

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		tokensProcessed.WithLabelValues("bad_request").Inc()
		return
	}

	env, err := hcert.Decode(req.Token)
	if err != nil {
		logger.Warn("token decode failed", "err", err)
		tokensProcessed.WithLabelValues("malformed").Inc()
		writeJSON(w, http.StatusBadRequest, VerifyResponse{DecodeError: err.Error()})
		return
	}

	resp := VerifyResponse{KeyID: keyIDString(env.KeyID())}

	// Record decoding and signature verification are independent outputs;
	// a payload that fails to decode can still be verified and vice versa.
	record, err := s.decoder.Decode(env.Payload())
	if err != nil {
		logger.Warn("payload decode failed", "err", err)
		resp.DecodeError = err.Error()
	} else {
		resp.Record = record
	}

	signer, err := s.verifier.Verify(env)
	switch {
	case err == nil:
		resp.Trusted = true
		resp.Verified = true
		resp.Country = signer.Country
		tokensProcessed.WithLabelValues("verified").Inc()
	case errors.Is(err, hcert.ErrUntrustedSigner):
		resp.VerifyError = err.Error()
		tokensProcessed.WithLabelValues("untrusted").Inc()
	default:
		resp.Trusted = true
		resp.VerifyError = err.Error()
		tokensProcessed.WithLabelValues("invalid").Inc()
	}

	logger.Info("processed token",
		"kid", resp.KeyID, "trusted", resp.Trusted, "verified", resp.Verified)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func keyIDString(kid []byte) string {
	return base64.StdEncoding.EncodeToString(kid)
}
