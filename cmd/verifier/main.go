// Command verifier decodes a health-certificate token from a file or
// standard input, prints the certificate record and reports whether a
// trust-list signer vouches for it.
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/davecgh/go-spew/spew"

	"github.com/Xiphoseer/dcc-decode/hcert"
	"github.com/Xiphoseer/dcc-decode/trustlist"
	"github.com/Xiphoseer/dcc-decode/valueset"
)

var (
	jsonOut       = flag.Bool("json", false, "print the certificate as JSON instead of a debug dump")
	trustlistPath = flag.String("trustlist", "trustlist.json", "path to the trust-list JSON file")
	valuesetDir   = flag.String("valuesets", "ehn-dcc-valuesets", "directory with the eHN value-set files")
)

func readToken(path string) (string, error) {
	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no input")
		}
		return scanner.Text(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func main() {
	flag.Parse()

	file := "-"
	if flag.NArg() > 0 {
		file = flag.Arg(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sets := valueset.LoadRegistry(*valuesetDir, logger)

	token, err := readToken(file)
	if err != nil {
		log.Fatalf("failed to read token: %v", err)
	}

	env, err := hcert.Decode(token)
	if err != nil {
		log.Fatalf("failed to decode token: %v", err)
	}
	kid := base64.StdEncoding.EncodeToString(env.KeyID())
	logger.Info("well-formed signed envelope", "kid", kid)

	exitCode := 0

	decoder := hcert.NewDecoder(hcert.WithValueSets(sets), hcert.WithDecodeLogger(logger))
	record, err := decoder.Decode(env.Payload())
	if err != nil {
		// The envelope may still verify; keep going and report both.
		logger.Error("failed to decode certificate payload", "err", err)
		exitCode = 1
	} else if *jsonOut {
		if err := json.NewEncoder(os.Stdout).Encode(record.HealthClaim.Cert); err != nil {
			log.Fatalf("failed to encode output: %v", err)
		}
	} else {
		fmt.Print(spew.Sdump(record))
	}

	var store *trustlist.Store
	if list, err := trustlist.Load(*trustlistPath); err != nil {
		logger.Warn("trust list unavailable", "path", *trustlistPath, "err", err)
	} else {
		store = trustlist.NewStore(list, trustlist.WithLogger(logger))
		logger.Debug("trust list loaded", "signers", store.Len())
	}

	verifier := hcert.NewVerifier(store)
	signer, err := verifier.Verify(env)
	switch {
	case err == nil:
		logger.Info("signature verified", "kid", kid, "country", signer.Country)
	case errors.Is(err, hcert.ErrUntrustedSigner):
		logger.Warn("no trust-list entry for key identifier", "kid", kid)
	default:
		logger.Error("verification failed", "kid", kid, "err", err)
		exitCode = 1
	}

	os.Exit(exitCode)
}
