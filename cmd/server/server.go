// Command server runs the HTTP verification service.
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Xiphoseer/dcc-decode/internal/config"
	"github.com/Xiphoseer/dcc-decode/internal/server"
	"github.com/Xiphoseer/dcc-decode/trustlist"
	"github.com/Xiphoseer/dcc-decode/valueset"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var store *trustlist.Store
	if list, err := trustlist.Load(cfg.TrustList); err != nil {
		logger.Warn("trust list unavailable, all tokens will be untrusted", "path", cfg.TrustList, "err", err)
		store = trustlist.NewStore(nil)
	} else {
		store = trustlist.NewStore(list, trustlist.WithLogger(logger))
		logger.Info("trust list loaded", "signers", store.Len())
	}

	sets := valueset.LoadRegistry(cfg.ValueSetDir, logger)

	srv := server.NewServer(store, sets, logger)

	r := mux.NewRouter()
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"POST", "GET"}),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedOrigins([]string{"*"}),
	))

	r.HandleFunc("/verify", srv.VerifyToken).Methods("POST", "OPTIONS")
	r.HandleFunc("/healthz", srv.Healthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	log.Println("starting hcert verification server at", cfg.Listen)
	log.Fatal(http.ListenAndServe(cfg.Listen, r))
}
