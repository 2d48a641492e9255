// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	log "github.com/inconshreveable/log15"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/engine"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/provider"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/ratelimit"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/resolve"
	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/service"
)

func main() {
	params, err := LoadParams()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(ratelimit.WallClock{}, ratelimit.DefaultBudget, params.Budgets())

	adapters := make([]provider.Adapter, 0, len(params.Providers))
	for _, prov := range params.Providers {
		var opts []provider.DASOption
		if prov.APIKey != "" {
			opts = append(opts, provider.WithAPIKey(prov.APIKey))
		}
		adapters = append(adapters, provider.NewDAS(prov.Name, prov.URL, limiter, opts...))
		log.Info("configured provider", "name", prov.Name, "url", prov.URL)
	}

	resolver := resolve.NewResolver(adapters, resolve.Options{
		AllowLegacyLeafZero: params.AllowLegacyLeafZero,
	})
	ledger := provider.NewLedger("ledger", params.LedgerURL, limiter)

	var signer engine.Signer
	if params.KeypairPath != "" {
		signer, err = loadKeypair(params.KeypairPath)
		if err != nil {
			log.Error("couldn't load keypair", "path", params.KeypairPath, "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no keypair configured; batch execution will reject every item")
	}

	eng := engine.New(resolver, ledger, signer, engine.Config{
		StalenessWindow: params.ProofStaleness,
		ConfirmTimeout:  params.ConfirmTimeout,
		ItemDelay:       params.BatchItemDelay,
	})

	handler, err := service.NewHandler(service.New(eng, resolver))
	if err != nil {
		log.Error("couldn't create API handler", "err", err)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle("/rpc", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Info("listening", "addr", params.ListenAddr, "providers", len(adapters), "ledger", params.LedgerURL)
	if err := http.ListenAndServe(params.ListenAddr, mux); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// loadKeypair reads a keypair file in the standard JSON byte-array format.
func loadKeypair(path string) (*engine.KeypairSigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("keypair file is not a JSON byte array: %w", err)
	}
	key := make([]byte, len(ints))
	for i, b := range ints {
		if b < 0 || b > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, b)
		}
		key[i] = byte(b)
	}
	return engine.NewKeypairSigner(ed25519.PrivateKey(key))
}
