// (c) 2024, SCREAMSOCIETY. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SCREAMSOCIETY/SolanaBurner-sub000/ratelimit"
)

const (
	listenAddrKey     = "listen-addr"
	configKey         = "config"
	ledgerURLKey      = "ledger-url"
	keypairKey        = "keypair"
	stalenessKey      = "proof-staleness"
	confirmTimeoutKey = "confirm-timeout"
	itemDelayKey      = "batch-item-delay"
	legacyLeafZeroKey = "allow-legacy-leaf-zero"
	defaultListenAddr = ":8080"
	defaultLedgerURL  = "https://api.mainnet-beta.solana.com"
	envPrefix         = "burner"
)

// ProviderParams configures one upstream data provider, in priority order.
type ProviderParams struct {
	Name            string  `mapstructure:"name"`
	URL             string  `mapstructure:"url"`
	APIKey          string  `mapstructure:"api_key"`
	Capacity        int     `mapstructure:"capacity"`
	RefillPerSecond float64 `mapstructure:"refill_per_second"`
	QueueBound      int     `mapstructure:"queue_bound"`
}

// Params is the fully loaded service configuration.
type Params struct {
	ListenAddr          string
	LedgerURL           string
	KeypairPath         string
	ProofStaleness      time.Duration
	ConfirmTimeout      time.Duration
	BatchItemDelay      time.Duration
	AllowLegacyLeafZero bool
	Providers           []ProviderParams
}

// Budgets returns the per-provider rate limiter budgets.
func (p *Params) Budgets() map[string]ratelimit.Budget {
	budgets := make(map[string]ratelimit.Budget, len(p.Providers))
	for _, prov := range p.Providers {
		budgets[prov.Name] = ratelimit.Budget{
			Capacity:        prov.Capacity,
			RefillPerSecond: prov.RefillPerSecond,
			QueueBound:      prov.QueueBound,
		}
	}
	return budgets
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("burner", flag.ContinueOnError)

	fs.String(configKey, "", "Path to the YAML config file listing providers")
	fs.String(listenAddrKey, defaultListenAddr, "Address the API server listens on")
	fs.String(ledgerURLKey, defaultLedgerURL, "Ledger RPC endpoint for submission and confirmation")
	fs.String(keypairKey, "", "Path to an ed25519 keypair file; empty disables server-side signing")
	fs.Duration(stalenessKey, 10*time.Second, "Window after which a fetched proof is considered stale")
	fs.Duration(confirmTimeoutKey, 60*time.Second, "Bound on the per-item confirmation wait")
	fs.Duration(itemDelayKey, 3*time.Second, "Pause between batch items")
	fs.Bool(legacyLeafZeroKey, false, "Default a missing leaf index to 0 for legacy trees")

	return fs
}

// getViper returns the viper environment for the service binary
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	if path := v.GetString(configKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

// LoadParams builds Params from flags, environment and the optional config
// file.
func LoadParams() (*Params, error) {
	v, err := getViper()
	if err != nil {
		return nil, err
	}

	params := &Params{
		ListenAddr:          v.GetString(listenAddrKey),
		LedgerURL:           v.GetString(ledgerURLKey),
		KeypairPath:         v.GetString(keypairKey),
		ProofStaleness:      v.GetDuration(stalenessKey),
		ConfirmTimeout:      v.GetDuration(confirmTimeoutKey),
		BatchItemDelay:      v.GetDuration(itemDelayKey),
		AllowLegacyLeafZero: v.GetBool(legacyLeafZeroKey),
	}
	if err := v.UnmarshalKey("providers", &params.Providers); err != nil {
		return nil, fmt.Errorf("decoding providers: %w", err)
	}
	if len(params.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	for i, prov := range params.Providers {
		if prov.Name == "" || prov.URL == "" {
			return nil, fmt.Errorf("provider %d: name and url are required", i)
		}
	}
	return params, nil
}
