package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clearfund/config"
	"clearfund/core"
	"clearfund/crypto"
	"clearfund/observability/logging"
	"clearfund/rpc"
	"clearfund/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CLEARFUND_ENV"))
	logger := logging.Setup("clearfundd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	vault, err := crypto.ParseAddress(cfg.VaultAddress)
	if err != nil {
		logger.Error("Invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(db, vault)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	allocs, err := genesisAllocs(cfg)
	if err != nil {
		logger.Error("Invalid genesis allocation", slog.Any("error", err))
		os.Exit(1)
	}
	if err := node.ApplyGenesis(allocs); err != nil {
		logger.Error("Failed to apply genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}

	interval := time.Duration(cfg.BlockIntervalMS) * time.Millisecond
	go runBlockTicker(node, interval, logger)

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("Starting JSON-RPC server",
		slog.String("network", cfg.NetworkName),
		slog.String("address", cfg.RPCAddress),
		slog.Uint64("height", node.CurrentHeight()))

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// runBlockTicker advances the height counter at the configured cadence. The
// engine only ever reads the counter; mining semantics live outside the node.
func runBlockTicker(node *core.Node, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := node.AdvanceHeight(); err != nil {
			logger.Error("Failed to advance height", slog.Any("error", err))
		}
	}
}

func genesisAllocs(cfg *config.Config) ([]core.GenesisAlloc, error) {
	allocs := make([]core.GenesisAlloc, 0, len(cfg.GenesisAccounts))
	for _, acct := range cfg.GenesisAccounts {
		addr, err := crypto.ParseAddress(acct.Address)
		if err != nil {
			return nil, err
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acct.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("invalid balance %q for %s", acct.Balance, acct.Address)
		}
		allocs = append(allocs, core.GenesisAlloc{Address: addr, Balance: balance})
	}
	return allocs, nil
}
