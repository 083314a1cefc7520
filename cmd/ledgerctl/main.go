package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webledger/ledgerstore/pkg/docstore"
	"github.com/webledger/ledgerstore/pkg/hash"
	"github.com/webledger/ledgerstore/pkg/ledger"
	"github.com/webledger/ledgerstore/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "ledgerctl - inspect and operate a web ledger storage engine",
	Long: `ledgerctl is an operator CLI for the ledger storage engine.

It opens the engine's bbolt-backed DocStore directly, so it must not be
run against a data directory a live process has open.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ledgerctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "./data", "Directory holding the bbolt data file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
}

// openRegistry opens the DocStore rooted at --data-dir and builds a
// LedgerRegistry over it. Callers must close the returned DocStore.
func openRegistry(cmd *cobra.Command) (docstore.DocStore, *ledger.LedgerRegistry, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	level, _ := cmd.Flags().GetString("log-level")
	jsonOutput, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})

	store, err := docstore.Open(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open data dir %s: %w", dataDir, err)
	}

	registry, err := ledger.NewLedgerRegistry(store, hash.New(), nil, log.Logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open ledger registry: %w", err)
	}
	return store, registry, nil
}

