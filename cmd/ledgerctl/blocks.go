package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webledger/ledgerstore/pkg/ledger"
)

var blockLatestCmd = &cobra.Command{
	Use:   "block-latest <ledgerId>",
	Short: "Print the summary of the ledger's latest block",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlockLatest,
}

var blockGenesisCmd = &cobra.Command{
	Use:   "block-genesis <ledgerId>",
	Short: "Print the ledger's genesis block with its events expanded",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlockGenesis,
}

var recordHistoryCmd = &cobra.Command{
	Use:   "record-history <ledgerId> <recordId>",
	Short: "Print the consensus history of one record",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordHistory,
}

func init() {
	rootCmd.AddCommand(blockLatestCmd, blockGenesisCmd, recordHistoryCmd)
}

func runBlockLatest(cmd *cobra.Command, args []string) error {
	return withHandle(cmd, args[0], func(ctx context.Context, handle *ledger.StorageHandle) error {
		summary, err := handle.Blocks.GetLatestSummary(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		return printJSON(summary)
	})
}

func runBlockGenesis(cmd *cobra.Command, args []string) error {
	return withHandle(cmd, args[0], func(ctx context.Context, handle *ledger.StorageHandle) error {
		block, err := handle.Blocks.GetGenesis(ctx)
		if err != nil {
			return fmt.Errorf("get genesis block: %w", err)
		}
		return printJSON(block)
	})
}

func runRecordHistory(cmd *cobra.Command, args []string) error {
	recordID := args[1]
	return withHandle(cmd, args[0], func(ctx context.Context, handle *ledger.StorageHandle) error {
		entries, err := handle.Operations.GetRecordHistory(ctx, recordID, nil)
		if err != nil {
			return fmt.Errorf("get record history: %w", err)
		}
		return printJSON(entries)
	})
}

// withHandle opens the registry, reopens ledgerID's StorageHandle with no
// plugins bound, and runs fn against it.
func withHandle(cmd *cobra.Command, ledgerID string, fn func(ctx context.Context, handle *ledger.StorageHandle) error) error {
	store, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	handle, err := registry.Get(ctx, ledgerID, map[string]ledger.Plugin{})
	if err != nil {
		return fmt.Errorf("get ledger %s: %w", ledgerID, err)
	}
	return fn(ctx, handle)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
