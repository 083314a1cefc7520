package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webledger/ledgerstore/pkg/ledger"
)

var ledgerAddCmd = &cobra.Command{
	Use:   "ledger-add <ledgerId>",
	Short: "Register a new ledger",
	Long: `Open a new ledger, minting its block/event/operation collections.

Examples:
  ledgerctl ledger-add urn:uuid:6a1d3-... --data-dir ./data`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerAdd,
}

var ledgerGetCmd = &cobra.Command{
	Use:   "ledger-get <ledgerId>",
	Short: "Show a registered ledger's storage handle",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerGet,
}

var ledgerRemoveCmd = &cobra.Command{
	Use:   "ledger-remove <ledgerId>",
	Short: "Soft-delete a registered ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerRemove,
}

var ledgerListCmd = &cobra.Command{
	Use:   "ledger-list",
	Short: "List every registered, non-deleted ledger",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

func init() {
	rootCmd.AddCommand(ledgerAddCmd, ledgerGetCmd, ledgerRemoveCmd, ledgerListCmd)
}

func runLedgerAdd(cmd *cobra.Command, args []string) error {
	store, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	handle, err := registry.Add(context.Background(), args[0], map[string]ledger.Plugin{})
	if err != nil {
		return fmt.Errorf("add ledger: %w", err)
	}

	fmt.Printf("✓ Ledger registered: %s\n", handle.LedgerID)
	fmt.Printf("  storageId:    %s\n", handle.StorageID)
	fmt.Printf("  ledgerNodeId: %s\n", handle.LedgerNodeID)
	return nil
}

func runLedgerGet(cmd *cobra.Command, args []string) error {
	store, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	handle, err := registry.Get(context.Background(), args[0], map[string]ledger.Plugin{})
	if err != nil {
		return fmt.Errorf("get ledger: %w", err)
	}

	fmt.Printf("ledgerId:     %s\n", handle.LedgerID)
	fmt.Printf("storageId:    %s\n", handle.StorageID)
	fmt.Printf("ledgerNodeId: %s\n", handle.LedgerNodeID)
	fmt.Printf("plugins:      %v\n", handle.Plugins())
	return nil
}

func runLedgerRemove(cmd *cobra.Command, args []string) error {
	store, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := registry.Remove(context.Background(), args[0]); err != nil {
		return fmt.Errorf("remove ledger: %w", err)
	}

	fmt.Printf("✓ Ledger removed: %s\n", args[0])
	return nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	store, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	it, err := registry.Iterate(ctx)
	if err != nil {
		return fmt.Errorf("iterate ledgers: %w", err)
	}
	defer it.Close(ctx)

	count := 0
	for it.Next(ctx) {
		row := it.Row()
		fmt.Printf("%s\t(storageId=%s, ledgerNodeId=%s)\n", row.LedgerID, row.StorageID, row.LedgerNodeID)
		count++
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("iterate ledgers: %w", err)
	}
	if count == 0 {
		fmt.Println("(no ledgers registered)")
	}
	return nil
}
