package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/webledger/ledgerstore/pkg/config"
)

var configInitCmd = &cobra.Command{
	Use:   "config-init [file]",
	Short: "Write a default configuration file",
	Long: `Write the engine's default configuration to a YAML file.

Examples:
  # Write defaults to ./ledgerstore.yaml
  ledgerctl config-init ledgerstore.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg := config.Default()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("✓ Wrote default configuration: %s\n", path)
	return nil
}
