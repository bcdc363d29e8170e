package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relaycast/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "load and validate the configuration file without starting the server",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	fmt.Printf("%s: ok (%d mount(s))\n", configPath, len(cfg.Mounts))
	return nil
}
