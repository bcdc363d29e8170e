package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "relaycast relay/fan-out server",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/relaycast.example.yaml", "path to configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
