// Package cmd provides the CLI commands for QuadGuard.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quadguard/quadguard/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quadguard",
	Short: "QuadGuard - multi-agent LLM safety mediator",
	Long: `QuadGuard mediates messages and tool calls between LLM agents against a
propositional policy derived from natural-language rules, escalating
violations to a two-tier LLM adjudication chain.

Quick start:
  1. Create a config file: quadguard.yaml
  2. Ingest a policy document: quadguard ingest policy.md
  3. Run: quadguard serve

Configuration:
  Config is loaded from quadguard.yaml in the current directory,
  $HOME/.quadguard/, or /etc/quadguard/.

  Environment variables override config values with the QUADGUARD_ prefix.
  Example: QUADGUARD_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the mediator and its HTTP/host-runtime surfaces
  ingest      Extract a policy set from a document into the cache
  stop        Stop the running server
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./quadguard.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
