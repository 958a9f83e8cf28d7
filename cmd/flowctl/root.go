package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/flowkit/cmd/flowctl/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logFile string

	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "Inspect flow ids and exercise flow tables",
	Long: `flowctl works with the bounded flow tables used by the datapath
controller. It encodes and decodes flow ids, reports table sizing, and drives
a controller with synthetic workloads to observe eviction behaviour.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		fn, err := logger.Init(logger.Options{Verbose: verbose, Quiet: quiet, File: logFile})
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		closeLog = fn
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
