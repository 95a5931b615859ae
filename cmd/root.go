package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2026-01-02T03:04+0000"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "siphon",
	Long: `Siphon extracts data from ERP systems, maps it onto a standard schema,
validates it and lands it in object storage as compressed columnar files,
recording full lineage for every run.

Use 'siphon extract' for one-shot runs, or 'siphon serve' to launch an HTTP
server that accepts extraction requests and exposes run status, circuit
breaker state and Prometheus metrics.`,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// A local .env file supplies SIPHON_* variables in dev environments.
	_ = godotenv.Load()
	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if envMode { // if we are running based on environment variables...
		os.Exit(executeEnvMode())
	}
	if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}
