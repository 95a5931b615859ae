package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siphon-data/siphon/actions"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/logger"
)

// extractConfig is the full CLI surface of one extraction run.
type extractConfig struct {
	LogLevel string
	Request  actions.ExtractionRequest
}

var extractCfg = extractConfig{LogLevel: "info"}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run one extraction for an (erp-type, client-id, data-type) tuple",
	Long: `Run one extraction end to end: resolve configuration and credentials,
extract from the ERP via its API or database, map the data onto the standard
schema, validate it and upload a compressed columnar file to object storage.

The process exit code reports the outcome:

  0  success
  1  configuration error
  2  credential error
  3  extraction failure (including retries exhausted and open circuits)
  4  critical validation failure
  5  upload failure
`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runExtract())
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().SortFlags = false
	switches.addFlag(extractCmd, &extractCfg.Request.ErpType, "erp-type", "", true, "")
	switches.addFlag(extractCmd, &extractCfg.Request.ClientId, "client-id", "", true, "")
	switches.addFlag(extractCmd, &extractCfg.Request.DataType, "data-type", "", true, "")
	switches.addFlag(extractCmd, &extractCfg.Request.ForceFullExtract, "force-full", "false", false, "")
	switches.addFlag(extractCmd, &extractCfg.LogLevel, "log-level", "info", false, "")
}

// runExtract executes the request with cancellation wired to SIGINT/SIGTERM
// and returns the process exit code.
func runExtract() int {
	log := logger.NewLogger(constants.ServiceName, extractCfg.LogLevel, stackDumpOnPanic)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chanSignal := make(chan os.Signal, 1)
	signal.Notify(chanSignal, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-chanSignal
		log.Warn("caught signal ", sig, ", cancelling at the next phase boundary")
		cancel()
	}()
	orch := actions.NewOrchestrator(log)
	result := orch.Run(ctx, extractCfg.Request)
	if result.Err != nil {
		log.Error("Error: ", result.Err)
	}
	return result.ExitCode()
}
