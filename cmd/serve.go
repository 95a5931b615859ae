package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/siphon-data/siphon/actions"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service and listen for extraction requests described in JSON",
	Long: `Start a web service and listen for extraction requests described in JSON.

The server also exposes run status by lineage id, circuit breaker state with
an administrative reset endpoint, and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serveConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveConfig)
	},
}

var serveConfig = actions.WebServerConfig{
	LogLevel: "info",
	Addr:     net.IP{0, 0, 0, 0},
	Port:     8080,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().IPVarP(&serveConfig.Addr, "address", "a", net.IP{0, 0, 0, 0}, "Address to listen on")
	switches.addFlag(serveCmd, &serveConfig.Port, "port", "8080", false, "")
	switches.addFlag(serveCmd, &serveConfig.LogLevel, "log-level", "info", false, "")
}
