package cmd

import (
	"os"
	"strings"

	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/helper"
	"github.com/siphon-data/siphon/logger"
)

// init will be called first due to the lexical order in which these functions
// are executed. This ensures the value of envMode is set before other init()
// functions configure Cobra.
func init() {
	setupEnvMode()
}

// setupEnvMode enables or disables environment-driven execution based on
// SIPHON_12FACTOR_MODE. In this mode the extract action is configured entirely
// from environment variables, for container schedulers that cannot pass args.
func setupEnvMode() {
	mode := os.Getenv(envVarEnvMode)
	envMode = mode != "" // explicitly turn off since tests may toggle it.
}

const (
	envVarEnvMode   = constants.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarErpType   = constants.EnvVarPrefix + "_" + "ERP_TYPE"
	envVarClientId  = constants.EnvVarPrefix + "_" + "CLIENT_ID"
	envVarDataType  = constants.EnvVarPrefix + "_" + "DATA_TYPE"
	envVarForceFull = constants.EnvVarPrefix + "_" + "FORCE_FULL"
	envVarStackDump = constants.EnvVarPrefix + "_" + "STACK_DUMP"
)

var envMode bool // true if os env var envVarEnvMode is set

// executeEnvMode runs one extraction configured from the environment and
// returns the process exit code.
func executeEnvMode() int {
	logLevel := helper.ReadValueFromEnvWithDefault("log-level", "warn")
	log := logger.NewLogger(constants.ServiceName, logLevel, os.Getenv(envVarStackDump) != "")
	log.Info("running in 12-factor mode, extraction configured from the environment")
	extractCfg.LogLevel = logLevel
	extractCfg.Request.ErpType = os.Getenv(envVarErpType)
	extractCfg.Request.ClientId = os.Getenv(envVarClientId)
	extractCfg.Request.DataType = os.Getenv(envVarDataType)
	extractCfg.Request.ForceFullExtract = strings.EqualFold(os.Getenv(envVarForceFull), "true")
	return runExtract()
}
