package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/siphon-data/siphon/constants"
)

// GetEnvVar fetches an OS environment variable.
// It returns an error if the value is missing AND mandatory == true.
func GetEnvVar(key string, mandatory bool) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	if mandatory {
		return "", fmt.Errorf("environment variable %v is not set", key)
	}
	return "", nil
}

// EnvVarName converts a flag-style name like "erp-type" into the override
// environment variable name, e.g. SIPHON_ERP_TYPE.
func EnvVarName(name string) string {
	return constants.EnvVarPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// ReadValueFromEnvWithDefault reads the env var for name, falling back to
// defaultValue when unset.
func ReadValueFromEnvWithDefault(name string, defaultValue string) string {
	if v := os.Getenv(EnvVarName(name)); v != "" {
		return v
	}
	return defaultValue
}
