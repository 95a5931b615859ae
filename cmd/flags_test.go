package cmd

import (
	"os"
	"testing"

	"github.com/spf13/cobra"
)

func TestAddFlagDefaults(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	var level string
	var full bool
	var port int
	switches.addFlag(c, &level, "log-level", "info", false, "")
	switches.addFlag(c, &full, "force-full", "false", false, "")
	switches.addFlag(c, &port, "port", "8080", false, "")
	if level != "info" {
		t.Fatalf("expected default log level info, got %v", level)
	}
	if full {
		t.Fatalf("expected force-full to default to false")
	}
	if port != 8080 {
		t.Fatalf("expected default port 8080, got %v", port)
	}
}

func TestAddFlagEnvOverride(t *testing.T) {
	if err := os.Setenv("SIPHON_LOG_LEVEL", "debug"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Unsetenv("SIPHON_LOG_LEVEL") }()
	c := &cobra.Command{Use: "test"}
	var level string
	switches.addFlag(c, &level, "log-level", "info", false, "")
	if level != "debug" {
		t.Fatalf("expected env override debug, got %v", level)
	}
}

func TestSetupEnvMode(t *testing.T) {
	if err := os.Setenv(envVarEnvMode, "true"); err != nil {
		t.Fatal(err)
	}
	setupEnvMode()
	if !envMode {
		t.Fatal("expected env mode to be enabled")
	}
	if err := os.Unsetenv(envVarEnvMode); err != nil {
		t.Fatal(err)
	}
	setupEnvMode()
	if envMode {
		t.Fatal("expected env mode to be disabled")
	}
}
