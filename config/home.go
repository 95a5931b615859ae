package config

import (
	"fmt"
	"os"
	"path"

	"github.com/mitchellh/go-homedir"
	"github.com/siphon-data/siphon/constants"
)

var siphonHomeDir string

// MustGetHomeDir returns the full path to the directory holding all local
// config and state files (~/.siphon by default, SIPHON_HOME overrides).
func MustGetHomeDir() string {
	if siphonHomeDir == "" {
		if env := os.Getenv(constants.EnvVarPrefix + "_HOME"); env != "" {
			siphonHomeDir = env
			return siphonHomeDir
		}
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		siphonHomeDir = path.Join(home, constants.HomeDirName)
	}
	return siphonHomeDir
}

// SetHomeDir overrides the home directory, used by tests.
func SetHomeDir(dir string) {
	siphonHomeDir = dir
}

// LineageDir is where lineage records land, under the tool home dir.
func LineageDir() string {
	return path.Join(MustGetHomeDir(), constants.LineageDirName)
}

// makeDir creates the given directory if it does not already exist.
func makeDir(dir string) error {
	_, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %v", dir)
		}
		return nil
	}
	return err
}
