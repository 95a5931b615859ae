package cmd

import (
	"github.com/spf13/cobra"

	"github.com/siphon-data/siphon/constants"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure ERP connectors and credentials",
	Long: `Configure ERP connectors & credentials where:

- ERP configuration is stored in file "` + constants.ErpConfigFileName + `" under the tool home dir
- Credentials are stored encrypted in file "` + constants.CredentialsFileName + `" under the tool home dir
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
