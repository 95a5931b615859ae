package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siphon-data/siphon/credentials"
)

var configCredsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Configure credentials per (erp-type, client-id, data-type) scope",
	Long: `Store credentials for an extraction scope. Credentials are encrypted at
rest. Leave data-type empty to share the credentials across all data types of
the client.`,
}

func init() {
	configCmd.AddCommand(configCredsCmd)
	initCredsAdd()
}

var credsAddCfg = struct {
	ErpType    string
	ClientId   string
	DataType   string
	Kind       string
	Values     []string
	TtlSeconds int
}{}

var configCredsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace the credentials for a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		kind := credentials.Kind(credsAddCfg.Kind)
		switch kind {
		case credentials.KindApiKey, credentials.KindDbSecret, credentials.KindClientCert:
		default:
			return fmt.Errorf("unknown credential kind %q", credsAddCfg.Kind)
		}
		values := make(map[string]string, len(credsAddCfg.Values))
		for _, pair := range credsAddCfg.Values { // for each name=value pair...
			name, value, found := strings.Cut(pair, "=")
			if !found || name == "" {
				return fmt.Errorf("value %q is not of the form name=value", pair)
			}
			values[name] = value
		}
		if len(values) == 0 {
			return fmt.Errorf("at least one --value name=value is required")
		}
		store := credentials.NewFileStore()
		if err := store.SetCredentials(credsAddCfg.ErpType, credsAddCfg.ClientId, credsAddCfg.DataType, kind, values, credsAddCfg.TtlSeconds); err != nil {
			return err
		}
		fmt.Printf("credentials saved for %v\n", credentials.ScopeKey(credsAddCfg.ErpType, credsAddCfg.ClientId, credsAddCfg.DataType))
		return nil
	},
}

func initCredsAdd() {
	configCredsCmd.AddCommand(configCredsAddCmd)
	configCredsAddCmd.Flags().SortFlags = false
	switches.addFlag(configCredsAddCmd, &credsAddCfg.ErpType, "erp-type", "", true, "")
	switches.addFlag(configCredsAddCmd, &credsAddCfg.ClientId, "client-id", "", true, "")
	switches.addFlag(configCredsAddCmd, &credsAddCfg.DataType, "data-type", "", false, " (empty to share across data types)")
	switches.addFlag(configCredsAddCmd, &credsAddCfg.Kind, "kind", "", true, "")
	configCredsAddCmd.Flags().StringArrayVarP(&credsAddCfg.Values, "value", "v", nil, switches["value"].desc)
	_ = configCredsAddCmd.MarkFlagRequired("value")
	switches.addFlag(configCredsAddCmd, &credsAddCfg.TtlSeconds, "ttl-seconds", "0", false, "")
}
