package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siphon-data/siphon/aws/s3"
	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/erp"
)

var configErpCmd = &cobra.Command{
	Use:   "erp",
	Short: "Configure ERP connectors per client",
	Long: fmt.Sprintf(`Configure how each (erp-type, client-id) pair is extracted. Registered
connector types are: %v`, strings.Join(erp.RegisteredNames(), ", ")),
}

func init() {
	configCmd.AddCommand(configErpCmd)
	initErpAdd()
	initErpList()
	initErpRemove()
}

// erpConfigFile opens the ERP configuration document lazily so the home dir
// is only created when a config command actually runs.
func erpConfigFile() *config.File {
	return config.NewFile(config.MustGetHomeDir(), constants.ErpConfigFileName)
}

// ADD

var erpAddErpType string
var erpAddClientId string
var erpAddS3Url string
var erpAddCfg = config.ERPConfiguration{}

var configErpAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace the configuration for an (erp-type, client-id) pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if _, err := erp.Resolve(erpAddErpType); err != nil {
			return err
		}
		if erpAddS3Url != "" { // if the bucket was supplied as a DSN...
			bucket, err := s3.ParseDSN(erpAddS3Url, erpAddCfg.BucketRegion)
			if err != nil {
				return err
			}
			erpAddCfg.BucketName = bucket.Name
			erpAddCfg.BucketPrefix = bucket.Prefix
		}
		erpAddCfg.ApplyDefaults()
		if err := erpAddCfg.Validate(); err != nil {
			return err
		}
		f := erpConfigFile()
		key := config.ErpConfigKey(erpAddErpType, erpAddClientId)
		if err := f.Set(key, erpAddCfg); err != nil {
			return err
		}
		fmt.Printf("configuration saved for %v in %v\n", key, f.FullPath)
		return nil
	},
}

func initErpAdd() {
	configErpCmd.AddCommand(configErpAddCmd)
	configErpAddCmd.Flags().SortFlags = false
	switches.addFlag(configErpAddCmd, &erpAddErpType, "erp-type", "", true, "")
	switches.addFlag(configErpAddCmd, &erpAddClientId, "client-id", "", true, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.AccessType, "access-type", "", true, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BaseUrl, "base-url", "", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.ConnectionString, "connection-string", "", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.Schema, "schema", "", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BucketName, "bucket-name", "", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BucketRegion, "bucket-region", "", true, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BucketPrefix, "bucket-prefix", "", false, "")
	switches.addFlag(configErpAddCmd, &erpAddS3Url, "s3-url", "", false, " (alternative to bucket-name/bucket-prefix)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.PageSize, "page-size", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BatchSize, "batch-size", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.TimeoutSeconds, "timeout-seconds", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.MaxRetries, "max-retries", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.CircuitBreakerThreshold, "breaker-threshold", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BreakSeconds, "break-seconds", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BulkheadLimit, "bulkhead-limit", "0", false, " (0 for the built-in default)")
	switches.addFlag(configErpAddCmd, &erpAddCfg.BulkheadFailFast, "bulkhead-fail-fast", "false", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.RateLimitPerSecond, "rate-limit", "0", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.SupportsCDC, "cdc", "false", false, "")
	switches.addFlag(configErpAddCmd, &erpAddCfg.WatermarkColumn, "watermark-column", "", false, "")
}

// LIST

var configErpListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all ERP configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := erpConfigFile()
		keys, err := f.GetAllKeys()
		if err != nil {
			return err
		}
		sort.Strings(keys)
		for _, k := range keys { // for each (erp-type, client-id) pair...
			cfg := config.ERPConfiguration{}
			if err := f.Get(k, &cfg); err != nil {
				return err
			}
			fmt.Printf("%v:\n  access: %v\n", k, cfg.AccessType)
			if cfg.AccessType == constants.AccessTypeApi {
				fmt.Printf("  baseUrl: %v\n", cfg.BaseUrl)
			} else {
				fmt.Printf("  schema: %v\n", cfg.Schema)
			}
			fmt.Printf("  bucket: s3://%v/%v (%v)\n", cfg.BucketName, cfg.BucketPrefix, cfg.BucketRegion)
			if cfg.SupportsCDC {
				fmt.Printf("  cdc: watermark column %q\n", cfg.WatermarkColumn)
			}
		}
		return nil
	},
}

func initErpList() {
	configErpCmd.AddCommand(configErpListCmd)
}

// REMOVE

var erpRemoveErpType string
var erpRemoveClientId string

var configErpRemoveCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"rm", "del", "delete"},
	Short:   "Remove the configuration for an (erp-type, client-id) pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		f := erpConfigFile()
		key := config.ErpConfigKey(erpRemoveErpType, erpRemoveClientId)
		if err := f.Delete(key); err != nil {
			return err
		}
		fmt.Printf("configuration removed for %v\n", key)
		return nil
	},
}

func initErpRemove() {
	configErpCmd.AddCommand(configErpRemoveCmd)
	switches.addFlag(configErpRemoveCmd, &erpRemoveErpType, "erp-type", "", true, "")
	switches.addFlag(configErpRemoveCmd, &erpRemoveClientId, "client-id", "", true, "")
}
