package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/lineage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect lineage records of past extraction runs",
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsGetCmd)
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one line per recorded run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := lineage.NewFileStore(config.LineageDir())
		if err != nil {
			return err
		}
		ids, err := store.List()
		if err != nil {
			return err
		}
		sort.Strings(ids)
		for _, id := range ids { // for each lineage record...
			record, err := store.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("%v  %v  %v/%v/%v  %v\n", record.Id, record.StartedAt.Format("2006-01-02T15:04:05Z"),
				record.ErpType, record.ClientId, record.DataType, record.Status)
		}
		return nil
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <lineage-id>",
	Short: "Print the full lineage record for one run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		store, err := lineage.NewFileStore(config.LineageDir())
		if err != nil {
			return err
		}
		record, err := store.Get(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
