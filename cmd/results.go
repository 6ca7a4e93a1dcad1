package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results <campaign-id>",
	Short: "Show the enriched leads of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		results, err := e.Orch.Results(ctx, args[0])
		if err != nil {
			return err
		}
		if results == nil {
			return eris.Errorf("campaign %s has no results", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}
