package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/store"
)

var statusUserID string

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the status of a run, or list recent runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			run, err := e.Orch.Status(ctx, args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return eris.Errorf("run %s not found", args[0])
			}
			return enc.Encode(run)
		}

		runs, err := e.Store.ListRuns(ctx, store.RunFilter{UserID: statusUserID, Limit: 20})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs found")
			return nil
		}
		return enc.Encode(runs)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusUserID, "user", "", "filter runs by user id")
	rootCmd.AddCommand(statusCmd)
}
