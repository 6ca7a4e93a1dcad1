package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/orchestrator"
)

var (
	runCampaignFile string
	runDemo         bool
)

// campaignFile is the on-disk YAML shape of a campaign request. The lead
// file is referenced by path and loaded before processing.
type campaignFile struct {
	orchestrator.CampaignInput `yaml:",inline"`

	LeadFile string `yaml:"lead_file"`
}

func loadCampaignFile(path string) (orchestrator.CampaignInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.CampaignInput{}, eris.Wrap(err, "read campaign file")
	}

	var cf campaignFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return orchestrator.CampaignInput{}, eris.Wrap(err, "parse campaign file")
	}

	if cf.LeadFile != "" {
		leadPath := cf.LeadFile
		if !filepath.IsAbs(leadPath) {
			leadPath = filepath.Join(filepath.Dir(path), leadPath)
		}
		data, err := os.ReadFile(leadPath)
		if err != nil {
			return orchestrator.CampaignInput{}, eris.Wrap(err, "read lead file")
		}
		cf.Data = data
	}

	if cf.RunID == "" {
		cf.RunID = uuid.NewString()
	}

	return cf.CampaignInput, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a campaign from a YAML definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		input, err := loadCampaignFile(runCampaignFile)
		if err != nil {
			return err
		}
		if runDemo {
			input.Demo = true
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		zap.L().Info("processing campaign",
			zap.String("run_id", input.RunID),
			zap.String("campaign_id", input.CampaignID),
			zap.Bool("demo", input.Demo),
		)

		if err := e.Orch.ProcessCampaign(ctx, input); err != nil {
			return err
		}

		run, err := e.Orch.Status(ctx, input.RunID)
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %s (%d leads, %d succeeded, %d failed)\n",
			run.ID, run.Status, run.LeadCount, run.SuccessCount, run.ErrorCount)

		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCampaignFile, "campaign", "", "path to campaign YAML file")
	runCmd.Flags().BoolVar(&runDemo, "demo", false, "process only the first leads of the file")
	runCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(runCmd)
}
