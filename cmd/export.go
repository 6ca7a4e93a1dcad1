package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

var (
	exportOut               string
	exportInstantlyCampaign string
)

var exportCmd = &cobra.Command{
	Use:   "export <campaign-id>",
	Short: "Export campaign results as CSV or push them to Instantly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		campaignID := args[0]

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if exportInstantlyCampaign != "" {
			return pushToInstantly(cmd, e, campaignID)
		}

		csvText, err := e.Orch.ExportCSV(ctx, campaignID)
		if err != nil {
			return err
		}

		if exportOut == "" {
			fmt.Print(csvText)
			return nil
		}
		if err := os.WriteFile(exportOut, []byte(csvText), 0o644); err != nil {
			return eris.Wrap(err, "write export file")
		}
		fmt.Printf("wrote %s\n", exportOut)
		return nil
	},
}

// pushToInstantly uploads the campaign's successfully enriched leads to an
// Instantly campaign. Failed leads are skipped.
func pushToInstantly(cmd *cobra.Command, e *env, campaignID string) error {
	ctx := cmd.Context()

	results, err := e.Orch.Results(ctx, campaignID)
	if err != nil {
		return err
	}
	if results == nil || results.Successful == 0 {
		return eris.Errorf("campaign %s has no successful leads to push", campaignID)
	}

	client := instantly.New(cfg.Instantly.Key, instantly.WithBaseURL(cfg.Instantly.BaseURL))

	leads := make([]instantly.Lead, 0, results.Successful)
	for _, l := range results.Leads {
		if l.Status != model.EnrichmentEnriched || l.PersonalizedMessage == "" {
			continue
		}
		leads = append(leads, instantly.Lead{
			Campaign:        exportInstantlyCampaign,
			Email:           l.Email,
			FirstName:       l.FirstName,
			LastName:        l.LastName,
			CompanyName:     l.Company,
			Personalization: l.PersonalizedMessage,
			CompanyWebsite:  l.CompanyURL,
			LinkedInURL:     l.LinkedInURL,
			JobTitle:        l.JobTitle,
			CompanyIndustry: l.CompanyIndustry,
			Headline:        l.Headline,
			CustomVariables: l.CustomVariables,
		})
	}

	result, err := client.AddLeads(ctx, leads)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		zap.L().Warn("some leads failed to push",
			zap.Int("failed", len(result.Failed)),
			zap.Strings("emails", result.Failed),
		)
	}

	fmt.Printf("pushed %d of %d leads to instantly campaign %s\n",
		result.Added, len(leads), exportInstantlyCampaign)
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write CSV to file instead of stdout")
	exportCmd.Flags().StringVar(&exportInstantlyCampaign, "instantly-campaign", "", "push leads to this Instantly campaign id")
	rootCmd.AddCommand(exportCmd)
}
