package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/config"
	"github.com/sells-group/openers/internal/model"
	sfpkg "github.com/sells-group/openers/pkg/salesforce"
)

var (
	runCompany     string
	runURL         string
	runDescription string
	runLocation    string
	runTech        []string
	runSFID        string
	runAI          bool
	runOffline     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Personalize a single lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var env *pipelineEnv
		var err error
		if runOffline {
			env, err = initOfflinePipeline(ctx)
		} else {
			env, err = initPipeline(ctx, config.ModeRun, runAI)
		}
		if err != nil {
			return err
		}
		defer env.Close()

		lead := runLead()
		if lead.SalesforceID != "" && env.Salesforce != nil {
			lead, err = fillFromAccount(ctx, env.Salesforce, lead)
			if err != nil {
				return err
			}
		}
		result, err := env.Personalizer.Personalize(ctx, lead)
		if err != nil {
			return eris.Wrap(err, "personalize")
		}

		if err := env.Store.SaveResult(ctx, &result); err != nil {
			zap.L().Warn("run: save result failed", zap.Error(err))
		}
		if _, err := deliver(ctx, env, lead, result); err != nil {
			return eris.Wrap(err, "run: writeback")
		}

		zap.L().Info("personalization complete",
			zap.String("company", lead.CompanyName),
			zap.String("tier", string(result.ConfidenceTier)),
			zap.String("artifact_type", string(result.ArtifactType)),
			zap.Int("attempts", result.Attempts),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func runLead() model.Lead {
	return model.Lead{
		CompanyName:  strings.TrimSpace(runCompany),
		SiteURL:      strings.TrimSpace(runURL),
		Description:  strings.TrimSpace(runDescription),
		Location:     strings.TrimSpace(runLocation),
		Technologies: runTech,
		SalesforceID: runSFID,
	}
}

// fillFromAccount fills the lead fields left blank on the command line from
// the Salesforce account the line will be written to.
func fillFromAccount(ctx context.Context, sf sfpkg.Client, lead model.Lead) (model.Lead, error) {
	acct, err := sfpkg.FindAccountByID(ctx, sf, lead.SalesforceID)
	if err != nil {
		return lead, eris.Wrap(err, "run: load salesforce account")
	}
	if acct == nil {
		return lead, eris.Errorf("run: salesforce account %s not found", lead.SalesforceID)
	}

	from := sfpkg.AccountToLead(*acct)
	if lead.SiteURL == "" {
		lead.SiteURL = from.SiteURL
	}
	if lead.Description == "" {
		lead.Description = from.Description
	}
	if lead.Location == "" {
		lead.Location = from.Location
	}
	if len(lead.Keywords) == 0 {
		lead.Keywords = from.Keywords
	}
	return lead, nil
}

func init() {
	runCmd.Flags().StringVar(&runCompany, "company", "", "company name (required)")
	runCmd.Flags().StringVar(&runURL, "url", "", "company website URL")
	runCmd.Flags().StringVar(&runDescription, "description", "", "company description")
	runCmd.Flags().StringVar(&runLocation, "location", "", "company location, e.g. \"Austin, TX\"")
	runCmd.Flags().StringSliceVar(&runTech, "tech", nil, "technologies the company uses")
	runCmd.Flags().StringVar(&runSFID, "sf-id", "", "Salesforce account ID to read blank fields from and write the line to")
	runCmd.Flags().BoolVar(&runAI, "ai", false, "author the line with the model instead of templates")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "template path only, no network collaborators")
	_ = runCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(runCmd)
}
