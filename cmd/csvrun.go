package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/config"
	"github.com/sells-group/openers/internal/leads"
	"github.com/sells-group/openers/internal/model"
)

var (
	csvrunFile        string
	csvrunLimit       int
	csvrunConcurrency int
	csvrunDryRun      bool
	csvrunOffline     bool
	csvrunAI          bool
	csvrunOutput      string
	csvrunFormat      string
)

var csvrunCmd = &cobra.Command{
	Use:   "csvrun",
	Short: "Personalize every lead in a CSV or XLSX export",
	Long: `Reads a lead export (Grata-style CSV or XLSX) and writes one opening line
per lead. Results are stored and exported; nothing is written back to Notion or
Salesforce.

Examples:
  # Dry run: parse the file only
  openers csvrun --csv leads.csv --dry-run

  # Offline: template path from file fields only, no network
  openers csvrun --csv leads.csv --offline --limit 5

  # Full run with scraping and research, exported to a spreadsheet
  openers csvrun --csv leads.csv --output openers.xlsx --format xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := leads.ParseFormat(csvrunFormat)
		if err != nil {
			return err
		}

		list, err := leads.ReadFile(csvrunFile)
		if err != nil {
			return eris.Wrap(err, "csvrun: read leads")
		}
		zap.L().Info("parsed leads", zap.Int("leads", len(list)))

		if csvrunLimit > 0 && csvrunLimit < len(list) {
			list = list[:csvrunLimit]
		}

		if csvrunDryRun {
			return printLeadsJSON(os.Stdout, list)
		}

		var env *pipelineEnv
		if csvrunOffline {
			env, err = initOfflinePipeline(ctx)
		} else {
			env, err = initPipeline(ctx, config.ModeRun, csvrunAI)
		}
		if err != nil {
			return eris.Wrap(err, "csvrun: init pipeline")
		}
		defer env.Close()

		// File runs never write back.
		env.Notion, env.Salesforce = nil, nil

		concurrency := csvrunConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		start := time.Now()
		run, err := env.Store.CreateRun(ctx, "csv:"+filepath.Base(csvrunFile))
		if err != nil {
			return eris.Wrap(err, "csvrun: create run")
		}
		out, err := processBatch(ctx, env, list, batchOptions{RunID: run.ID, Concurrency: concurrency})
		status := model.RunStatusComplete
		if err != nil {
			status = model.RunStatusFailed
		}
		if cerr := env.Store.CompleteRun(ctx, run.ID, out.Summary, status); cerr != nil {
			zap.L().Error("csvrun: complete run", zap.String("run_id", run.ID), zap.Error(cerr))
		}
		if err != nil {
			return eris.Wrap(err, "csvrun: process")
		}
		logSummary(run.ID, out.Summary, time.Since(start))

		if csvrunOutput == "" {
			return leads.Export(os.Stdout, format, out.Results)
		}
		if err := leads.ExportFile(csvrunOutput, format, out.Results); err != nil {
			return err
		}
		zap.L().Info("csvrun: results written", zap.String("path", csvrunOutput), zap.String("format", string(format)))
		return nil
	},
}

func init() {
	csvrunCmd.Flags().StringVar(&csvrunFile, "csv", "", "path to the lead CSV or XLSX file (required)")
	csvrunCmd.Flags().IntVar(&csvrunLimit, "limit", 0, "max leads to process (0 = all)")
	csvrunCmd.Flags().IntVar(&csvrunConcurrency, "concurrency", 0, "max leads processed concurrently (default from config)")
	csvrunCmd.Flags().BoolVar(&csvrunDryRun, "dry-run", false, "parse the file and print leads, skip personalization")
	csvrunCmd.Flags().BoolVar(&csvrunOffline, "offline", false, "template path only, no network collaborators")
	csvrunCmd.Flags().BoolVar(&csvrunAI, "ai", false, "author lines with the model instead of templates")
	csvrunCmd.Flags().StringVar(&csvrunOutput, "output", "", "write results to file (default: stdout)")
	csvrunCmd.Flags().StringVar(&csvrunFormat, "format", "json", "output format: json, csv or xlsx")
	_ = csvrunCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(csvrunCmd)
}

// printLeadsJSON prints parsed leads as indented JSON.
func printLeadsJSON(w io.Writer, list []model.Lead) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return eris.Wrap(err, "csvrun: encode leads")
	}
	return nil
}
