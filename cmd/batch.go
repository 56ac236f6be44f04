package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/openers/internal/config"
	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/pkg/notion"
	sfpkg "github.com/sells-group/openers/pkg/salesforce"
)

const (
	sourceNotion     = "notion"
	sourceSalesforce = "salesforce"
)

var (
	batchLimit    int
	batchSource   string
	batchRetryDLQ bool
	batchAI       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Personalize queued leads from Notion or Salesforce and write the lines back",
	Long: `Pulls leads from the Notion lead database (Status = Queued) or from
Salesforce Accounts whose opening line field is empty, personalizes them
concurrently and writes each line back. Failed writebacks are parked in the
dead letter queue; --retry-dlq redelivers them.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		mode := config.ModeBatch
		if batchSource == sourceSalesforce || batchRetryDLQ {
			mode = config.ModeRun
		}
		env, err := initPipeline(ctx, mode, batchAI)
		if err != nil {
			return err
		}
		defer env.Close()

		if batchRetryDLQ {
			n, err := retryDLQ(ctx, env, batchLimit)
			if err != nil {
				return err
			}
			zap.L().Info("dlq retry complete", zap.Int("delivered", n))
			return nil
		}

		leads, err := loadBatchLeads(ctx, env, batchSource, batchLimit)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			zap.L().Info("no leads to process", zap.String("source", batchSource))
			return nil
		}

		start := time.Now()
		run, err := env.Store.CreateRun(ctx, batchSource)
		if err != nil {
			return eris.Wrap(err, "batch: create run")
		}

		out, err := processBatch(ctx, env, leads, batchOptions{
			RunID:          run.ID,
			Concurrency:    cfg.Batch.Concurrency,
			Writeback:      true,
			BulkSalesforce: batchSource == sourceSalesforce,
		})
		status := model.RunStatusComplete
		if err != nil {
			status = model.RunStatusFailed
		}
		if cerr := env.Store.CompleteRun(ctx, run.ID, out.Summary, status); cerr != nil {
			zap.L().Error("batch: complete run", zap.String("run_id", run.ID), zap.Error(cerr))
		}
		if err != nil {
			return eris.Wrap(err, "batch processing")
		}

		logSummary(run.ID, out.Summary, time.Since(start))
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max leads to process")
	batchCmd.Flags().StringVar(&batchSource, "source", sourceNotion, "lead source: notion or salesforce")
	batchCmd.Flags().BoolVar(&batchRetryDLQ, "retry-dlq", false, "redeliver parked writebacks instead of pulling new leads")
	batchCmd.Flags().BoolVar(&batchAI, "ai", false, "author lines with the model instead of templates")
	rootCmd.AddCommand(batchCmd)
}

// loadBatchLeads pulls up to limit leads from source.
func loadBatchLeads(ctx context.Context, env *pipelineEnv, source string, limit int) ([]model.Lead, error) {
	var leads []model.Lead
	switch source {
	case sourceNotion:
		if env.Notion == nil {
			return nil, eris.New("batch: notion is not configured")
		}
		queued, err := notion.QueuedLeads(ctx, env.Notion, cfg.Notion.LeadDB, limit)
		if err != nil {
			return nil, eris.Wrap(err, "batch: query queued leads")
		}
		leads = queued
	case sourceSalesforce:
		if env.Salesforce == nil {
			return nil, eris.New("batch: salesforce is not configured")
		}
		if err := sfpkg.VerifyOpenerFields(ctx, env.Salesforce, openerFields()); err != nil {
			return nil, err
		}
		accounts, err := sfpkg.PendingAccounts(ctx, env.Salesforce, cfg.Salesforce.LineField, limit)
		if err != nil {
			return nil, eris.Wrap(err, "batch: query pending accounts")
		}
		for _, a := range accounts {
			leads = append(leads, sfpkg.AccountToLead(a))
		}
	default:
		return nil, eris.Errorf("batch: unknown source %q", source)
	}

	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	zap.L().Info("leads loaded", zap.String("source", source), zap.Int("count", len(leads)))
	return leads, nil
}

type batchOptions struct {
	RunID       string
	Concurrency int
	// Writeback delivers results to Notion and Salesforce.
	Writeback bool
	// BulkSalesforce defers Salesforce writes to one Collections API pass.
	BulkSalesforce bool
}

type batchOutcome struct {
	Summary model.RunSummary
	// Results holds successful results in input order.
	Results []model.Result
}

// processBatch personalizes leads with bounded concurrency. A failed lead is
// counted and never aborts the batch; only context cancellation does.
func processBatch(ctx context.Context, env *pipelineEnv, leads []model.Lead, opts batchOptions) (batchOutcome, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var summary model.RunSummary
	results := make([]*model.Result, len(leads))
	sfPending := make(map[string]model.Result)
	sfLeads := make(map[string]model.Lead)

	for i, lead := range leads {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			log := zap.L().With(zap.String("company", lead.CompanyName))

			res, err := env.Personalizer.Personalize(gCtx, lead)
			if err != nil {
				mu.Lock()
				summary.AddError()
				mu.Unlock()
				log.Error("batch: lead failed", zap.Error(err))
				if opts.Writeback && env.Notion != nil && lead.NotionPageID != "" {
					if nerr := notion.MarkFailed(gCtx, env.Notion, lead.NotionPageID, err); nerr != nil {
						log.Warn("batch: mark notion failed", zap.Error(nerr))
					}
				}
				return nil
			}

			res.RunID = opts.RunID
			if err := env.Store.SaveResult(gCtx, &res); err != nil {
				log.Warn("batch: save result failed", zap.Error(err))
			}

			if opts.Writeback {
				if err := writeNotion(gCtx, env, lead, res); err != nil {
					enqueueDLQ(gCtx, env, lead, &res, phaseNotion, err)
				}
				switch {
				case opts.BulkSalesforce && env.Salesforce != nil && lead.SalesforceID != "":
					mu.Lock()
					sfPending[lead.SalesforceID] = res
					sfLeads[lead.SalesforceID] = lead
					mu.Unlock()
				default:
					if err := writeSalesforce(gCtx, env, lead, res); err != nil {
						enqueueDLQ(gCtx, env, lead, &res, phaseSalesforce, err)
					}
				}
			}

			mu.Lock()
			summary.Add(res)
			results[i] = &res
			mu.Unlock()

			log.Info("batch: lead complete",
				zap.String("tier", string(res.ConfidenceTier)),
				zap.String("artifact_type", string(res.ArtifactType)),
				zap.Int("attempts", res.Attempts),
			)
			return nil
		})
	}

	err := g.Wait()

	if len(sfPending) > 0 {
		flushSalesforce(ctx, env, sfPending, sfLeads)
	}

	out := batchOutcome{Summary: summary}
	for _, r := range results {
		if r != nil {
			out.Results = append(out.Results, *r)
		}
	}
	return out, err
}

// flushSalesforce bulk-writes pending results and parks failed records.
func flushSalesforce(ctx context.Context, env *pipelineEnv, pending map[string]model.Result, leads map[string]model.Lead) {
	results, err := sfpkg.BulkUpdateOpeners(ctx, env.Salesforce, openerFields(), pending)

	done := make(map[string]bool, len(results))
	for _, r := range results {
		done[r.ID] = true
		if r.Success {
			continue
		}
		res := pending[r.ID]
		enqueueDLQ(ctx, env, leads[r.ID], &res, phaseSalesforce, eris.Errorf("sf: update %s: %v", r.ID, r.Errors))
	}
	if err == nil {
		return
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		if !done[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		res := pending[id]
		enqueueDLQ(ctx, env, leads[id], &res, phaseSalesforce, err)
	}
}

func logSummary(runID string, s model.RunSummary, elapsed time.Duration) {
	zap.L().Info("batch complete",
		zap.String("run_id", runID),
		zap.Int("total", s.Total),
		zap.Int("tier_s", s.TierS),
		zap.Int("tier_a", s.TierA),
		zap.Int("tier_b", s.TierB),
		zap.Int("fallback", s.Fallback),
		zap.Int("errors", s.Errors),
		zap.Duration("elapsed", elapsed),
	)
}
