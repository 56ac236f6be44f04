package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/resilience"
	"github.com/sells-group/openers/pkg/notion"
	sfpkg "github.com/sells-group/openers/pkg/salesforce"
)

// Writeback phases recorded on DLQ entries.
const (
	phaseNotion     = "notion_writeback"
	phaseSalesforce = "salesforce_writeback"
)

// writeNotion records r on the lead's Notion page, if it has one.
func writeNotion(ctx context.Context, env *pipelineEnv, lead model.Lead, r model.Result) error {
	if env.Notion == nil || lead.NotionPageID == "" {
		return nil
	}
	return env.guard(ctx, sourceNotion, func(ctx context.Context) error {
		return notion.WriteResult(ctx, env.Notion, lead.NotionPageID, r)
	})
}

// writeSalesforce records r on the lead's Account, if it has one.
func writeSalesforce(ctx context.Context, env *pipelineEnv, lead model.Lead, r model.Result) error {
	if env.Salesforce == nil || lead.SalesforceID == "" {
		return nil
	}
	return env.guard(ctx, sourceSalesforce, func(ctx context.Context) error {
		return sfpkg.UpdateOpener(ctx, env.Salesforce, lead.SalesforceID, openerFields(), r)
	})
}

// deliver writes r to every configured destination for lead. It returns the
// phase that failed.
func deliver(ctx context.Context, env *pipelineEnv, lead model.Lead, r model.Result) (string, error) {
	if err := writeNotion(ctx, env, lead, r); err != nil {
		return phaseNotion, err
	}
	if err := writeSalesforce(ctx, env, lead, r); err != nil {
		return phaseSalesforce, err
	}
	return "", nil
}

// enqueueDLQ parks a failed delivery for a later --retry-dlq pass. A nil
// result means personalization itself failed.
func enqueueDLQ(ctx context.Context, env *pipelineEnv, lead model.Lead, r *model.Result, phase string, cause error) {
	entry := resilience.NewDLQEntry(lead, r, phase, cause, time.Now().UTC())
	if entry.ErrorType == resilience.ErrorTransient && cfg.Batch.DLQMaxRetries > 0 {
		entry.MaxRetries = cfg.Batch.DLQMaxRetries
	}
	if err := env.Store.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Error("dlq: enqueue failed",
			zap.String("company", lead.CompanyName),
			zap.String("phase", phase),
			zap.Error(err),
		)
		return
	}
	zap.L().Warn("dlq: lead parked",
		zap.String("company", lead.CompanyName),
		zap.String("phase", phase),
		zap.String("error_type", entry.ErrorType),
		zap.Error(cause),
	)
}

// retryDLQ redelivers due DLQ entries. Entries without a result are
// personalized again first. Returns the number delivered.
func retryDLQ(ctx context.Context, env *pipelineEnv, limit int) (int, error) {
	entries, err := env.Store.DequeueDLQ(ctx, resilience.DLQFilter{Limit: limit})
	if err != nil {
		return 0, eris.Wrap(err, "batch: dequeue dlq")
	}

	delivered := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return delivered, eris.Wrap(ctx.Err(), "batch: retry dlq cancelled")
		}
		log := zap.L().With(zap.String("dlq_id", e.ID), zap.String("company", e.Lead.CompanyName))

		var r model.Result
		if e.Result != nil {
			r = *e.Result
		} else {
			r, err = env.Personalizer.Personalize(ctx, e.Lead)
			if err != nil {
				failDLQ(ctx, env, e, err)
				continue
			}
			if err := env.Store.SaveResult(ctx, &r); err != nil {
				log.Warn("dlq: save result failed", zap.Error(err))
			}
		}

		if _, err := deliver(ctx, env, e.Lead, r); err != nil {
			failDLQ(ctx, env, e, err)
			continue
		}
		if err := env.Store.RemoveDLQ(ctx, e.ID); err != nil {
			log.Warn("dlq: remove failed", zap.Error(err))
		}
		delivered++
		log.Info("dlq: delivered", zap.Int("retry_count", e.RetryCount))
	}
	return delivered, nil
}

func failDLQ(ctx context.Context, env *pipelineEnv, e resilience.DLQEntry, cause error) {
	next := resilience.NextRetryAt(e.RetryCount+1, time.Now().UTC())
	if err := env.Store.IncrementDLQRetry(ctx, e.ID, next, cause.Error()); err != nil {
		zap.L().Error("dlq: increment retry failed", zap.String("dlq_id", e.ID), zap.Error(err))
	}
}
