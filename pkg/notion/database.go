package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/model"
)

// maxPageSize is the largest page the Notion query endpoint returns.
const maxPageSize = 100

// QueryPages pages through dbID with req's filter and sorts until the
// database is exhausted or want pages are collected (want <= 0 reads
// everything). The next page is fetched while the current one is appended.
func QueryPages(ctx context.Context, c Client, dbID string, req *notionapi.DatabaseQueryRequest, want int) ([]notionapi.Page, error) {
	base := notionapi.DatabaseQueryRequest{PageSize: maxPageSize}
	if req != nil {
		base.Filter = req.Filter
		base.Sorts = req.Sorts
		if req.PageSize > 0 {
			base.PageSize = req.PageSize
		}
	}
	if want > 0 && want < base.PageSize {
		base.PageSize = want
	}

	type fetched struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	fetch := func(cursor notionapi.Cursor) <-chan fetched {
		next := base
		next.StartCursor = cursor
		ch := make(chan fetched, 1)
		go func() {
			resp, err := c.QueryDatabase(ctx, dbID, &next)
			ch <- fetched{resp: resp, err: err}
		}()
		return ch
	}

	var pages []notionapi.Page
	var pending <-chan fetched
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query pages")
		}
		if pending == nil {
			pending = fetch("")
		}
		got := <-pending
		if got.err != nil {
			return nil, eris.Wrap(got.err, "notion: query page")
		}

		more := got.resp.HasMore && got.resp.NextCursor != ""
		if want > 0 && len(pages)+len(got.resp.Results) >= want {
			more = false
		}
		if more {
			pending = fetch(got.resp.NextCursor)
		}

		pages = append(pages, got.resp.Results...)
		if !more {
			if want > 0 && len(pages) > want {
				pages = pages[:want]
			}
			return pages, nil
		}
	}
}

// queuedFilter selects lead pages waiting for a line, oldest first.
func queuedFilter() *notionapi.DatabaseQueryRequest {
	return &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: StatusQueued},
		},
		Sorts: []notionapi.SortObject{
			{Timestamp: notionapi.TimestampCreated, Direction: notionapi.SortOrderASC},
		},
	}
}

// QueuedLeads returns up to limit queued leads from the lead database, oldest
// first. Pages without a company name are skipped and do not count toward
// limit. limit <= 0 returns the whole queue.
func QueuedLeads(ctx context.Context, c Client, dbID string, limit int) ([]model.Lead, error) {
	pages, err := QueryPages(ctx, c, dbID, queuedFilter(), 0)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query queued leads")
	}

	leads := make([]model.Lead, 0, len(pages))
	for _, p := range pages {
		l := LeadFromPage(p)
		if l.CompanyName == "" {
			zap.L().Warn("notion: skipping lead page without a name", zap.String("page_id", l.NotionPageID))
			continue
		}
		leads = append(leads, l)
		if limit > 0 && len(leads) == limit {
			break
		}
	}
	return leads, nil
}
