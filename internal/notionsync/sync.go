// Package notionsync mirrors the ledger into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/logger"
	"github.com/jomei/notionapi"
)

// SyncResult counts what a sync did, or would do in dry-run mode.
type SyncResult struct {
	Created   int
	Updated   int
	Unchanged int
	Archived  int
	Failed    int
}

// SyncRecords makes the Notion database match records:
//  1. pages without a Record ID or whose record no longer exists are archived
//  2. pages whose checksum differs from the record are updated
//  3. records without a page get one
//
// Individual page failures are logged and counted; only a failed database
// query aborts the sync.
func SyncRecords(ctx context.Context, notionClient NotionService, notionDBID string, records []ledger.Record, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult

	log.Info().
		Int("record_count", len(records)).
		Bool("dry_run", dryRun).
		Msg("Starting record sync to Notion")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncRecords: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(records))
	for _, r := range records {
		valid[r.ID] = true
	}

	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		id := extractRecordID(page)
		if id != "" && valid[id] {
			if _, dup := existing[id]; !dup {
				existing[id] = page
				continue
			}
		}

		// stale, untracked, or a duplicate of an already mirrored record
		if dryRun {
			log.Info().Str("record_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("record_id", id).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, r := range records {
		page, ok := existing[r.ID]
		switch {
		case ok && extractChecksum(page) == Checksum(r):
			res.Unchanged++

		case ok:
			if dryRun {
				log.Info().Str("record_id", r.ID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
				continue
			}
			if _, err := notionClient.UpdatePage(ctx, string(page.ID), RecordToNotionProperties(r)); err != nil {
				log.Warn().Err(err).Str("record_id", r.ID).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++

		default:
			if dryRun {
				log.Info().Str("record_id", r.ID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
				continue
			}
			created, err := notionClient.CreatePage(ctx, notionDBID, RecordToNotionProperties(r))
			if err != nil {
				log.Warn().Err(err).Str("record_id", r.ID).Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			log.Debug().Str("record_id", r.ID).Str("page_id", string(created.ID)).Msg("Created Notion page")
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Bool("dry_run", dryRun).
		Msg("Record sync to Notion complete")

	return res, nil
}

// queryAllNotionPages follows the query cursor until every page is read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: maxPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
