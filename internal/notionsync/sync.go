package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/jomei/notionapi"
)

// SyncResult counts what a sync did, or would do on a dry run.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncBalances mirrors balances into the Notion database notionDBID, one page
// per account keyed by the "Account ID" title. This function:
// 1. Queries all existing pages of the database
// 2. Archives pages whose account is gone (or that carry no Account ID)
// 3. Updates pages of known accounts and creates the missing ones
//
// A failure on one page is logged and counted; the sync carries on with the
// rest. Only failing to read the database aborts it.
func SyncBalances(ctx context.Context, balances []ledger.AccountBalance, notionClient NotionService, notionDBID string, dryRun bool) (SyncResult, error) {
	return syncBalances(ctx, balances, notionClient, notionDBID, dryRun, time.Now())
}

func syncBalances(ctx context.Context, balances []ledger.AccountBalance, notionClient NotionService, notionDBID string, dryRun bool, now time.Time) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult

	log.Info().
		Bool("dry_run", dryRun).
		Int("account_count", len(balances)).
		Msg("Starting balances sync to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncBalances: querying Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(balances))
	for _, b := range balances {
		valid[b.Account.ID] = true
	}

	// first page wins when an account was exported twice; the rest are archived
	pageByAccount := make(map[string]string)
	for _, page := range notionPages {
		accID := extractAccountID(page)
		if accID != "" && valid[accID] {
			if _, dup := pageByAccount[accID]; !dup {
				pageByAccount[accID] = string(page.ID)
				continue
			}
		}

		if dryRun {
			log.Info().
				Str("account_id", accID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("account_id", accID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		log.Info().
			Str("account_id", accID).
			Str("page_id", string(page.ID)).
			Msg("Archived stale Notion page")
		res.Archived++
	}

	for _, b := range balances {
		accID := b.Account.ID
		pageID, exists := pageByAccount[accID]

		if dryRun {
			if exists {
				log.Info().Str("account_id", accID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("account_id", accID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := BalanceToNotionProperties(b, now)

		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("account_id", accID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("account_id", accID).
				Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Info().
			Str("account_id", accID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("archived", res.Archived).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Msg("Balances sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database with pagination.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
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
