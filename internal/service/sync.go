// Package service contains the deduplicating sync engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"g2b_monitor/internal/domain"
	"g2b_monitor/internal/metrics"
)

// Config tunes one engine instance. Zero delays mean no waiting, which is
// what tests use; production values come from the sync section of the
// application config.
type Config struct {
	TargetAgencyCodes []string
	PageSize          int
	BackfillPageSize  int
	NotifyDelay       time.Duration
	PageDelay         time.Duration
	DayDelay          time.Duration
}

// Engine orchestrates fetch, filter, dedup, persist and notify for both bid
// categories. Categories fail independently: an error in one never stops the
// other.
type Engine struct {
	source    Source
	store     BidStore
	notifier  Notifier
	publisher Publisher
	logger    *slog.Logger
	cfg       Config
	targets   map[string]struct{}
}

var categories = []domain.Category{domain.CategoryGoods, domain.CategoryService}

// NewEngine creates a sync engine. The publisher may be nil.
func NewEngine(
	source Source,
	store BidStore,
	notifier Notifier,
	publisher Publisher,
	logger *slog.Logger,
	cfg Config,
) *Engine {
	if cfg.PageSize == 0 {
		cfg.PageSize = 500
	}
	if cfg.BackfillPageSize == 0 {
		cfg.BackfillPageSize = 100
	}

	targets := make(map[string]struct{}, len(cfg.TargetAgencyCodes))
	for _, code := range cfg.TargetAgencyCodes {
		targets[code] = struct{}{}
	}

	return &Engine{
		source:    source,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		cfg:       cfg,
		targets:   targets,
	}
}

// Sync runs one full cycle over both categories with the default fetch
// window, notifying on every newly persisted bid. A category failure is
// logged and reflected in the result error string; the run only counts as
// failed when no category completed.
func (e *Engine) Sync(ctx context.Context) *domain.SyncResult {
	startTime := time.Now()
	e.logger.Info("starting sync", "page_size", e.cfg.PageSize, "targets", len(e.targets))

	result := &domain.SyncResult{Success: true}
	var failed int
	var lastErr error

	for _, category := range categories {
		stats, err := e.syncCategory(ctx, category)
		result.Apply(stats)

		if err != nil {
			failed++
			lastErr = err
			e.logger.Error("category sync failed", "category", category, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		e.logger.Info("category synced",
			"category", category,
			"fetched", stats.Fetched,
			"matched", stats.Matched,
			"saved", stats.Saved,
			"errors", stats.Errors,
		)
	}

	if failed == len(categories) || ctx.Err() != nil {
		result.Success = false
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	metrics.RecordSyncRun(result.Success, time.Since(startTime))
	e.logger.Info("sync completed",
		"success", result.Success,
		"total_new", result.TotalNew,
		"duration", time.Since(startTime),
	)

	return result
}

func (e *Engine) syncCategory(ctx context.Context, category domain.Category) (domain.SyncStats, error) {
	startTime := time.Now()
	stats := domain.SyncStats{Category: category}

	bids, _, err := e.source.FetchPage(ctx, category, domain.Window{}, 1, e.cfg.PageSize)
	if err != nil {
		return stats, fmt.Errorf("fetch %s: %w", category, err)
	}

	stats.Fetched = len(bids)
	metrics.RecordFetched(string(category), len(bids))

	matched := e.filterTargets(bids)
	stats.Matched = len(matched)

	for i := range matched {
		bid := &matched[i]

		inserted, err := e.saveBid(ctx, bid)
		if err != nil {
			stats.Errors++
			e.logger.Error("persist failed, skipping record", "bid_no", bid.BidNo, "error", err)
			continue
		}
		if !inserted {
			continue
		}

		stats.Saved++
		metrics.RecordSaved(string(category), 1)
		e.logger.Info("new bid", "bid_no", bid.BidNo, "title", bid.Title, "agency", bid.Agency)

		e.notify(ctx, bid)
		e.publish(ctx, bid)

		if err := sleepCtx(ctx, e.cfg.NotifyDelay); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// Backfill iterates whole calendar days backward from today, persisting every
// matching bid it finds. It never notifies. Returns the number of newly saved
// records.
func (e *Engine) Backfill(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 30
	}

	e.logger.Info("starting backfill", "days", days)
	now := time.Now()
	var totalSaved int

	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, -i)

		for _, category := range categories {
			saved, err := e.backfillDay(ctx, category, day)
			totalSaved += saved
			if err != nil {
				if ctx.Err() != nil {
					return totalSaved, err
				}
				e.logger.Error("backfill day failed",
					"day", day.Format("2006-01-02"),
					"category", category,
					"error", err,
				)
			}
		}

		if err := sleepCtx(ctx, e.cfg.DayDelay); err != nil {
			return totalSaved, err
		}
	}

	e.logger.Info("backfill completed", "days", days, "saved", totalSaved)
	return totalSaved, nil
}

func (e *Engine) backfillDay(ctx context.Context, category domain.Category, day time.Time) (int, error) {
	win := domain.DayWindow(day)
	rows := e.cfg.BackfillPageSize
	page := 1
	var saved int

	for {
		bids, totalCount, err := e.source.FetchPage(ctx, category, win, page, rows)
		if err != nil {
			return saved, fmt.Errorf("fetch %s page %d: %w", category, page, err)
		}

		metrics.RecordFetched(string(category), len(bids))
		matched := e.filterTargets(bids)

		for i := range matched {
			inserted, err := e.saveBid(ctx, &matched[i])
			if err != nil {
				e.logger.Error("persist failed, skipping record", "bid_no", matched[i].BidNo, "error", err)
				continue
			}
			if inserted {
				saved++
				metrics.RecordSaved(string(category), 1)
			}
		}

		if len(matched) > 0 {
			e.logger.Info("backfill page processed",
				"day", day.Format("2006-01-02"),
				"category", category,
				"page", page,
				"matched", len(matched),
				"saved", saved,
			)
		}

		// An empty window or an empty page ends pagination; neither is an error.
		totalPages := (totalCount + rows - 1) / rows
		if page >= totalPages || totalCount == 0 || len(bids) == 0 {
			return saved, nil
		}
		page++

		if err := sleepCtx(ctx, e.cfg.PageDelay); err != nil {
			return saved, err
		}
	}
}

func (e *Engine) filterTargets(bids []domain.Bid) []domain.Bid {
	var matched []domain.Bid
	for _, bid := range bids {
		if _, ok := e.targets[bid.AgencyCode]; ok {
			matched = append(matched, bid)
		}
	}
	return matched
}

// saveBid reports whether the bid was newly written. A duplicate key, raced
// or not, is "not new", never an error.
func (e *Engine) saveBid(ctx context.Context, bid *domain.Bid) (bool, error) {
	inserted, err := e.store.InsertIgnore(ctx, bid)
	if errors.Is(err, domain.ErrBidExists) {
		return false, nil
	}
	return inserted, err
}

// notify is best effort: a failed send leaves the bid persisted but
// unflagged, and the run continues.
func (e *Engine) notify(ctx context.Context, bid *domain.Bid) {
	err := e.notifier.Send(ctx, bid)
	metrics.RecordNotification(err)
	if err != nil {
		e.logger.Warn("notification failed", "bid_no", bid.BidNo, "error", err)
		return
	}

	if err := e.store.MarkNotified(ctx, bid.Source, []string{bid.BidNo}); err != nil {
		e.logger.Warn("mark notified failed", "bid_no", bid.BidNo, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, bid *domain.Bid) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, bid); err != nil {
		e.logger.Warn("publish failed", "bid_no", bid.BidNo, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
