package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"g2b_monitor/internal/domain"
)

// Source fetches one page of normalized bids for a category and window,
// together with the total count the upstream reports for that window.
type Source interface {
	FetchPage(ctx context.Context, category domain.Category, win domain.Window, page, rows int) ([]domain.Bid, int, error)
}

type BidStore interface {
	InsertIgnore(ctx context.Context, bid *domain.Bid) (bool, error)
	MarkNotified(ctx context.Context, source string, bidNos []string) error
}

// Notifier pushes a single-bid alert to the configured sink.
type Notifier interface {
	Send(ctx context.Context, bid *domain.Bid) error
}

// Publisher emits new-bid events for downstream consumers. Optional.
type Publisher interface {
	Publish(ctx context.Context, bid *domain.Bid) error
	Close() error
}
