package schedule

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/teranos/promanage/item"
)

// Store is the persistence a run needs.
//
// LoadAll returns every item ordered by id; that order is the tie-break among
// equal values. SaveAll writes every item's status and appends run to the run
// history as one all-or-nothing batch.
type Store interface {
	LoadAll(ctx context.Context) ([]item.WorkItem, error)
	SaveAll(ctx context.Context, items []item.WorkItem, run Run) error
}

// Catalog is a Store that can also create items and list past runs.
// The API and CLI surfaces work against it.
type Catalog interface {
	Store
	Add(ctx context.Context, w item.WorkItem) (item.WorkItem, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run summarizes one persisted scheduling run
type Run struct {
	ID             string          `json:"id"`
	StartedAt      time.Time       `json:"startedAt"`
	Capacity       int             `json:"capacity"`
	TrendHigh      bool            `json:"trendHigh"`
	RecentMean     decimal.Decimal `json:"recentMean"`
	Threshold      decimal.Decimal `json:"threshold"`
	ScheduledCount int             `json:"scheduledCount"`
	RejectedCount  int             `json:"rejectedCount"`
	TotalValue     decimal.Decimal `json:"totalValue"`
}
