package plaid

import (
	"context"
	"time"
)

// EntryFetcher fetches bank entries from an external aggregator.
type EntryFetcher interface {
	GetEntries(ctx context.Context, startDate, endDate time.Time) ([]Entry, error)
	GetAccounts(ctx context.Context) ([]string, error)
}

var _ EntryFetcher = (*Client)(nil)
