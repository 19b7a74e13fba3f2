package plaid

import (
	"context"
	"time"
)

// MockClient is a test double for EntryFetcher.
type MockClient struct {
	GetEntriesFn  func(ctx context.Context, startDate, endDate time.Time) ([]Entry, error)
	GetAccountsFn func(ctx context.Context) ([]string, error)

	GetEntriesCalls  []GetEntriesCall
	GetAccountsCalls int
}

// GetEntriesCall records the parameters of a GetEntries call.
type GetEntriesCall struct {
	StartDate time.Time
	EndDate   time.Time
}

// NewMockClient creates a new mock Plaid client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// GetEntries implements EntryFetcher.
func (m *MockClient) GetEntries(ctx context.Context, startDate, endDate time.Time) ([]Entry, error) {
	m.GetEntriesCalls = append(m.GetEntriesCalls, GetEntriesCall{StartDate: startDate, EndDate: endDate})
	if m.GetEntriesFn != nil {
		return m.GetEntriesFn(ctx, startDate, endDate)
	}
	return []Entry{}, nil
}

// GetAccounts implements EntryFetcher.
func (m *MockClient) GetAccounts(ctx context.Context) ([]string, error) {
	m.GetAccountsCalls++
	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx)
	}
	return []string{}, nil
}

var _ EntryFetcher = (*MockClient)(nil)
