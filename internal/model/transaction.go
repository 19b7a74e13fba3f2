package model

import (
	"time"
)

// Split is one categorized leg of a transaction. Amounts are integer minor
// currency units (cents). Exactly one of Inflow/Outflow is non-zero.
type Split struct {
	ID         string
	CategoryID string
	Memo       string
	Inflow     int64
	Outflow    int64
}

// Activity returns the split's signed contribution to its category:
// inflow increases available, outflow decreases it.
func (s Split) Activity() int64 {
	return s.Inflow - s.Outflow
}

// Transaction is a single ledger entry against an account, carrying one or
// more splits. Transactions are amended as a whole: there is no partial
// split update, and every amend bumps Revision.
type Transaction struct {
	Date      time.Time
	CreatedAt time.Time
	ID        string
	BudgetID  string
	AccountID string
	Payee     string
	Memo      string
	Splits    []Split
	Revision  int64
	Voided    bool
}

// Inflow returns the sum of all split inflows.
func (t *Transaction) Inflow() int64 {
	var total int64
	for _, s := range t.Splits {
		total += s.Inflow
	}
	return total
}

// Outflow returns the sum of all split outflows.
func (t *Transaction) Outflow() int64 {
	var total int64
	for _, s := range t.Splits {
		total += s.Outflow
	}
	return total
}

// CategoryMonths returns the (category, month) pairs whose activity this
// transaction contributes to. Used for projection invalidation.
func (t *Transaction) CategoryMonths() []CategoryMonth {
	month := MonthOf(t.Date)
	seen := make(map[string]bool, len(t.Splits))
	pairs := make([]CategoryMonth, 0, len(t.Splits))
	for _, s := range t.Splits {
		if seen[s.CategoryID] {
			continue
		}
		seen[s.CategoryID] = true
		pairs = append(pairs, CategoryMonth{CategoryID: s.CategoryID, Month: month})
	}
	return pairs
}

// CategoryMonth identifies one cell of the projection grid.
type CategoryMonth struct {
	CategoryID string
	Month      Month
}
