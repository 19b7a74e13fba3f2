package model

import "time"

// AssignmentDelta is one append-only record of money moved into (positive)
// or out of (negative) a category for a specific month. The assigned figure
// for a category-month is the sum of all its deltas; deltas are never
// updated or removed.
type AssignmentDelta struct {
	CreatedAt  time.Time
	ID         string
	BudgetID   string
	CategoryID string
	Month      Month
	Amount     int64
}
