package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for any engine entity.
func NewID() string {
	return uuid.NewString()
}

// Budget is the root aggregate. Every other entity belongs to exactly one
// budget, and amounts within a budget share its currency.
type Budget struct {
	CreatedAt    time.Time
	ID           string
	Name         string
	CurrencyCode string
	IsDefault    bool
}

// Account holds money. Its balance is never stored; it is the signed sum
// of its transactions' splits.
type Account struct {
	CreatedAt time.Time
	ID        string
	BudgetID  string
	Name      string
}

// Supercategory groups categories for display. It has no monetary semantics.
type Supercategory struct {
	CreatedAt time.Time
	ID        string
	BudgetID  string
	Name      string
}

// Category is the envelope: the unit money is assigned to and spent from.
type Category struct {
	CreatedAt       time.Time
	ID              string
	BudgetID        string
	SupercategoryID string
	Name            string
}
