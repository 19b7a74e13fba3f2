package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start month must not be after end month")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction checks the ledger invariants on a transaction before
// it touches the database: at least one split, and every split carrying
// exactly one non-negative, non-zero side.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return common.NewValidationError("missing transaction ID")
	}
	if txn.BudgetID == "" {
		return common.NewValidationError("missing budget ID")
	}
	if txn.AccountID == "" {
		return common.NewValidationError("missing account ID")
	}
	if txn.Date.IsZero() {
		return common.NewValidationError("missing date")
	}
	if len(txn.Splits) == 0 {
		return common.NewValidationError("transaction has no splits")
	}

	for i, split := range txn.Splits {
		if split.CategoryID == "" {
			return common.NewSplitError(i, "missing category")
		}
		if split.Inflow < 0 || split.Outflow < 0 {
			return common.NewSplitError(i, "amounts must be non-negative")
		}
		if split.Inflow > 0 && split.Outflow > 0 {
			return common.NewSplitError(i, "split cannot have both inflow and outflow")
		}
		if split.Inflow == 0 && split.Outflow == 0 {
			return common.NewSplitError(i, "split must have a non-zero amount")
		}
	}
	return nil
}

// validateMonthRange ensures from does not come after to.
func validateMonthRange(from, to model.Month) error {
	if from.IsZero() || to.IsZero() {
		return nil
	}
	if from.After(to) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, from, to)
	}
	return nil
}
