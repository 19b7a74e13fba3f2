package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the engine expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: budgets, accounts, categories, ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS budgets (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					currency_code TEXT NOT NULL DEFAULT 'USD',
					is_default INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					deleted_at DATETIME
				)`,
				`CREATE INDEX idx_accounts_budget ON accounts(budget_id)`,

				`CREATE TABLE IF NOT EXISTS supercategories (
					id TEXT PRIMARY KEY,
					budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					deleted_at DATETIME
				)`,
				`CREATE INDEX idx_supercategories_budget ON supercategories(budget_id)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					supercategory_id TEXT NOT NULL REFERENCES supercategories(id),
					name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					deleted_at DATETIME
				)`,
				`CREATE INDEX idx_categories_budget ON categories(budget_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					account_id TEXT NOT NULL REFERENCES accounts(id),
					tx_date DATETIME NOT NULL,
					payee TEXT,
					memo TEXT,
					revision INTEGER NOT NULL DEFAULT 1,
					voided_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_budget_date ON transactions(budget_id, tx_date)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_id)`,

				`CREATE TABLE IF NOT EXISTS transaction_splits (
					id TEXT PRIMARY KEY,
					transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					category_id TEXT NOT NULL REFERENCES categories(id),
					memo TEXT,
					inflow INTEGER NOT NULL DEFAULT 0,
					outflow INTEGER NOT NULL DEFAULT 0,
					position INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_splits_transaction ON transaction_splits(transaction_id)`,
				`CREATE INDEX idx_splits_category ON transaction_splits(category_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Append-only assignment deltas",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS assignment_deltas (
					id TEXT PRIMARY KEY,
					budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					category_id TEXT NOT NULL REFERENCES categories(id),
					month TEXT NOT NULL,
					amount INTEGER NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_deltas_category_month ON assignment_deltas(category_id, month)`,
				`CREATE INDEX idx_deltas_budget_month ON assignment_deltas(budget_id, month)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Projection cache with staleness marker",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS projections (
					budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
					category_id TEXT NOT NULL REFERENCES categories(id),
					month TEXT NOT NULL,
					assigned INTEGER NOT NULL DEFAULT 0,
					activity INTEGER NOT NULL DEFAULT 0,
					available INTEGER NOT NULL DEFAULT 0,
					stale INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (category_id, month)
				)`,
				`CREATE INDEX idx_projections_budget_month ON projections(budget_id, month)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
