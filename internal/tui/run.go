// Package tui implements the interactive month browser.
package tui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/envelopezero/engine/internal/engine"
	"github.com/envelopezero/engine/internal/model"
)

// Run starts the month browser for a budget and blocks until the user quits
// or the context is canceled.
func Run(ctx context.Context, coordinator *engine.Coordinator, budget *model.Budget, start model.Month) error {
	if coordinator == nil {
		return fmt.Errorf("coordinator is required")
	}
	if budget == nil {
		return fmt.Errorf("budget is required")
	}
	if start.IsZero() {
		return fmt.Errorf("start month is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	program := tea.NewProgram(
		newModel(ctx, coordinator, budget, start),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	go func() {
		select {
		case <-sigChan:
			program.Quit()
		case <-ctx.Done():
		}
	}()

	if _, err := program.Run(); err != nil {
		// Canceling the context makes bubbletea return its error; the user
		// asked to stop, so that is not a failure.
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("month browser failed: %w", err)
	}
	return nil
}
