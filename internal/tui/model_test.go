package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/envelopezero/engine/internal/model"
)

func TestProjectionRows(t *testing.T) {
	month := model.Month{Year: 2024, Mon: time.March}
	projections := []model.CategoryProjection{
		{CategoryID: "cat-1", Month: month, Assigned: 50000, Activity: -12550, Available: 37450},
		{CategoryID: "cat-2", Month: month, Assigned: 0, Activity: 0, Available: -300},
	}
	names := map[string]string{"cat-1": "Groceries"}

	rows := projectionRows(projections, names)

	assert.Len(t, rows, 2)
	assert.Equal(t, "Groceries", rows[0][0])
	assert.Equal(t, "500.00", rows[0][1])
	assert.Equal(t, "-125.50", rows[0][2])
	assert.Equal(t, "374.50", rows[0][3])
	// Unknown categories fall back to their ID rather than a blank cell.
	assert.Equal(t, "cat-2", rows[1][0])
	assert.Equal(t, "-3.00", rows[1][3])
}

func TestDefaultKeyMapHelp(t *testing.T) {
	keymap := DefaultKeyMap()

	assert.NotEmpty(t, keymap.ShortHelp())
	full := keymap.FullHelp()
	assert.Len(t, full, 2)
	for _, row := range full {
		assert.NotEmpty(t, row)
	}
}
