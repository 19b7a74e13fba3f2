package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envelopezero/engine/internal/model"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "no auth configured",
			mutate:  func(_ *Config) {},
			wantErr: true,
		},
		{
			name: "oauth only",
			mutate: func(c *Config) {
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
			},
		},
		{
			name: "service account only",
			mutate: func(c *Config) {
				c.ServiceAccountPath = "/tmp/key.json"
			},
		},
		{
			name: "both methods conflict",
			mutate: func(c *Config) {
				c.ClientID = "id"
				c.ClientSecret = "secret"
				c.RefreshToken = "token"
				c.ServiceAccountPath = "/tmp/key.json"
			},
			wantErr: true,
		},
		{
			name: "partial oauth is not auth",
			mutate: func(c *Config) {
				c.ClientID = "id"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildRows(t *testing.T) {
	month, err := model.ParseMonth("2026-03")
	require.NoError(t, err)

	w := &Writer{config: DefaultConfig()}
	rows := w.buildRows(MonthReport{
		Budget:    &model.Budget{Name: "Household"},
		Month:     month,
		Dashboard: &model.Dashboard{Month: month, Inflow: 300000, Outflow: 12500, Available: 50000},
		Projections: []model.CategoryProjection{
			{CategoryID: "cat-1", Month: month, Assigned: 20000, Activity: -12500, Available: 7500},
		},
		CategoryNames: map[string]string{"cat-1": "Groceries"},
	})

	require.Len(t, rows, 8)
	assert.Equal(t, "Household — 2026-03", rows[0][0])
	assert.Equal(t, []any{"Ready to Assign", 500.0}, rows[4])
	assert.Equal(t, []any{"Category", "Assigned", "Activity", "Available"}, rows[6])
	assert.Equal(t, []any{"Groceries", 200.0, -125.0, 75.0}, rows[7])
}
