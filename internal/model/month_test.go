package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Month
		wantErr bool
	}{
		{name: "valid", input: "2024-03", want: Month{Year: 2024, Mon: time.March}},
		{name: "december", input: "1999-12", want: Month{Year: 1999, Mon: time.December}},
		{name: "missing month", input: "2024", wantErr: true},
		{name: "month out of range", input: "2024-13", wantErr: true},
		{name: "full date", input: "2024-03-15", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestMonthNextPrevAcrossYearBoundary(t *testing.T) {
	dec := Month{Year: 2023, Mon: time.December}
	jan := Month{Year: 2024, Mon: time.January}

	assert.Equal(t, jan, dec.Next())
	assert.Equal(t, dec, jan.Prev())
	assert.True(t, dec.Before(jan))
	assert.True(t, jan.After(dec))
}

func TestMonthBounds(t *testing.T) {
	feb := Month{Year: 2024, Mon: time.February}

	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), feb.Start())
	// 2024 is a leap year.
	assert.True(t, feb.Contains(time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)))
	assert.False(t, feb.Contains(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, feb.End().Before(feb.Next().Start()))
}

func TestTransactionCategoryMonths(t *testing.T) {
	txn := &Transaction{
		Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		Splits: []Split{
			{CategoryID: "groceries", Outflow: 4500},
			{CategoryID: "household", Outflow: 1200},
			{CategoryID: "groceries", Outflow: 800},
		},
	}

	pairs := txn.CategoryMonths()

	require.Len(t, pairs, 2)
	month := Month{Year: 2024, Mon: time.March}
	assert.Contains(t, pairs, CategoryMonth{CategoryID: "groceries", Month: month})
	assert.Contains(t, pairs, CategoryMonth{CategoryID: "household", Month: month})
}

func TestSplitActivity(t *testing.T) {
	assert.Equal(t, int64(-4500), Split{Outflow: 4500}.Activity())
	assert.Equal(t, int64(250000), Split{Inflow: 250000}.Activity())
}
