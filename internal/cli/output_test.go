package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	tests := []struct {
		want  string
		cents int64
	}{
		{"0.00", 0},
		{"0.05", 5},
		{"12.34", 1234},
		{"-12.34", -1234},
		{"10000.00", 1000000},
		{"-0.99", -99},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCents(tt.cents))
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"NAME", "AMOUNT"},
		[][]string{
			{"Groceries", "12.00"},
			{"Rent", "1500.00"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Groceries")
	assert.Contains(t, lines[2], "1500.00")
}

func TestRenderTableStyledCellWidths(t *testing.T) {
	styled := "\x1b[32mx\x1b[0m"
	out := RenderTable(
		[]string{"NAME", "AMOUNT"},
		[][]string{
			{styled, "1.00"},
			{"longer", "2.00"},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	// Escape sequences do not count toward the column width, so the styled
	// cell pads out to the same visible width as "longer".
	assert.Equal(t, styled+strings.Repeat(" ", 5)+"  1.00", lines[1])
	assert.Equal(t, "longer  2.00", lines[2])
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "yes word", input: "YES\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty defaults to no", input: "\n", want: false},
		{name: "garbage is no", input: "maybe\n", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			c := NewConfirmer(strings.NewReader(tt.input), &out)
			got, err := c.Confirm(context.Background(), "Delete everything?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "[y/N]")
		})
	}
}

func TestConfirmCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	c := NewConfirmer(blockingReader{}, &out)
	_, err := c.Confirm(ctx, "Proceed?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}

type blockingReader struct{}

func (blockingReader) Read(_ []byte) (int, error) {
	select {}
}
