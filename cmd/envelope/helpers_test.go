package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "whole dollars", input: "125", want: 12500},
		{name: "dollars and cents", input: "125.50", want: 12550},
		{name: "single decimal place", input: "125.5", want: 12550},
		{name: "negative", input: "-3.25", want: -325},
		{name: "dollar sign", input: "$42.00", want: 4200},
		{name: "negative dollar sign", input: "-$42.00", want: -4200},
		{name: "sign after dollar sign", input: "$-5.50", want: -550},
		{name: "double negative", input: "-$-5.50", wantErr: true},
		{name: "cents only", input: "0.07", want: 7},
		{name: "bare decimal", input: ".50", want: 50},
		{name: "whitespace", input: " 10 ", want: 1000},
		{name: "three decimal places", input: "1.005", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCents(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeterministicImportID(t *testing.T) {
	a := deterministicImportID("1234", "FIT-001")
	b := deterministicImportID("1234", "FIT-001")
	c := deterministicImportID("1234", "FIT-002")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
