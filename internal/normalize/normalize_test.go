package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTable() *Table {
	t := NewTable(2017)
	t.AddRate(1980, "US", "USD", 1.0)
	t.AddRate(1994, "US", "USD", 1.0)
	t.AddRate(2017, "US", "USD", 1.0)
	t.AddRate(2022, "US", "USD", 1.0)
	t.AddRate(1980, "FR", "EUR", 0.55)
	t.AddDeflator(1980, 49.4893)
	t.AddDeflator(1994, 65.5654)
	t.AddDeflator(2017, 100.0)
	t.AddDeflator(2022, 117.9662)
	return t
}

func TestNormalize(t *testing.T) {
	table := fixtureTable()

	tests := []struct {
		name     string
		year     int
		iso2     string
		currency string
		amount   float64
		want     float64
	}{
		{"USD inflates from 1994", 1994, "US", "USD", 50, 76.26},
		{"reference year is identity", 2017, "US", "USD", 100, 100.00},
		{"USD deflates from 2022", 2022, "US", "USD", 100, 84.77},
		{"foreign currency converts then adjusts", 1980, "FR", "EUR", 100, 367.39},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Normalize(tt.year, tt.iso2, tt.currency, tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeMissingRate(t *testing.T) {
	table := fixtureTable()

	_, err := table.Normalize(1980, "DE", "DEM", 10)
	require.Error(t, err)

	var missing *MissingRateError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "exchange-rate", missing.Table)
	assert.Equal(t, "DE", missing.ISO2)

	// Rate present but no deflator observation for the year.
	table.AddRate(1979, "US", "USD", 1.0)
	_, err = table.Normalize(1979, "US", "USD", 10)
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "deflator", missing.Table)
}
