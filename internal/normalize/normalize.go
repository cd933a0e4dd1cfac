// Package normalize converts monetary amounts to reference-year USD. The
// engine is pure: both lookup tables are loaded once at startup and the
// conversion itself does no I/O.
package normalize

import (
	"fmt"
	"math"
)

// rateKey addresses one exchange-rate observation.
type rateKey struct {
	Year     int
	ISO2     string
	Currency string
}

// MissingRateError reports a lookup miss for either table. Callers keep the
// amount null and continue; a miss never fails the batch.
type MissingRateError struct {
	Year     int
	ISO2     string
	Currency string
	Table    string // "exchange-rate" or "deflator"
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no %s for year=%d country=%s currency=%s", e.Table, e.Year, e.ISO2, e.Currency)
}

// Table holds exchange rates to USD keyed by (year, country, currency) and
// GDP price deflators keyed by year, indexed 100 at the reference year.
type Table struct {
	rates         map[rateKey]float64
	deflators     map[int]float64
	referenceYear int
}

// NewTable creates an empty table for the given reference year.
func NewTable(referenceYear int) *Table {
	return &Table{
		rates:         make(map[rateKey]float64),
		deflators:     make(map[int]float64),
		referenceYear: referenceYear,
	}
}

// AddRate records one exchange-rate observation (units of currency per USD).
func (t *Table) AddRate(year int, iso2, currency string, rate float64) {
	t.rates[rateKey{Year: year, ISO2: iso2, Currency: currency}] = rate
}

// AddDeflator records one deflator observation.
func (t *Table) AddDeflator(year int, value float64) {
	t.deflators[year] = value
}

// ReferenceYear returns the year amounts are normalized to.
func (t *Table) ReferenceYear() int {
	return t.referenceYear
}

// Normalize converts amount (in the given currency, observed in year and
// country) to reference-year USD, rounded to two decimals.
func (t *Table) Normalize(year int, iso2, currency string, amount float64) (float64, error) {
	rate, ok := t.rates[rateKey{Year: year, ISO2: iso2, Currency: currency}]
	if !ok || rate == 0 {
		return 0, &MissingRateError{Year: year, ISO2: iso2, Currency: currency, Table: "exchange-rate"}
	}
	deflator, ok := t.deflators[year]
	if !ok || deflator == 0 {
		return 0, &MissingRateError{Year: year, ISO2: iso2, Currency: currency, Table: "deflator"}
	}

	usd := amount * (1 / rate) * (100 / deflator)
	return round2(usd), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
