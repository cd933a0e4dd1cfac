package normalize

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/interfaces"
)

// ratesDataset is the shape of the exchange-rate endpoint.
type ratesDataset struct {
	Observations []struct {
		Year     int     `json:"year"`
		Country  string  `json:"country"`
		Currency string  `json:"currency"`
		Rate     float64 `json:"rate"`
	} `json:"observations"`
}

// deflatorDataset is the shape of the deflator endpoint.
type deflatorDataset struct {
	Series []struct {
		Year  int     `json:"year"`
		Value float64 `json:"value"`
	} `json:"series"`
}

// LoadTable fetches both datasets once and builds the lookup table.
func LoadTable(ctx context.Context, fetcher interfaces.Fetcher, cfg *common.RatesConfig) (*Table, error) {
	table := NewTable(cfg.ReferenceYear)

	var rates ratesDataset
	if err := fetcher.GetJSON(ctx, cfg.ExchangeRatesURL, &rates); err != nil {
		return nil, fmt.Errorf("failed to load exchange rates: %w", err)
	}
	for _, obs := range rates.Observations {
		table.AddRate(obs.Year, strings.ToUpper(obs.Country), strings.ToUpper(obs.Currency), obs.Rate)
	}

	var deflators deflatorDataset
	if err := fetcher.GetJSON(ctx, cfg.DeflatorsURL, &deflators); err != nil {
		return nil, fmt.Errorf("failed to load deflators: %w", err)
	}
	for _, obs := range deflators.Series {
		table.AddDeflator(obs.Year, obs.Value)
	}

	return table, nil
}

// LoadCountryISO reads the country-name to ISO-2 CSV used to key the
// exchange-rate table by country.
func LoadCountryISO(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open country ISO file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	out := make(map[string]string)
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read country ISO file: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(record[0], "name") {
				continue
			}
		}
		out[strings.TrimSpace(record[0])] = strings.ToUpper(strings.TrimSpace(record[1]))
	}
	return out, nil
}
