package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Bus         BusConfig       `toml:"bus"`
	Storage     StorageConfig   `toml:"storage"`
	Dispatcher  DispatchConfig  `toml:"dispatcher"`
	Fetcher     FetcherConfig   `toml:"fetcher"`
	Transform   TransformConfig `toml:"transform"`
	StockMeta   StockMetaConfig `toml:"stock_metadata"`
	Rates       RatesConfig     `toml:"rates"`
	Reference   ReferenceConfig `toml:"reference"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// BusConfig configures the badger-backed message bus.
type BusConfig struct {
	RetrievalTopic        string `toml:"retrieval_topic"`        // Topic for task messages
	RetrievalSubscription string `toml:"retrieval_subscription"` // Subscription the dispatcher pulls from
	CleaningTopic         string `toml:"cleaning_topic"`         // Topic for per-job audit messages
	BatchSize             int    `toml:"batch_size"`             // Max messages per pull
	PublishTimeout        string `toml:"publish_timeout"`        // e.g. "30s"
	RetryDeadline         string `toml:"retry_deadline"`         // e.g. "60s" - max wait on an empty pull
	VisibilityTimeout     string `toml:"visibility_timeout"`     // e.g. "10m" - lease before redelivery
	MaxReceive            int    `toml:"max_receive"`            // Deliveries before dead-letter
	PollInterval          string `toml:"poll_interval"`          // Sleep between empty pulls
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type DispatchConfig struct {
	MaxWorkers int `toml:"max_workers"` // Parallel message handlers per pulled batch
}

// FetcherConfig configures the shared HTTP fetcher.
type FetcherConfig struct {
	Timeout        string `toml:"timeout"`          // Per-request timeout; "0" means unlimited (large downloads)
	MinDelay       string `toml:"min_delay"`        // Lower bound of the random inter-request delay
	MaxDelay       string `toml:"max_delay"`        // Upper bound of the random inter-request delay
	UserAgentsFile string `toml:"user_agents_file"` // JSON array of user-agent strings
	RenderWait     string `toml:"render_wait"`      // Wait after navigation for JS-rendered pages
}

type TransformConfig struct {
	BatchSize int `toml:"batch_size"` // Staged rows per transform batch
}

// StockMetaConfig configures the external stock-metadata service client.
type StockMetaConfig struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	RateWindow           string `toml:"rate_window"`             // e.g. "60s"
	MaxRequestsPerWindow int    `toml:"max_requests_per_window"` // Fixed request rate within the window
}

// RatesConfig configures the reference data for currency normalization.
type RatesConfig struct {
	ExchangeRatesURL string `toml:"exchange_rates_url"` // SDMX-style JSON dataset, fetched once at startup
	DeflatorsURL     string `toml:"deflators_url"`      // GDP price deflator series, index 100 at reference year
	ReferenceYear    int    `toml:"reference_year"`     // e.g. 2017
}

// ReferenceConfig points at the standardization data files loaded at startup.
type ReferenceConfig struct {
	CountriesFile     string `toml:"countries_file"`      // alias -> canonical country name (JSON)
	StatusesFile      string `toml:"statuses_file"`       // alias -> canonical status (JSON)
	SectorsFile       string `toml:"sectors_file"`        // alias -> canonical sector (JSON)
	CurrencyCodesFile string `toml:"currency_codes_file"` // CSV of ISO currency codes
	CountryISOFile    string `toml:"country_iso_file"`    // CSV of country name -> ISO-2 code
	BanksFile         string `toml:"banks_file"`          // JSON array of bank reference rows
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Bus: BusConfig{
			RetrievalTopic:        "retrieval",
			RetrievalSubscription: "retrieval",
			CleaningTopic:         "cleaning",
			BatchSize:             10,
			PublishTimeout:        "30s",
			RetryDeadline:         "60s",
			VisibilityTimeout:     "10m",
			MaxReceive:            5,
			PollInterval:          "1s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./db",
			},
		},
		Dispatcher: DispatchConfig{
			MaxWorkers: 8,
		},
		Fetcher: FetcherConfig{
			Timeout:        "60s",
			MinDelay:       "500ms",
			MaxDelay:       "2s",
			UserAgentsFile: "./data/user_agents.json",
			RenderWait:     "3s",
		},
		Transform: TransformConfig{
			BatchSize: 5000,
		},
		StockMeta: StockMetaConfig{
			BaseURL:              "https://api.openfigi.example/v1",
			RateWindow:           "60s",
			MaxRequestsPerWindow: 250,
		},
		Rates: RatesConfig{
			ExchangeRatesURL: "https://sdmx.oecd.org/public/rest/data/EXC_ANNUAL/all?format=jsondata",
			DeflatorsURL:     "https://api.worldbank.org/v2/country/USA/indicator/NY.GDP.DEFL.ZS?format=json&per_page=200",
			ReferenceYear:    2017,
		},
		Reference: ReferenceConfig{
			CountriesFile:     "./data/countries.json",
			StatusesFile:      "./data/statuses.json",
			SectorsFile:       "./data/sectors.json",
			CurrencyCodesFile: "./data/currency_codes.csv",
			CountryISOFile:    "./data/country_iso_codes.csv",
			BanksFile:         "./data/banks.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files;
// environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FUNDTRACE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("FUNDTRACE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FUNDTRACE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if topic := os.Getenv("FUNDTRACE_RETRIEVAL_TOPIC"); topic != "" {
		config.Bus.RetrievalTopic = topic
	}
	if sub := os.Getenv("FUNDTRACE_RETRIEVAL_SUBSCRIPTION"); sub != "" {
		config.Bus.RetrievalSubscription = sub
	}
	if topic := os.Getenv("FUNDTRACE_CLEANING_TOPIC"); topic != "" {
		config.Bus.CleaningTopic = topic
	}
	if batch := os.Getenv("FUNDTRACE_BUS_BATCH_SIZE"); batch != "" {
		if b, err := strconv.Atoi(batch); err == nil {
			config.Bus.BatchSize = b
		}
	}
	if timeout := os.Getenv("FUNDTRACE_PUBLISH_TIMEOUT"); timeout != "" {
		config.Bus.PublishTimeout = timeout
	}
	if deadline := os.Getenv("FUNDTRACE_RETRY_DEADLINE"); deadline != "" {
		config.Bus.RetryDeadline = deadline
	}
	if visibility := os.Getenv("FUNDTRACE_VISIBILITY_TIMEOUT"); visibility != "" {
		config.Bus.VisibilityTimeout = visibility
	}
	if maxReceive := os.Getenv("FUNDTRACE_BUS_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Bus.MaxReceive = mr
		}
	}

	if workers := os.Getenv("FUNDTRACE_MAX_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Dispatcher.MaxWorkers = w
		}
	}

	if path := os.Getenv("FUNDTRACE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if key := os.Getenv("FUNDTRACE_STOCKMETA_API_KEY"); key != "" {
		config.StockMeta.APIKey = key
	}
	if url := os.Getenv("FUNDTRACE_STOCKMETA_BASE_URL"); url != "" {
		config.StockMeta.BaseURL = url
	}

	if url := os.Getenv("FUNDTRACE_EXCHANGE_RATES_URL"); url != "" {
		config.Rates.ExchangeRatesURL = url
	}
	if url := os.Getenv("FUNDTRACE_DEFLATORS_URL"); url != "" {
		config.Rates.DeflatorsURL = url
	}

	if level := os.Getenv("FUNDTRACE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Duration parses a duration field, falling back to def on empty or invalid values.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
