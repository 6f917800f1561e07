package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/drawdown/market"
	"github.com/rustyeddy/drawdown/montecarlo"
	"github.com/rustyeddy/drawdown/signal"
	"github.com/rustyeddy/drawdown/sim"
)

// Environment variables that override file values.
const (
	EnvLogLevel   = "DRAWDOWN_LOG_LEVEL"
	EnvLogFormat  = "DRAWDOWN_LOG_FORMAT"
	EnvDBPath     = "DRAWDOWN_DB_PATH"
	EnvOutDir     = "DRAWDOWN_OUT_DIR"
	EnvPricesFile = "DRAWDOWN_PRICES_FILE"
)

const monthLayout = "2006-01"

// Config is the complete run configuration.
type Config struct {
	Data       DataConfig       `json:"data" yaml:"data"`
	Signal     SignalConfig     `json:"signal" yaml:"signal"`
	Portfolio  PortfolioConfig  `json:"portfolio" yaml:"portfolio"`
	MonteCarlo MonteCarloConfig `json:"montecarlo" yaml:"montecarlo"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// DataConfig locates the price file.
type DataConfig struct {
	PricesFile   string `json:"prices_file" yaml:"prices_file"`
	DateColumn   string `json:"date_column" yaml:"date_column"`
	CloseColumn  string `json:"close_column" yaml:"close_column"`
	SignalColumn string `json:"signal_column,omitempty" yaml:"signal_column,omitempty"`
}

// ThresholdConfig is a drawdown trigger.
type ThresholdConfig struct {
	ThresholdPct float64 `json:"threshold_pct" yaml:"threshold_pct"`
	Days         int     `json:"days" yaml:"days"`
}

// SignalConfig selects the signal rule.
type SignalConfig struct {
	Rule              string          `json:"rule" yaml:"rule"`
	SMAWindow         int             `json:"sma_window" yaml:"sma_window"`
	RequireFullWindow bool            `json:"require_full_window" yaml:"require_full_window"`
	Deep              ThresholdConfig `json:"deep" yaml:"deep"`
	Shallow           ThresholdConfig `json:"shallow" yaml:"shallow"`
}

// PortfolioConfig contains the account, fee and tax rules.
type PortfolioConfig struct {
	InitialCash        float64 `json:"initial_cash" yaml:"initial_cash"`
	Contribution       float64 `json:"contribution" yaml:"contribution"`
	TERAnnual          float64 `json:"ter_annual" yaml:"ter_annual"`
	TradingDaysPerYear int     `json:"trading_days_per_year" yaml:"trading_days_per_year"`
	MinInvestment      float64 `json:"min_investment" yaml:"min_investment"`
	Fee                float64 `json:"fee" yaml:"fee"`
	TaxAllowance       float64 `json:"tax_allowance" yaml:"tax_allowance"`
	TaxRate            float64 `json:"tax_rate" yaml:"tax_rate"`
	GainPolicy         string  `json:"gain_policy" yaml:"gain_policy"`
}

// MonteCarloConfig contains harness parameters. Start months are
// formatted YYYY-MM.
type MonteCarloConfig struct {
	HorizonDays int    `json:"horizon_days" yaml:"horizon_days"`
	Trials      int    `json:"trials" yaml:"trials"`
	StartFrom   string `json:"start_from" yaml:"start_from"`
	StartTo     string `json:"start_to" yaml:"start_to"`
	Workers     int    `json:"workers" yaml:"workers"`
	KeepPaths   bool   `json:"keep_paths" yaml:"keep_paths"`
}

// JournalConfig contains journaling parameters. Empty paths disable the
// corresponding backend.
type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OutDir string `json:"out_dir,omitempty" yaml:"out_dir,omitempty"`
}

// AgentConfig sets up the paper trading account. The account is kept in
// StatePath between invocations.
type AgentConfig struct {
	Instrument  string  `json:"instrument" yaml:"instrument"`
	AccountID   string  `json:"account_id" yaml:"account_id"`
	Currency    string  `json:"currency" yaml:"currency"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
	StatePath   string  `json:"state_path" yaml:"state_path"`
}

// ServerConfig configures the journal API.
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// LoadFromFile loads configuration from a file. Values missing from the
// file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and as JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	data, err := c.Marshal(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Marshal encodes the configuration in the format implied by path.
func (c *Config) Marshal(path string) ([]byte, error) {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error. Variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides file values from DRAWDOWN_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvOutDir); v != "" {
		c.Journal.OutDir = v
	}
	if v := os.Getenv(EnvPricesFile); v != "" {
		c.Data.PricesFile = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Data.DateColumn == "" || c.Data.CloseColumn == "" {
		return fmt.Errorf("data.date_column and data.close_column are required")
	}
	if err := c.SignalParams().Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if err := c.PortfolioParams().Validate(); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	if c.MonteCarlo.HorizonDays <= 0 {
		return fmt.Errorf("montecarlo.horizon_days must be positive")
	}
	if c.MonteCarlo.Trials <= 0 {
		return fmt.Errorf("montecarlo.trials must be positive")
	}
	if c.MonteCarlo.Workers < 0 {
		return fmt.Errorf("montecarlo.workers must not be negative")
	}
	from, to, err := c.MonteCarlo.Range()
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("montecarlo.start_to must not precede start_from")
	}
	if c.Agent.Instrument == "" {
		return fmt.Errorf("agent.instrument is required")
	}
	if c.Agent.InitialCash < 0 {
		return fmt.Errorf("agent.initial_cash must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

// Range parses the start month range.
func (m MonteCarloConfig) Range() (time.Time, time.Time, error) {
	from, err := time.Parse(monthLayout, m.StartFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("montecarlo.start_from %q: want YYYY-MM", m.StartFrom)
	}
	to, err := time.Parse(monthLayout, m.StartTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("montecarlo.start_to %q: want YYYY-MM", m.StartTo)
	}
	return from, to, nil
}

// Columns returns the loader column names.
func (c *Config) Columns() market.Columns {
	return market.Columns{
		Date:   c.Data.DateColumn,
		Close:  c.Data.CloseColumn,
		Signal: c.Data.SignalColumn,
	}
}

// SignalParams converts the signal section.
func (c *Config) SignalParams() signal.Params {
	s := c.Signal
	return signal.Params{
		Rule:              signal.Rule(s.Rule),
		SMAWindow:         s.SMAWindow,
		RequireFullWindow: s.RequireFullWindow,
		Deep:              signal.Threshold{Pct: s.Deep.ThresholdPct, Days: s.Deep.Days},
		Shallow:           signal.Threshold{Pct: s.Shallow.ThresholdPct, Days: s.Shallow.Days},
	}
}

// PortfolioParams converts the portfolio section.
func (c *Config) PortfolioParams() sim.Params {
	p := c.Portfolio
	return sim.Params{
		InitialCash:        p.InitialCash,
		Contribution:       p.Contribution,
		TERAnnual:          p.TERAnnual,
		TradingDaysPerYear: p.TradingDaysPerYear,
		MinInvestment:      p.MinInvestment,
		Fee:                p.Fee,
		TaxAllowance:       p.TaxAllowance,
		TaxRate:            p.TaxRate,
		GainPolicy:         sim.GainPolicy(p.GainPolicy),
	}
}

// MonteCarloOptions converts the montecarlo and portfolio sections.
// Logger and Observer are left for the caller.
func (c *Config) MonteCarloOptions() (montecarlo.Options, error) {
	from, to, err := c.MonteCarlo.Range()
	if err != nil {
		return montecarlo.Options{}, err
	}
	return montecarlo.Options{
		Portfolio: c.PortfolioParams(),
		Horizon:   c.MonteCarlo.HorizonDays,
		Trials:    c.MonteCarlo.Trials,
		From:      from,
		To:        to,
		Workers:   c.MonteCarlo.Workers,
		KeepPaths: c.MonteCarlo.KeepPaths,
	}, nil
}

// Default returns the configuration of the daily savings plan described by
// the drawdown rule: 375-day SMA, -40%/214 and -30%/416 windows, 25 per day.
func Default() *Config {
	sp := signal.DefaultParams()
	pp := sim.DefaultParams()
	return &Config{
		Data: DataConfig{
			PricesFile:   "spx_d.csv",
			DateColumn:   market.DefaultColumns.Date,
			CloseColumn:  market.DefaultColumns.Close,
			SignalColumn: market.DefaultColumns.Signal,
		},
		Signal: SignalConfig{
			Rule:              string(sp.Rule),
			SMAWindow:         sp.SMAWindow,
			RequireFullWindow: sp.RequireFullWindow,
			Deep:              ThresholdConfig{ThresholdPct: sp.Deep.Pct, Days: sp.Deep.Days},
			Shallow:           ThresholdConfig{ThresholdPct: sp.Shallow.Pct, Days: sp.Shallow.Days},
		},
		Portfolio: PortfolioConfig{
			InitialCash:        pp.InitialCash,
			Contribution:       pp.Contribution,
			TERAnnual:          pp.TERAnnual,
			TradingDaysPerYear: pp.TradingDaysPerYear,
			MinInvestment:      pp.MinInvestment,
			Fee:                pp.Fee,
			TaxAllowance:       pp.TaxAllowance,
			TaxRate:            pp.TaxRate,
			GainPolicy:         string(pp.GainPolicy),
		},
		MonteCarlo: MonteCarloConfig{
			HorizonDays: 34 * 252,
			Trials:      1,
			StartFrom:   "1970-01",
			StartTo:     "1990-12",
			KeepPaths:   true,
		},
		Journal: JournalConfig{
			DBPath: "drawdown.db",
		},
		Agent: AgentConfig{
			Instrument:  "SPX",
			AccountID:   "PAPER",
			Currency:    "USD",
			InitialCash: 10_000,
			StatePath:   "paper.yaml",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
