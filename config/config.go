package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/chainledger/internal/addressbook"
)

// Config holds one tax run: which transactions to fold, under which lot
// policy, and how to scope and price the report.
type Config struct {
	Policy        string
	Guard         string
	TaxYear       int
	Unit          string
	LongTermAfter time.Duration
	Tolerance     decimal.Decimal
	Platform      string
	Transactions  string
	DataDir       string
	StoreBackend  string
	Listen        string
	AddressBook   []addressbook.Entry
}

type configTmp struct {
	Policy        string              `yaml:"policy"`
	Guard         string              `yaml:"guard"`
	TaxYear       int                 `yaml:"tax_year"`
	Unit          string              `yaml:"unit"`
	LongTermAfter time.Duration       `yaml:"long_term_after,omitempty"`
	ToleranceStr  string              `yaml:"tolerance,omitempty"`
	Platform      string              `yaml:"platform,omitempty"`
	Transactions  string              `yaml:"transactions"`
	DataDir       string              `yaml:"data_dir,omitempty"`
	StoreBackend  string              `yaml:"store,omitempty"`
	Listen        string              `yaml:"listen,omitempty"`
	AddressBook   []addressbook.Entry `yaml:"addressbook,omitempty"`
}

var defaultTolerance = decimal.RequireFromString("0.000000001")

// Get reads the run configuration from a yaml file when --config is given,
// falling back to CLI flags.
func Get() (*Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	policy := flag.String("policy", "fifo", "lot-selection policy: fifo, lifo or hifo")
	guard := flag.String("guard", "", "jurisdiction guard the report is scoped to, example: USA")
	taxYear := flag.Int("taxyear", time.Now().UTC().Year()-1, "tax year the report covers")
	unit := flag.String("unit", "USD", "pricing unit for gains, example: USD")
	platform := flag.String("platform", "binance", "price backend: binance, bybit or none")
	transactions := flag.String("transactions", "transactions.json", "path to normalized transactions file")
	dataDir := flag.String("datadir", "./data", "directory for stores and caches")
	store := flag.String("store", "wal", "store backend: wal or file")
	listen := flag.String("listen", "", "address for the report server, empty disables it")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := &Config{
		Policy:        *policy,
		Guard:         *guard,
		TaxYear:       *taxYear,
		Unit:          *unit,
		LongTermAfter: 0,
		Tolerance:     defaultTolerance,
		Platform:      *platform,
		Transactions:  *transactions,
		DataDir:       *dataDir,
		StoreBackend:  *store,
		Listen:        *listen,
	}
	return cfg, cfg.validate()
}

func getYaml(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return nil, err
	}

	cfg := &Config{
		Policy:        tmp.Policy,
		Guard:         tmp.Guard,
		TaxYear:       tmp.TaxYear,
		Unit:          tmp.Unit,
		LongTermAfter: tmp.LongTermAfter,
		Platform:      tmp.Platform,
		Transactions:  tmp.Transactions,
		DataDir:       tmp.DataDir,
		StoreBackend:  tmp.StoreBackend,
		Listen:        tmp.Listen,
		AddressBook:   tmp.AddressBook,
		Tolerance:     defaultTolerance,
	}
	if tmp.ToleranceStr != "" {
		tol, err := decimal.NewFromString(tmp.ToleranceStr)
		if err != nil {
			return nil, fmt.Errorf("incorrect 'tolerance' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.Tolerance = tol
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Policy {
	case "", "fifo", "lifo", "hifo":
	default:
		return fmt.Errorf("invalid policy %q, must be fifo, lifo or hifo", c.Policy)
	}
	if c.Policy == "" {
		c.Policy = "fifo"
	}
	switch c.Platform {
	case "", "binance", "bybit", "none":
	default:
		return fmt.Errorf("invalid platform %q, must be binance, bybit or none", c.Platform)
	}
	if c.Platform == "" {
		c.Platform = "none"
	}
	switch c.StoreBackend {
	case "", "wal", "file":
	default:
		return fmt.Errorf("invalid store %q, must be wal or file", c.StoreBackend)
	}
	if c.StoreBackend == "" {
		c.StoreBackend = "wal"
	}
	if c.Unit == "" {
		c.Unit = "USD"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Transactions == "" {
		return fmt.Errorf("transactions file path is required")
	}
	if c.TaxYear < 2009 {
		return fmt.Errorf("invalid tax year %d", c.TaxYear)
	}
	return nil
}

// Period returns the UTC boundaries of the configured tax year.
func (c *Config) Period() (time.Time, time.Time) {
	start := time.Date(c.TaxYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(c.TaxYear, time.December, 31, 23, 59, 59, 999999999, time.UTC)
	return start, end
}
