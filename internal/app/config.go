package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the register service configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"127.0.0.1:8080" usage:"Register API listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL of the local store (POS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Terminal    TerminalConfig
	Backend     BackendConfig
	Print       PrintConfig
	Scan        ScanConfig
	Sync        SyncConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// TerminalConfig is the identity of this register.
type TerminalConfig struct {
	ID           string `default:"terminal-1" usage:"Terminal identifier, keys the saved printer"`
	BranchID     string `usage:"Branch the sales are booked to"`
	EmployeeID   string `usage:"Employee operating the terminal"`
	StoreName    string `usage:"Store name printed on receipts"`
	Address      string `usage:"Store address printed on receipts"`
	Cashier      string `usage:"Cashier name printed on receipts"`
	CustomerType string `default:"Walk-in" usage:"Customer type printed on receipts"`
}

// BackendConfig points at the sales backend.
type BackendConfig struct {
	URL     string        `usage:"Sales backend base URL" flag:"backend-url"`
	Token   string        `usage:"Bearer token for the sales backend"`
	Timeout time.Duration `default:"10s" usage:"Backend request timeout"`
}

// PrintConfig points at the receipt print server.
type PrintConfig struct {
	URL           string        `default:"http://127.0.0.1:9100" usage:"Print server on the terminal"`
	FallbackURL   string        `usage:"Backend print endpoint used when the print server is down"`
	Timeout       time.Duration `default:"15s" usage:"Print request timeout"`
	HealthTimeout time.Duration `default:"2s" usage:"Print server health check timeout"`
	Copies        int           `default:"1" usage:"Receipt copies per sale"`
	Cut           bool          `default:"true" usage:"Cut paper after the receipt"`
	OpenDrawer    bool          `default:"false" usage:"Open the cash drawer after printing"`
}

// ScanConfig tunes input handling.
type ScanConfig struct {
	SettleDelay time.Duration `default:"50ms" usage:"Ignore new scans for this long after one is processed"`
	QuietPeriod time.Duration `default:"300ms" usage:"Scan typed input after this long without a keystroke"`
}

// SyncConfig tunes offline replay and backend probing.
type SyncConfig struct {
	Interval      time.Duration `default:"30s" usage:"Offline replay interval"`
	MaxRetries    int           `default:"5" usage:"Drop a queued request after this many failures"`
	ProbeInterval time.Duration `default:"10s" usage:"Backend health probe interval"`
	ProbeTimeout  time.Duration `default:"3s" usage:"Backend health probe timeout"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POS",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/kart-pos/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set POS_DATABASE_URL or DATABASE_URL")
	case c.Backend.URL == "":
		return errors.New("backend URL is required: set POS_BACKEND_URL")
	case c.Terminal.BranchID == "":
		return errors.New("branch is required: set POS_TERMINAL_BRANCH_ID")
	}
	return nil
}

// applyPlatformDefaults maps the standard DATABASE_URL and PORT variables to
// the POS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:8080" {
		c.Addr = "127.0.0.1:" + port
	}
}
