package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"wisenews_scraper/internal/domain"
)

const (
	DefaultMongoURI    = "mongodb://localhost:27017"
	DefaultMongoDB     = "wisenews"
	DefaultEmailTitle  = "Suicide News"
	DefaultLedgerPath  = "wisenews.db"
	DefaultHTTPAddr    = ":8080"
	DefaultWaitTimeout = 60 * time.Second
)

// Config is the full runtime configuration.
type Config struct {
	HKU        HKU        `mapstructure:"hku"`
	Mail       Mail       `mapstructure:"mail"`
	Mongo      Mongo      `mapstructure:"mongo"`
	Browser    Browser    `mapstructure:"browser"`
	Search     Search     `mapstructure:"search"`
	Retry      Retry      `mapstructure:"retry"`
	Ledger     Ledger     `mapstructure:"ledger"`
	Publishers Publishers `mapstructure:"publishers"`
	Log        Log        `mapstructure:"log"`
	HTTP       HTTP       `mapstructure:"http"`
}

type HKU struct {
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
}

type Mail struct {
	Delivery   string `mapstructure:"delivery"`
	Title      string `mapstructure:"title"`
	SenderName string `mapstructure:"sender"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
	SMTP       SMTP   `mapstructure:"smtp"`
}

type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Mongo struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type Browser struct {
	ExecPath    string        `mapstructure:"exec_path"`
	Headless    bool          `mapstructure:"headless"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

type Search struct {
	Sections  []string         `mapstructure:"sections"`
	DateRange string           `mapstructure:"date_range"`
	Keywords  []domain.Keyword `mapstructure:"keywords"`
}

type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

type Ledger struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type Publishers struct {
	File string `mapstructure:"file"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"hku.login":            "HKU_LOGIN",
	"hku.password":         "HKU_PASSWORD",
	"mail.sender":          "SENDER",
	"mail.from":            "FROM_EMAIL",
	"mail.to":              "TO_EMAIL",
	"mail.delivery":        "DELIVERY_MODE",
	"mail.title":           "EMAIL_TITLE",
	"mail.smtp.host":       "SMTP_HOST",
	"mail.smtp.port":       "SMTP_PORT",
	"mail.smtp.username":   "SMTP_USERNAME",
	"mail.smtp.password":   "SMTP_PASSWORD",
	"mongo.enabled":        "MONGO_ENABLED",
	"mongo.uri":            "MONGO_URI",
	"mongo.database":       "MONGO_DB",
	"browser.exec_path":    "CHROME_PATH",
	"browser.headless":     "HEADLESS",
	"browser.wait_timeout": "BROWSER_WAIT_TIMEOUT",
	"browser.settle_delay": "BROWSER_SETTLE_DELAY",
	"search.sections":      "SECTIONS",
	"search.date_range":    "DATE_RANGE",
	"retry.attempts":       "RETRY_ATTEMPTS",
	"retry.delay":          "RETRY_DELAY",
	"ledger.enabled":       "LEDGER_ENABLED",
	"ledger.path":          "LEDGER_PATH",
	"ledger.ttl":           "LEDGER_TTL",
	"publishers.file":      "PUBLISHERS_FILE",
	"log.level":            "LOG_LEVEL",
	"log.format":           "LOG_FORMAT",
	"http.addr":            "HTTP_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mail.delivery", string(domain.DeliveryPortal))
	v.SetDefault("mail.title", DefaultEmailTitle)
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mongo.enabled", true)
	v.SetDefault("mongo.uri", DefaultMongoURI)
	v.SetDefault("mongo.database", DefaultMongoDB)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.wait_timeout", DefaultWaitTimeout)
	v.SetDefault("browser.settle_delay", 5*time.Second)
	v.SetDefault("search.sections", domain.DefaultSections)
	v.SetDefault("search.date_range", domain.DateRangeThreeDays.String())
	v.SetDefault("retry.attempts", 2)
	v.SetDefault("retry.delay", 3*time.Second)
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", DefaultLedgerPath)
	v.SetDefault("ledger.ttl", 30*24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", DefaultHTTPAddr)
}

// LoadEnv reads .env into the process environment when present. It reports
// whether a file was loaded.
func LoadEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load builds the configuration from defaults, the optional config file at
// path, and the environment (which wins over the file).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if len(c.Search.Keywords) == 0 {
		c.Search.Keywords = domain.DefaultKeywords()
	}
	sections := make([]string, 0, len(c.Search.Sections))
	for _, s := range c.Search.Sections {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}
	c.Search.Sections = sections
	c.Mail.Title = strings.TrimSpace(c.Mail.Title)
	if c.Mail.Title == "" {
		c.Mail.Title = DefaultEmailTitle
	}
}

// Validate checks everything except credentials, which only the run needs.
func (c *Config) Validate() error {
	if _, err := domain.ParseDelivery(c.Mail.Delivery); err != nil {
		return fmt.Errorf("DELIVERY_MODE: %w", err)
	}
	if _, err := domain.ParseDateRange(c.Search.DateRange); err != nil {
		return fmt.Errorf("DATE_RANGE: %w", err)
	}
	if c.Browser.WaitTimeout <= 0 {
		return errors.New("BROWSER_WAIT_TIMEOUT must be positive")
	}
	if c.Browser.SettleDelay < 0 {
		return errors.New("BROWSER_SETTLE_DELAY cannot be negative")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("RETRY_ATTEMPTS must be positive")
	}
	if c.Retry.Delay < 0 {
		return errors.New("RETRY_DELAY cannot be negative")
	}
	if c.Mongo.Enabled && strings.TrimSpace(c.Mongo.URI) == "" {
		return errors.New("MONGO_URI is required when mongo is enabled")
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.Path) == "" {
		return errors.New("LEDGER_PATH is required when the ledger is enabled")
	}

	names := make(map[string]struct{}, len(c.Search.Keywords))
	for i, k := range c.Search.Keywords {
		if err := k.Validate(); err != nil {
			return fmt.Errorf("search.keywords[%d]: %w", i, err)
		}
		key := strings.ToLower(k.Name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("search.keywords[%d]: duplicate keyword %q", i, k.Name)
		}
		names[key] = struct{}{}
	}

	if d, _ := domain.ParseDelivery(c.Mail.Delivery); d == domain.DeliverySMTP {
		if strings.TrimSpace(c.Mail.SMTP.Host) == "" {
			return errors.New("SMTP_HOST is required for smtp delivery")
		}
		if c.Mail.SMTP.Port <= 0 {
			return errors.New("SMTP_PORT must be positive")
		}
	}
	return nil
}

// Credentials assembles the login and mail identities.
func (c *Config) Credentials() domain.Credentials {
	return domain.Credentials{
		Login:          c.HKU.Login,
		Password:       c.HKU.Password,
		SenderName:     c.Mail.SenderName,
		SenderEmail:    c.Mail.From,
		RecipientEmail: c.Mail.To,
	}
}

// Delivery returns the parsed delivery mode.
func (c *Config) Delivery() domain.Delivery {
	d, _ := domain.ParseDelivery(c.Mail.Delivery)
	return d
}

// DateRange returns the parsed default date range.
func (c *Config) DateRange() domain.DateRange {
	r, _ := domain.ParseDateRange(c.Search.DateRange)
	return r
}
