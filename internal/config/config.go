package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"cruise-price-tracker/internal/logging"
)

// DefaultTargetURL is the booking page tracked when no crawler.target_url is configured.
const DefaultTargetURL = "https://www.royalcaribbean.com/room-selection/room-location?groupId=UT04PCN-4069341576" +
	"&packageCode=UT4BH269&sailDate=2026-02-16&country=USA&selectedCurrencyCode=USD" +
	"&shipCode=UT&cabinClassType=BALCONY&roomIndex=0&r0a=2&r0c=2&r0b=n&r0r=n&r0s=n" +
	"&r0q=n&r0t=n&r0d=BALCONY&r0D=y&rgVisited=true&r0C=y&r0e=D&r0f=3D&r0J=n"

const (
	minInterval = 5 * time.Minute
	maxInterval = 24 * time.Hour
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// HTTPConfig covers the API listener.
type HTTPConfig struct {
	Addr               string        `mapstructure:"addr"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CrawlRatePerMinute float64       `mapstructure:"crawl_rate_per_minute"`
	CrawlBurst         int           `mapstructure:"crawl_burst"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
}

// SchedulerConfig governs crawl cadence.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// CrawlerConfig covers booking page acquisition.
type CrawlerConfig struct {
	TargetURL string        `mapstructure:"target_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Locale    string        `mapstructure:"locale"`
}

// AlertingConfig defines outbound email delivery.
type AlertingConfig struct {
	Provider  string         `mapstructure:"provider"`
	FromEmail string         `mapstructure:"from_email"`
	FromName  string         `mapstructure:"from_name"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	SendGrid  SendGridConfig `mapstructure:"sendgrid"`
	SMTP      SMTPConfig     `mapstructure:"smtp"`
}

// SendGridConfig holds the transactional email API credential.
type SendGridConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SMTPConfig is used when alerting.provider is "smtp".
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRUISEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// CRAWL_INTERVAL_MINUTES and REQUEST_TIMEOUT_MS carry bare integers.
	if minutes := v.GetInt("legacy.crawl_interval_minutes"); minutes > 0 {
		cfg.Scheduler.Interval = time.Duration(minutes) * time.Minute
	}
	if ms := v.GetInt("legacy.request_timeout_ms"); ms > 0 {
		cfg.Crawler.Timeout = time.Duration(ms) * time.Millisecond
	}
	if cfg.Alerting.FromName == "" {
		cfg.Alerting.FromName = cfg.App.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the environment variable names of earlier deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"crawler.target_url":            {"CRUISEWATCH_CRAWLER_TARGET_URL", "TARGET_URL"},
		"crawler.user_agent":            {"CRUISEWATCH_CRAWLER_USER_AGENT", "CRAWLER_USER_AGENT"},
		"crawler.locale":                {"CRUISEWATCH_CRAWLER_LOCALE", "CRAWLER_LOCALE"},
		"database.dsn":                  {"CRUISEWATCH_DATABASE_DSN", "DATABASE_URL"},
		"scheduler.enabled":             {"CRUISEWATCH_SCHEDULER_ENABLED", "ENABLE_SCHEDULER"},
		"app.timezone":                  {"CRUISEWATCH_APP_TIMEZONE", "SCHEDULER_TIMEZONE"},
		"alerting.sendgrid.api_key":     {"CRUISEWATCH_ALERTING_SENDGRID_API_KEY", "SENDGRID_API_KEY"},
		"alerting.from_email":           {"CRUISEWATCH_ALERTING_FROM_EMAIL", "NOTIFICATION_FROM_EMAIL"},
		"legacy.crawl_interval_minutes": {"CRAWL_INTERVAL_MINUTES"},
		"legacy.request_timeout_ms":     {"REQUEST_TIMEOUT_MS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Cruise Price Tracker")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "180s")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.crawl_rate_per_minute", 6.0)
	v.SetDefault("http.crawl_burst", 2)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.connect_attempts", 15)
	v.SetDefault("database.connect_backoff", "2s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "60m")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63727569))

	v.SetDefault("crawler.target_url", DefaultTargetURL)
	v.SetDefault("crawler.timeout", "120s")
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("crawler.locale", "en-US")

	v.SetDefault("alerting.provider", "sendgrid")
	v.SetDefault("alerting.from_email", "alerts@example.com")
	v.SetDefault("alerting.from_name", "")
	v.SetDefault("alerting.timeout", "15s")
	v.SetDefault("alerting.sendgrid.api_key", "")
	v.SetDefault("alerting.sendgrid.base_url", "https://api.sendgrid.com")
	v.SetDefault("alerting.smtp.host", "")
	v.SetDefault("alerting.smtp.port", 587)
	v.SetDefault("alerting.smtp.username", "")
	v.SetDefault("alerting.smtp.password", "")

	v.SetDefault("export.max_data_points", 2000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval < minInterval || c.Scheduler.Interval > maxInterval {
		return fmt.Errorf("scheduler.interval must be between %s and %s", minInterval, maxInterval)
	}
	if c.Crawler.TargetURL == "" {
		return fmt.Errorf("crawler.target_url must be configured")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout must be greater than zero")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.HTTP.CrawlRatePerMinute < 0 {
		return fmt.Errorf("http.crawl_rate_per_minute cannot be negative")
	}
	switch strings.ToLower(c.Alerting.Provider) {
	case "sendgrid":
	case "smtp":
		if c.Alerting.SMTP.Port <= 0 {
			return fmt.Errorf("alerting.smtp.port must be greater than zero")
		}
	default:
		return fmt.Errorf("alerting.provider must be sendgrid or smtp, got %q", c.Alerting.Provider)
	}
	return nil
}

// Location resolves app.timezone, used for day/month chart buckets.
func (c *Config) Location() (*time.Location, error) {
	name := c.App.Timezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("app.timezone %q: %w", name, err)
	}
	return loc, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
