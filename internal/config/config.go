package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Printer  PrinterConfig  `yaml:"printer"`
	Queue    QueueConfig    `yaml:"queue"`
	Shop     ShopConfig     `yaml:"shop"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Events   EventsConfig   `yaml:"events"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

type StoreConfig struct {
	Driver  string        `yaml:"driver"`
	Path    string        `yaml:"path"`
	DSN     string        `yaml:"dsn"`
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Table   string        `yaml:"table"`
	Timeout time.Duration `yaml:"timeout"`
}

type PrinterConfig struct {
	Transport         string        `yaml:"transport"`
	Name              string        `yaml:"name"`
	Media             string        `yaml:"media"`
	CPI               int           `yaml:"cpi"`
	LPPath            string        `yaml:"lp_path"`
	Address           string        `yaml:"address"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	Charset           string        `yaml:"charset"`
}

type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type ShopConfig struct {
	Name     string `yaml:"name"`
	Brand    string `yaml:"brand"`
	Currency string `yaml:"currency"`
	Width    int    `yaml:"width"`
	ThankYou string `yaml:"thank_you"`
}

type ServerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	PasswordHash   string        `yaml:"password_hash"`
	JWTSecret      string        `yaml:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WebhookEndpoint struct {
	URL    string   `yaml:"url"`
	Secret string   `yaml:"secret"`
	Events []string `yaml:"events"`
}

type WebhooksConfig struct {
	Endpoints   []WebhookEndpoint `yaml:"endpoints"`
	RetryCount  int               `yaml:"retry_count"`
	RetryDelay  time.Duration     `yaml:"retry_delay"`
	Timeout     time.Duration     `yaml:"timeout"`
	WorkerCount int               `yaml:"worker_count"`
	QueueSize   int               `yaml:"queue_size"`
}

type EventsConfig struct {
	RedisURL       string `yaml:"redis_url"`
	RedisChannel   string `yaml:"redis_channel"`
	AMQPURL        string `yaml:"amqp_url"`
	AMQPExchange   string `yaml:"amqp_exchange"`
	AMQPRoutingKey string `yaml:"amqp_routing_key"`
}

type ArchiveConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3UseSSL    bool   `yaml:"s3_use_ssl"`
}

func defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:  "sqlite",
			Path:    "./data/printworker.db",
			Table:   "print_jobs",
			Timeout: 10 * time.Second,
		},
		Printer: PrinterConfig{
			Transport:         "spooler",
			Name:              "XP-58",
			Media:             "Custom.58x210mm",
			CPI:               12,
			LPPath:            "lp",
			ConnectionTimeout: 10 * time.Second,
			Charset:           "utf-8",
		},
		Queue: QueueConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    10,
		},
		Shop: ShopConfig{
			Name:     "SHOP",
			Brand:    "SHOP",
			Currency: "₸",
			Width:    32,
			ThankYou: "Thank you for your purchase!",
		},
		Server: ServerConfig{
			Enabled:      false,
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Webhooks: WebhooksConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 2,
			QueueSize:   100,
		},
		Events: EventsConfig{
			RedisChannel:   "printworker:jobs",
			AMQPExchange:   "printworker.events",
			AMQPRoutingKey: "print.job",
		},
		Archive: ArchiveConfig{
			Dir: "./data/documents",
		},
	}
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() Config {
	return *defaults()
}

// Load reads the YAML file at configPath over the defaults and then applies
// PRINTWORKER_* environment overrides. A missing file is not an error.
func Load(configPath string) (Config, error) {
	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	return *cfg, nil
}

// LoadEnvFile loads .env.local from the working directory or its parent.
func LoadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"PRINTWORKER_STORE_DRIVER":        &c.Store.Driver,
		"PRINTWORKER_STORE_PATH":          &c.Store.Path,
		"PRINTWORKER_STORE_DSN":           &c.Store.DSN,
		"PRINTWORKER_STORE_URL":           &c.Store.URL,
		"PRINTWORKER_STORE_API_KEY":       &c.Store.APIKey,
		"PRINTWORKER_PRINTER_TRANSPORT":   &c.Printer.Transport,
		"PRINTWORKER_PRINTER_NAME":        &c.Printer.Name,
		"PRINTWORKER_PRINTER_MEDIA":       &c.Printer.Media,
		"PRINTWORKER_PRINTER_ADDRESS":     &c.Printer.Address,
		"PRINTWORKER_PRINTER_CHARSET":     &c.Printer.Charset,
		"PRINTWORKER_LP_PATH":             &c.Printer.LPPath,
		"PRINTWORKER_SHOP_NAME":           &c.Shop.Name,
		"PRINTWORKER_SHOP_BRAND":          &c.Shop.Brand,
		"PRINTWORKER_ADMIN_PASSWORD_HASH": &c.Server.PasswordHash,
		"PRINTWORKER_JWT_SECRET":          &c.Server.JWTSecret,
		"PRINTWORKER_LOG_LEVEL":           &c.Logging.Level,
		"PRINTWORKER_LOG_FORMAT":          &c.Logging.Format,
		"PRINTWORKER_REDIS_URL":           &c.Events.RedisURL,
		"PRINTWORKER_AMQP_URL":            &c.Events.AMQPURL,
		"PRINTWORKER_ARCHIVE_BACKEND":     &c.Archive.Backend,
		"PRINTWORKER_ARCHIVE_DIR":         &c.Archive.Dir,
		"PRINTWORKER_S3_ENDPOINT":         &c.Archive.S3Endpoint,
		"PRINTWORKER_S3_BUCKET":           &c.Archive.S3Bucket,
		"PRINTWORKER_S3_ACCESS_KEY":       &c.Archive.S3AccessKey,
		"PRINTWORKER_S3_SECRET_KEY":       &c.Archive.S3SecretKey,
	}
	for key, dst := range strVars {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"PRINTWORKER_PRINTER_CPI": &c.Printer.CPI,
		"PRINTWORKER_BATCH_SIZE":  &c.Queue.BatchSize,
		"PRINTWORKER_SHOP_WIDTH":  &c.Shop.Width,
		"PRINTWORKER_PORT":        &c.Server.Port,
	}
	for key, dst := range intVars {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("PRINTWORKER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PRINTWORKER_POLL_INTERVAL: %w", err)
		}
		c.Queue.PollInterval = d
	}

	if v := os.Getenv("PRINTWORKER_SERVER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PRINTWORKER_SERVER_ENABLED: %w", err)
		}
		c.Server.Enabled = enabled
	}

	if v := os.Getenv("PRINTWORKER_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}

	return nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for the postgres driver")
		}
	case "postgrest":
		if c.Store.URL == "" {
			return fmt.Errorf("store url is required for the postgrest driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (valid: sqlite, postgres, postgrest)", c.Store.Driver)
	}

	if c.Store.Table == "" {
		return fmt.Errorf("store table is required")
	}

	switch c.Printer.Transport {
	case "spooler":
		if c.Printer.Name == "" {
			return fmt.Errorf("printer name is required for the spooler transport")
		}
		if c.Printer.LPPath == "" {
			return fmt.Errorf("lp path is required for the spooler transport")
		}
	case "raw":
		if c.Printer.Address == "" {
			return fmt.Errorf("printer address is required for the raw transport")
		}
	default:
		return fmt.Errorf("invalid printer transport: %s (valid: spooler, raw)", c.Printer.Transport)
	}

	if c.Printer.CPI < 0 {
		return fmt.Errorf("printer cpi must be non-negative")
	}

	if c.Printer.Charset != "utf-8" && c.Printer.Charset != "cp866" {
		return fmt.Errorf("invalid printer charset: %s (valid: utf-8, cp866)", c.Printer.Charset)
	}

	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}

	if c.Shop.Width < 8 {
		return fmt.Errorf("shop width must be at least 8 characters, got %d", c.Shop.Width)
	}

	if c.Server.Enabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
		}
		if c.Server.JWTSecret == "" {
			return fmt.Errorf("jwt secret is required when the server is enabled")
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":  true,
		"text":  true,
		"plain": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text, plain)", c.Logging.Format)
	}

	for i, ep := range c.Webhooks.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("webhook endpoint %d: url is required", i)
		}
	}

	switch c.Archive.Backend {
	case "":
	case "dir":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive dir is required for the dir backend")
		}
	case "s3":
		if c.Archive.S3Endpoint == "" || c.Archive.S3Bucket == "" {
			return fmt.Errorf("archive s3 endpoint and bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid archive backend: %s (valid: dir, s3)", c.Archive.Backend)
	}

	return nil
}
