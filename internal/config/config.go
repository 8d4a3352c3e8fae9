package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"fbs/internal/models"
	"fbs/internal/timeutil"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Booking    BookingConfig    `yaml:"booking"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Sheets     SheetsConfig     `yaml:"google_sheets"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	Path           string        `yaml:"path"`
	PostgresURL    string        `yaml:"postgres_url"`
	MaxConnections int           `yaml:"max_connections"`
	TxTimeout      time.Duration `yaml:"tx_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type APIGRPCConfig struct {
	Enabled bool         `yaml:"enabled"`
	Port    int          `yaml:"port"`
	TLS     APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig guards the gRPC surface with static client keys.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	Users           []models.User `yaml:"users"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	LockoutAttempts int           `yaml:"lockout_attempts"`
	LockoutWindow   time.Duration `yaml:"lockout_window"`
}

type BookingConfig struct {
	BusinessStart string `yaml:"business_start"`
	BusinessEnd   string `yaml:"business_end"`
	SlotDuration  int    `yaml:"slot_duration"`
	SlotStep      int    `yaml:"slot_step"`
	GlimpseLimit  int    `yaml:"glimpse_limit"`
	MaxGlimpseIDs int    `yaml:"max_glimpse_ids"`
}

// CatalogConfig overrides the generated default catalog when Facilities is non-empty.
type CatalogConfig struct {
	Facilities []FacilityConfig `yaml:"facilities"`
}

type FacilityConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Building string `yaml:"building"`
	Capacity int    `yaml:"capacity"`
	Inactive bool   `yaml:"inactive"`
}

func (c CatalogConfig) ToFacilities() []models.Facility {
	out := make([]models.Facility, 0, len(c.Facilities))
	for _, f := range c.Facilities {
		out = append(out, models.Facility{
			ID:       f.ID,
			Name:     f.Name,
			Building: f.Building,
			Capacity: f.Capacity,
			Active:   !f.Inactive,
		})
	}
	return out
}

// SheetsConfig configures the spreadsheet mirror of created bookings.
type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	QueueSize       int    `yaml:"queue_size"`
}

// TelegramConfig configures new-booking notifications to facility managers.
type TelegramConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	Debug     bool    `yaml:"debug"`
	Managers  []int64 `yaml:"managers"`
	QueueSize int     `yaml:"queue_size"`
}

type KafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	ClientID      string        `yaml:"client_id"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	QueueSize     int           `yaml:"queue_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	MaxFacilities int `yaml:"max_facilities"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(expandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes only the ${VAR} form, leaving bare '$' intact for bcrypt hashes.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite driver")
		}
	case DriverPostgres:
		if c.Database.PostgresURL == "" {
			return errors.New("database postgres_url is required for postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if err := c.Booking.Validate(); err != nil {
		return err
	}

	if err := ValidateUsers(c.Auth.Users); err != nil {
		return err
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka brokers and topic are required when kafka is enabled")
	}

	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return errors.New("google_sheets credentials_file and spreadsheet_id are required when enabled")
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || len(c.Telegram.Managers) == 0) {
		return errors.New("telegram bot_token and managers are required when enabled")
	}

	return ValidateFacilities(c.Catalog.Facilities)
}

func (b BookingConfig) Validate() error {
	start, ok := timeutil.ParseTime(b.BusinessStart)
	if !ok {
		return fmt.Errorf("invalid booking business_start %q", b.BusinessStart)
	}
	end, ok := timeutil.ParseTime(b.BusinessEnd)
	if !ok {
		return fmt.Errorf("invalid booking business_end %q", b.BusinessEnd)
	}
	if end <= start {
		return errors.New("booking business_end must be after business_start")
	}
	if b.SlotDuration < 1 || b.SlotStep < 1 {
		return errors.New("booking slot_duration and slot_step must be positive")
	}
	return nil
}

func ValidateFacilities(facilities []FacilityConfig) error {
	ids := make(map[string]bool)
	for _, f := range facilities {
		if f.ID == "" {
			return fmt.Errorf("facility '%s' has empty ID", f.Name)
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate facility ID found: %s", f.ID)
		}
		if f.Capacity < 1 {
			return fmt.Errorf("facility %s has invalid capacity %d", f.ID, f.Capacity)
		}
		ids[f.ID] = true
	}
	return nil
}

func ValidateUsers(users []models.User) error {
	names := make(map[string]bool)
	for _, u := range users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("user %q requires username and password_hash", u.ID)
		}
		if names[u.Username] {
			return fmt.Errorf("duplicate username found: %s", u.Username)
		}
		names[u.Username] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fbs"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "data/fbs.sqlite"
	}
	if c.Database.TxTimeout == 0 {
		c.Database.TxTimeout = 5 * time.Second
	}

	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadHeaderTimeout == 0 {
		c.API.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 12 * time.Hour
	}
	if c.Auth.LockoutAttempts == 0 {
		c.Auth.LockoutAttempts = 5
	}
	if c.Auth.LockoutWindow == 0 {
		c.Auth.LockoutWindow = 15 * time.Minute
	}

	if c.Booking.BusinessStart == "" {
		c.Booking.BusinessStart = models.DefaultBusinessStart
	}
	if c.Booking.BusinessEnd == "" {
		c.Booking.BusinessEnd = models.DefaultBusinessEnd
	}
	if c.Booking.SlotDuration == 0 {
		c.Booking.SlotDuration = models.DefaultSlotDuration
	}
	if c.Booking.SlotStep == 0 {
		c.Booking.SlotStep = models.DefaultSlotStep
	}
	if c.Booking.GlimpseLimit == 0 {
		c.Booking.GlimpseLimit = models.DefaultGlimpseLimit
	}
	if c.Booking.MaxGlimpseIDs == 0 {
		c.Booking.MaxGlimpseIDs = 50
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "fbs.bookings"
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = c.App.Name
	}
	if c.Kafka.DeadLetterKey == "" {
		c.Kafka.DeadLetterKey = "fbs:events:deadletter"
	}
	if c.Kafka.MaxRetries == 0 {
		c.Kafka.MaxRetries = 5
	}
	if c.Kafka.InitialDelay == 0 {
		c.Kafka.InitialDelay = time.Second
	}
	if c.Kafka.MaxDelay == 0 {
		c.Kafka.MaxDelay = 30 * time.Second
	}
	if c.Kafka.QueueSize == 0 {
		c.Kafka.QueueSize = models.EventQueueSize
	}

	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Bookings"
	}
	if c.Sheets.QueueSize == 0 {
		c.Sheets.QueueSize = models.EventQueueSize
	}

	if c.Telegram.QueueSize == 0 {
		c.Telegram.QueueSize = models.EventQueueSize
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.MaxFacilities == 0 {
		c.Exports.MaxFacilities = 50
	}
}
