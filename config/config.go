package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"120"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version, 0 migrates up to the latest
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	// Run migrations on serve
	DatabaseMigrateOnStart bool `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Auth Enabled - when false, the X-User-ID and X-User-Email headers name the actor
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"false"`
	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`
	// Roles allowed to run directory commands
	AuthOperatorRoles []string `env:"AUTH_OPERATOR_ROLES" env-default:"directory-operator,admin"`

	// Redis host, empty disables import locks and shared rate limits
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated), empty disables directory events
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:""`
	// Kafka topic for directory events
	KafkaDirectoryTopic string `env:"KAFKA_DIRECTORY_TOPIC" env-default:"directory-events"`

	// Places provider settings
	// API key, falls back to the places_provider settings row
	PlacesAPIKey         string        `env:"PLACES_API_KEY" env-default:""`
	PlacesBaseURL        string        `env:"PLACES_BASE_URL" env-default:"https://places.googleapis.com/v1"`
	PlacesRequestTimeout time.Duration `env:"PLACES_REQUEST_TIMEOUT" env-default:"15s"`
	PlacesMaxAttempts    int           `env:"PLACES_MAX_ATTEMPTS" env-default:"3"`
	PlacesRetryDelay     time.Duration `env:"PLACES_RETRY_DELAY" env-default:"500ms"`
	PlacesLanguageCode   string        `env:"PLACES_LANGUAGE_CODE" env-default:"en"`
	PlacesRegionCode     string        `env:"PLACES_REGION_CODE" env-default:"AE"`
	// Requests allowed per PLACES_RATE_WINDOW across all instances
	PlacesRateLimit   int           `env:"PLACES_RATE_LIMIT" env-default:"600"`
	PlacesRateWindow  time.Duration `env:"PLACES_RATE_WINDOW" env-default:"1m"`
	PlacesRateMaxWait time.Duration `env:"PLACES_RATE_MAX_WAIT" env-default:"30s"`

	// Photo storage settings
	StorageBucket          string        `env:"STORAGE_BUCKET" env-default:""`
	StorageCredentialsJSON string        `env:"STORAGE_CREDENTIALS_JSON" env-default:""`
	StoragePrefix          string        `env:"STORAGE_PREFIX" env-default:"clinics"`
	StoragePublicHost      string        `env:"STORAGE_PUBLIC_HOST" env-default:"storage.googleapis.com"`
	StorageMaxWidthPx      int           `env:"STORAGE_MAX_WIDTH_PX" env-default:"1600"`
	StorageUploadTimeout   time.Duration `env:"STORAGE_UPLOAD_TIMEOUT" env-default:"30s"`

	// Import settings
	ImportRadiusKm      float64       `env:"IMPORT_RADIUS_KM" env-default:"10"`
	ImportWidenFactor   float64       `env:"IMPORT_WIDEN_FACTOR" env-default:"1.5"`
	ImportConcurrency   int           `env:"IMPORT_CONCURRENCY" env-default:"1"`
	ImportLockTTL       time.Duration `env:"IMPORT_LOCK_TTL" env-default:"2m"`
	SearchCountrySuffix string        `env:"SEARCH_COUNTRY_SUFFIX" env-default:"UAE"`
	CountryMarkers      []string      `env:"ADDRESS_COUNTRY_MARKERS" env-default:"united arab emirates,uae"`
	PhoneDefaultRegion  string        `env:"PHONE_DEFAULT_REGION" env-default:"AE"`

	// Recovery settings
	RecoveryRadiusKm       float64       `env:"RECOVERY_RADIUS_KM" env-default:"30"`
	RecoveryLogPageSize    int           `env:"RECOVERY_LOG_PAGE_SIZE" env-default:"1000"`
	RecoveryExistenceChunk int           `env:"RECOVERY_EXISTENCE_CHUNK" env-default:"200"`
	RecoveryBatchSize      int           `env:"RECOVERY_BATCH_SIZE" env-default:"10"`
	RecoveryPause          time.Duration `env:"RECOVERY_PAUSE" env-default:"500ms"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read .env file")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http" {
		return errors.Errorf("OTLP_PROTOCOL must be grpc or http, got %q", c.OTLPProtocol)
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set")
	}
	if c.ImportRadiusKm <= 0 || c.RecoveryRadiusKm <= 0 {
		return errors.New("IMPORT_RADIUS_KM and RECOVERY_RADIUS_KM must be positive")
	}
	if c.ImportWidenFactor < 1 {
		return errors.New("IMPORT_WIDEN_FACTOR must be at least 1")
	}
	return nil
}
