package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AWS        AWSConfig
	SportsData SportsDataConfig
	Storage    StorageConfig
	Catalog    CatalogConfig
	Query      QueryConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	LogLevel   string
}

type AWSConfig struct {
	Region string
	// EndpointURL overrides the service endpoint (localstack and friends).
	EndpointURL string

	StaticAccessKeyID     string
	StaticSecretAccessKey string
	StaticSessionToken    string
}

type SportsDataConfig struct {
	APIKey         string
	Endpoint       string
	TimeoutSeconds int
}

type StorageConfig struct {
	Backend     string
	Bucket      string
	Policy      string
	RawPrefix   string
	RawFileName string
	MinIO       MinIOConfig
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type CatalogConfig struct {
	Database string
	Table    string
}

type QueryConfig struct {
	OutputPrefix string
	SQL          string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	ExecutionTTLSeconds int
}

const (
	DefaultSportsDataEndpoint = "https://api.sportsdata.io/v3/nba/scores/json/Players"

	BackendS3    = "s3"
	BackendMinIO = "minio"

	PolicyCreate = "create"
	PolicyCheck  = "check"
)

var (
	once     sync.Once
	instance *Config
)

// Load reads the optional .env file and the process environment once and
// returns the shared configuration.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = New(viper.GetViper())
	})

	return instance
}

// New builds a Config from v after registering defaults and environment binding.
func New(v *viper.Viper) *Config {
	v.SetDefault("NBA_API_ENDPOINT", DefaultSportsDataEndpoint)
	v.SetDefault("NBA_API_TIMEOUT_SECONDS", 0)
	v.SetDefault("STORAGE_BACKEND", BackendS3)
	v.SetDefault("BUCKET_POLICY", PolicyCreate)
	v.SetDefault("RAW_PREFIX", "raw-data/")
	v.SetDefault("RAW_FILE_NAME", "nba_players.json")
	v.SetDefault("GLUE_DATABASE", "glue_nba_datalake")
	v.SetDefault("GLUE_TABLE", "nba_players")
	v.SetDefault("ATHENA_OUTPUT_PREFIX", "athena-results/")
	v.SetDefault("QUERY_SQL", "")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LEDGER_ENABLED", false)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "nba_datalake")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_EXECUTION_TTL_SECONDS", 7*24*3600)

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		AWS: AWSConfig{
			Region:      v.GetString("AWS_REGION"),
			EndpointURL: v.GetString("AWS_ENDPOINT_URL"),

			StaticAccessKeyID:     v.GetString("AWS_STATIC_ACCESS_KEY_ID"),
			StaticSecretAccessKey: v.GetString("AWS_STATIC_SECRET_ACCESS_KEY"),
			StaticSessionToken:    v.GetString("AWS_STATIC_SESSION_TOKEN"),
		},
		SportsData: SportsDataConfig{
			APIKey:         v.GetString("NBA_API_KEY"),
			Endpoint:       v.GetString("NBA_API_ENDPOINT"),
			TimeoutSeconds: v.GetInt("NBA_API_TIMEOUT_SECONDS"),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Bucket:      v.GetString("BUCKET_NAME"),
			Policy:      strings.ToLower(strings.TrimSpace(v.GetString("BUCKET_POLICY"))),
			RawPrefix:   normalizePrefix(v.GetString("RAW_PREFIX")),
			RawFileName: v.GetString("RAW_FILE_NAME"),
			MinIO: MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
		},
		Catalog: CatalogConfig{
			Database: v.GetString("GLUE_DATABASE"),
			Table:    v.GetString("GLUE_TABLE"),
		},
		Query: QueryConfig{
			OutputPrefix: normalizePrefix(v.GetString("ATHENA_OUTPUT_PREFIX")),
			SQL:          v.GetString("QUERY_SQL"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("LEDGER_ENABLED") || v.GetString("DATABASE_URL") != "",
			URL:      v.GetString("DATABASE_URL"),
			Driver:   v.GetString("DB_DRIVER"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:             v.GetBool("CACHE_ENABLED"),
			RedisURL:            v.GetString("REDIS_URL"),
			RedisHost:           v.GetString("REDIS_HOST"),
			RedisPort:           v.GetString("REDIS_PORT"),
			RedisPassword:       v.GetString("REDIS_PASSWORD"),
			RedisDB:             v.GetInt("REDIS_DB"),
			ExecutionTTLSeconds: v.GetInt("CACHE_EXECUTION_TTL_SECONDS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}

// Missing lists the required environment keys that are empty. Absent values
// are not fatal: they surface later as provider errors.
func (c *Config) Missing() []string {
	var missing []string
	if c.AWS.Region == "" {
		missing = append(missing, "AWS_REGION")
	}
	if c.SportsData.APIKey == "" {
		missing = append(missing, "NBA_API_KEY")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "BUCKET_NAME")
	}
	return missing
}

// KnownBucketPolicy reports whether policy is one the provisioner understands.
// Empty means the default.
func KnownBucketPolicy(policy string) bool {
	switch policy {
	case PolicyCreate, PolicyCheck, "":
		return true
	}
	return false
}

// AthenaOutputLocation is where query results are written.
func (c *Config) AthenaOutputLocation() string {
	return fmt.Sprintf("s3://%s/%s", c.Storage.Bucket, c.Query.OutputPrefix)
}

// DSN returns the ledger connection string, preferring DATABASE_URL.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
