package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	RunMigrations     bool          `env:"RUN_MIGRATIONS" envDefault:"true"`

	JWTSecret    string   `env:"JWT_SECRET"`
	AllowOrigins []string `env:"ALLOW_ORIGINS" envDefault:"*" envSeparator:","`

	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogstashTCPAddr string `env:"LOGSTASH_TCP_ADDR"`

	MinIOEndpoint      string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey     string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey     string `env:"MINIO_SECRET_KEY"`
	MinIOUseSSL        bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinIOBucketReviews string `env:"MINIO_BUCKET_REVIEWS" envDefault:"reviews"`

	AttachmentMaxBytes int64  `env:"ATTACHMENT_MAX_BYTES" envDefault:"5242880"`
	VoteMaxAttempts    int    `env:"VOTE_MAX_ATTEMPTS" envDefault:"3"`
	SwaggerSpecPath    string `env:"SWAGGER_SPEC_PATH" envDefault:"docs/swagger.yaml"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.AllowOrigins = trimAll(cfg.AllowOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("missing env: DATABASE_URL"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("missing env: JWT_SECRET"))
	}
	if c.MinIOEnabled() && (c.MinIOAccessKey == "" || c.MinIOSecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT"))
	}
	if c.AttachmentMaxBytes <= 0 {
		errs = append(errs, errors.New("ATTACHMENT_MAX_BYTES must be positive"))
	}
	if c.VoteMaxAttempts <= 0 {
		errs = append(errs, errors.New("VOTE_MAX_ATTEMPTS must be positive"))
	}
	return errors.Join(errs...)
}

// MinIOEnabled reports whether attachments go to object storage instead of the review row.
func (c Config) MinIOEnabled() bool {
	return strings.TrimSpace(c.MinIOEndpoint) != ""
}

// requestOverheadBytes covers the JSON envelope and text fields around an attachment.
const requestOverheadBytes = 64 << 10

// MaxRequestBytes is the largest request body the API accepts: the base64
// encoding of ATTACHMENT_MAX_BYTES plus room for the rest of the payload.
func (c Config) MaxRequestBytes() int64 {
	encoded := (c.AttachmentMaxBytes + 2) / 3 * 4
	return encoded + requestOverheadBytes
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
