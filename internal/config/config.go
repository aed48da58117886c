// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"fraud-lake/internal/domain"
)

// WarehouseConfig holds the connection parameters for the warehouse session.
// Values are opaque strings; only Database and Schema shape the DuckDB DSN.
type WarehouseConfig struct {
	Account  string // WAREHOUSE_ACCOUNT
	User     string // WAREHOUSE_USER, recorded as the run principal
	Password string // WAREHOUSE_PASSWORD, used as the MotherDuck token for md: databases
	Name     string // WAREHOUSE_NAME, informational
	Database string // WAREHOUSE_DATABASE: DuckDB file path, "md:<db>", or empty for in-memory
	Schema   string // WAREHOUSE_SCHEMA (default "BRONZE")
	Role     string // WAREHOUSE_ROLE, informational

	Threads     int    // WAREHOUSE_THREADS (0 = DuckDB default)
	MemoryLimit string // WAREHOUSE_MEMORY_LIMIT, e.g. "4GB"

	// Optional DuckLake catalog. When both are set the catalog is attached
	// as "lake" and becomes the default database.
	LakeMetaDBPath string // LAKE_META_DB_PATH
	LakeDataPath   string // LAKE_DATA_PATH
}

// HasLake returns true when a DuckLake catalog should be attached.
func (w *WarehouseConfig) HasLake() bool {
	return w.LakeMetaDBPath != "" && w.LakeDataPath != ""
}

// StageConfig selects and configures the object storage used as the stage.
type StageConfig struct {
	Kind     string // STAGE_KIND: local (default), s3, gcs, azure
	Location string // STAGE_LOCATION: directory for local, key prefix for remote stages

	S3KeyID    string // S3_KEY_ID
	S3Secret   string // S3_SECRET
	S3Endpoint string // S3_ENDPOINT (host, no scheme)
	S3Region   string // S3_REGION
	S3Bucket   string // S3_BUCKET
	S3URLStyle string // S3_URL_STYLE: path (default) or vhost

	GCSKeyFilePath string // GCS_KEY_FILE_PATH
	GCSBucket      string // GCS_BUCKET

	AzureAccountName string // AZURE_ACCOUNT_NAME
	AzureAccountKey  string // AZURE_ACCOUNT_KEY
	AzureContainer   string // AZURE_CONTAINER
}

// Validate checks that the selected stage kind has what it needs.
func (s *StageConfig) Validate() error {
	switch s.Kind {
	case domain.StageKindLocal:
		if s.Location == "" {
			return fmt.Errorf("STAGE_LOCATION is required for the local stage")
		}
	case domain.StageKindS3:
		if s.S3KeyID == "" || s.S3Secret == "" || s.S3Endpoint == "" || s.S3Region == "" || s.S3Bucket == "" {
			return fmt.Errorf("S3_KEY_ID, S3_SECRET, S3_ENDPOINT, S3_REGION and S3_BUCKET are required for the s3 stage")
		}
	case domain.StageKindGCS:
		if s.GCSKeyFilePath == "" || s.GCSBucket == "" {
			return fmt.Errorf("GCS_KEY_FILE_PATH and GCS_BUCKET are required for the gcs stage")
		}
	case domain.StageKindAzure:
		if s.AzureAccountName == "" || s.AzureAccountKey == "" || s.AzureContainer == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER are required for the azure stage")
		}
	default:
		return fmt.Errorf("unsupported STAGE_KIND %q: use local, s3, gcs or azure", s.Kind)
	}
	return nil
}

// DeployConfig holds SSH deployment settings.
type DeployConfig struct {
	Host              string // DEPLOY_HOST (host or host:port)
	User              string // DEPLOY_USER (default "ec2-user")
	KeyPath           string // DEPLOY_KEY_PATH, private key file
	KnownHostsPath    string // DEPLOY_KNOWN_HOSTS (default ~/.ssh/known_hosts)
	InsecureHostKey   bool   // DEPLOY_INSECURE_HOST_KEY accepts any host key
	ProjectDir        string // DEPLOY_PROJECT_DIR (default ".")
	RemoteDir         string // DEPLOY_REMOTE_DIR (default "financial-fraud-lake")
	UploadConcurrency int    // DEPLOY_UPLOAD_CONCURRENCY (default 4)
}

// Validate checks that the deploy target is configured.
func (d *DeployConfig) Validate() error {
	if d.Host == "" || d.KeyPath == "" {
		return fmt.Errorf("DEPLOY_HOST and DEPLOY_KEY_PATH must be set")
	}
	return nil
}

// Config holds the configuration for the ingestion tooling and the query API.
type Config struct {
	Warehouse WarehouseConfig
	Stage     StageConfig
	Deploy    DeployConfig

	MetaDBPath string // path to SQLite run-history file (default "fraudlake_meta.sqlite")
	JobsFile   string // JOBS_FILE: optional YAML file overriding the default bronze jobs
	SilverDir  string // SILVER_DIR (default "silver")
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 20)
	RateLimitBurst int     // burst capacity (default 40)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Risk thresholds
	HighRiskMerchantScore float64 // RISK_MERCHANT_SCORE (default 40)
	HighValueAmount       float64 // RISK_HIGH_VALUE_AMOUNT (default 5000)

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Warehouse: WarehouseConfig{
			Account:        os.Getenv("WAREHOUSE_ACCOUNT"),
			User:           os.Getenv("WAREHOUSE_USER"),
			Password:       os.Getenv("WAREHOUSE_PASSWORD"),
			Name:           os.Getenv("WAREHOUSE_NAME"),
			Database:       os.Getenv("WAREHOUSE_DATABASE"),
			Schema:         os.Getenv("WAREHOUSE_SCHEMA"),
			Role:           os.Getenv("WAREHOUSE_ROLE"),
			MemoryLimit:    os.Getenv("WAREHOUSE_MEMORY_LIMIT"),
			LakeMetaDBPath: os.Getenv("LAKE_META_DB_PATH"),
			LakeDataPath:   os.Getenv("LAKE_DATA_PATH"),
		},
		Stage: StageConfig{
			Kind:             strings.ToLower(os.Getenv("STAGE_KIND")),
			Location:         os.Getenv("STAGE_LOCATION"),
			S3KeyID:          os.Getenv("S3_KEY_ID"),
			S3Secret:         os.Getenv("S3_SECRET"),
			S3Endpoint:       os.Getenv("S3_ENDPOINT"),
			S3Region:         os.Getenv("S3_REGION"),
			S3Bucket:         os.Getenv("S3_BUCKET"),
			S3URLStyle:       os.Getenv("S3_URL_STYLE"),
			GCSKeyFilePath:   os.Getenv("GCS_KEY_FILE_PATH"),
			GCSBucket:        os.Getenv("GCS_BUCKET"),
			AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
			AzureContainer:   os.Getenv("AZURE_CONTAINER"),
		},
		Deploy: DeployConfig{
			Host:            os.Getenv("DEPLOY_HOST"),
			User:            os.Getenv("DEPLOY_USER"),
			KeyPath:         os.Getenv("DEPLOY_KEY_PATH"),
			KnownHostsPath:  os.Getenv("DEPLOY_KNOWN_HOSTS"),
			InsecureHostKey: parseBoolEnvDefault("DEPLOY_INSECURE_HOST_KEY", false),
			ProjectDir:      os.Getenv("DEPLOY_PROJECT_DIR"),
			RemoteDir:       os.Getenv("DEPLOY_REMOTE_DIR"),
		},
		MetaDBPath: os.Getenv("META_DB_PATH"),
		JobsFile:   os.Getenv("JOBS_FILE"),
		SilverDir:  os.Getenv("SILVER_DIR"),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
	}

	if v := os.Getenv("WAREHOUSE_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("WAREHOUSE_THREADS must be a non-negative integer, got %q", v)
		}
		cfg.Warehouse.Threads = n
	}
	if v := os.Getenv("DEPLOY_UPLOAD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Deploy.UploadConcurrency = n
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// Risk thresholds
	if v := os.Getenv("RISK_MERCHANT_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HighRiskMerchantScore = f
		}
	}
	if v := os.Getenv("RISK_HIGH_VALUE_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HighValueAmount = f
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.Warehouse.Schema == "" {
		cfg.Warehouse.Schema = "BRONZE"
	}
	if cfg.Stage.Kind == "" {
		cfg.Stage.Kind = domain.StageKindLocal
	}
	if cfg.Stage.Kind == domain.StageKindLocal && cfg.Stage.Location == "" {
		cfg.Stage.Location = ".stage/BRONZE_STAGE"
	}
	if cfg.Stage.Kind != domain.StageKindLocal && cfg.Stage.Location == "" {
		cfg.Stage.Location = "BRONZE_STAGE"
	}
	if cfg.Stage.S3URLStyle == "" {
		cfg.Stage.S3URLStyle = "path"
	}
	if cfg.Deploy.User == "" {
		cfg.Deploy.User = "ec2-user"
	}
	if cfg.Deploy.ProjectDir == "" {
		cfg.Deploy.ProjectDir = "."
	}
	if cfg.Deploy.RemoteDir == "" {
		cfg.Deploy.RemoteDir = "financial-fraud-lake"
	}
	if cfg.Deploy.UploadConcurrency <= 0 {
		cfg.Deploy.UploadConcurrency = 4
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "fraudlake_meta.sqlite"
	}
	if cfg.SilverDir == "" {
		cfg.SilverDir = "silver"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 40
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.HighRiskMerchantScore == 0 {
		cfg.HighRiskMerchantScore = domain.DefaultHighRiskMerchantScore
	}
	if cfg.HighValueAmount == 0 {
		cfg.HighValueAmount = domain.DefaultHighValueAmount
	}

	if err := cfg.Stage.Validate(); err != nil {
		return nil, err
	}
	if cfg.Warehouse.Database == "" {
		cfg.Warnings = append(cfg.Warnings, "WAREHOUSE_DATABASE not set: using an in-memory DuckDB, bronze tables will not outlive the process")
	}
	if cfg.Deploy.InsecureHostKey {
		cfg.Warnings = append(cfg.Warnings, "DEPLOY_INSECURE_HOST_KEY is set: SSH host keys will not be verified")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.Warehouse.Database == "" {
			return nil, fmt.Errorf("WAREHOUSE_DATABASE must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.Deploy.InsecureHostKey {
			return nil, fmt.Errorf("DEPLOY_INSECURE_HOST_KEY is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
