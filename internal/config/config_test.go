package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-lake/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WAREHOUSE_ACCOUNT", "WAREHOUSE_USER", "WAREHOUSE_PASSWORD", "WAREHOUSE_NAME",
		"WAREHOUSE_DATABASE", "WAREHOUSE_SCHEMA", "WAREHOUSE_ROLE", "WAREHOUSE_THREADS",
		"STAGE_KIND", "STAGE_LOCATION", "S3_KEY_ID", "S3_SECRET", "S3_ENDPOINT", "S3_REGION",
		"S3_BUCKET", "GCS_KEY_FILE_PATH", "GCS_BUCKET", "AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY",
		"AZURE_CONTAINER", "META_DB_PATH", "LISTEN_ADDR", "LOG_LEVEL", "ENV",
		"CORS_ALLOWED_ORIGINS", "DEPLOY_INSECURE_HOST_KEY", "DEPLOY_HOST", "DEPLOY_KEY_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "BRONZE", cfg.Warehouse.Schema)
	assert.Equal(t, domain.StageKindLocal, cfg.Stage.Kind)
	assert.Equal(t, ".stage/BRONZE_STAGE", cfg.Stage.Location)
	assert.Equal(t, "fraudlake_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "ec2-user", cfg.Deploy.User)
	assert.Equal(t, 4, cfg.Deploy.UploadConcurrency)
	assert.InDelta(t, 40.0, cfg.HighRiskMerchantScore, 0.001)
	assert.InDelta(t, 5000.0, cfg.HighValueAmount, 0.001)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "in-memory DuckDB")
}

func TestLoadFromEnv_WarehouseVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAREHOUSE_ACCOUNT", "acme")
	t.Setenv("WAREHOUSE_USER", "loader")
	t.Setenv("WAREHOUSE_PASSWORD", "s3cret")
	t.Setenv("WAREHOUSE_DATABASE", "/data/fraud.duckdb")
	t.Setenv("WAREHOUSE_SCHEMA", "RAW")
	t.Setenv("WAREHOUSE_THREADS", "4")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Warehouse.Account)
	assert.Equal(t, "loader", cfg.Warehouse.User)
	assert.Equal(t, "s3cret", cfg.Warehouse.Password)
	assert.Equal(t, "/data/fraud.duckdb", cfg.Warehouse.Database)
	assert.Equal(t, "RAW", cfg.Warehouse.Schema)
	assert.Equal(t, 4, cfg.Warehouse.Threads)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_InvalidThreads(t *testing.T) {
	clearEnv(t)
	t.Setenv("WAREHOUSE_THREADS", "many")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WAREHOUSE_THREADS")
}

func TestLoadFromEnv_StageValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name: "s3 complete",
			env: map[string]string{
				"STAGE_KIND": "s3", "S3_KEY_ID": "k", "S3_SECRET": "s",
				"S3_ENDPOINT": "fsn1.example.com", "S3_REGION": "fsn1", "S3_BUCKET": "fraud",
			},
		},
		{
			name:    "s3 missing bucket",
			env:     map[string]string{"STAGE_KIND": "s3", "S3_KEY_ID": "k"},
			wantErr: "S3_BUCKET",
		},
		{
			name:    "gcs missing key file",
			env:     map[string]string{"STAGE_KIND": "gcs", "GCS_BUCKET": "b"},
			wantErr: "GCS_KEY_FILE_PATH",
		},
		{
			name:    "azure missing container",
			env:     map[string]string{"STAGE_KIND": "AZURE", "AZURE_ACCOUNT_NAME": "a", "AZURE_ACCOUNT_KEY": "k"},
			wantErr: "AZURE_CONTAINER",
		},
		{
			name:    "unknown kind",
			env:     map[string]string{"STAGE_KIND": "ftp"},
			wantErr: `unsupported STAGE_KIND "ftp"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadFromEnv()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "BRONZE_STAGE", cfg.Stage.Location)
			assert.Equal(t, "path", cfg.Stage.S3URLStyle)
		})
	}
}

func TestLoadFromEnv_Production(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WAREHOUSE_DATABASE must be set in production")

	t.Setenv("WAREHOUSE_DATABASE", "fraud.duckdb")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS wildcard")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://fraud.example.com, ")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://fraud.example.com"}, cfg.CORSAllowedOrigins)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.SlogLevel().String())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# warehouse\n" +
		"WAREHOUSE_USER=\"loader\"\n" +
		"export WAREHOUSE_ROLE='ANALYST'\n" +
		"\n" +
		"WAREHOUSE_SCHEMA=FROM_FILE\n" +
		"not a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("WAREHOUSE_USER", "")
	t.Setenv("WAREHOUSE_ROLE", "")
	t.Setenv("WAREHOUSE_SCHEMA", "FROM_ENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loader", os.Getenv("WAREHOUSE_USER"))
	assert.Equal(t, "ANALYST", os.Getenv("WAREHOUSE_ROLE"))
	assert.Equal(t, "FROM_ENV", os.Getenv("WAREHOUSE_SCHEMA"), "environment wins over .env")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadJobs(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		jobs, err := LoadJobs("")
		require.NoError(t, err)
		require.Len(t, jobs, 6)
		assert.Equal(t, "CUSTOMERS", jobs[0].Table)
		assert.Equal(t, "data/fraud_labels.csv", jobs[5].Path)
	})

	t.Run("yaml file keeps order", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jobs.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`jobs:
  - table: MERCHANT_INFO
    path: data/merchant_info.csv
  - table: CUSTOMERS
    path: data/customers.csv
`), 0o600))
		jobs, err := LoadJobs(path)
		require.NoError(t, err)
		assert.Equal(t, []domain.IngestionJob{
			{Table: "MERCHANT_INFO", Path: "data/merchant_info.csv"},
			{Table: "CUSTOMERS", Path: "data/customers.csv"},
		}, jobs)
	})

	t.Run("duplicate table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jobs.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`jobs:
  - {table: A, path: a.csv}
  - {table: A, path: b.csv}
`), 0o600))
		_, err := LoadJobs(path)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "listed twice")
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jobs.yaml")
		require.NoError(t, os.WriteFile(path, []byte("jobs: []\n"), 0o600))
		_, err := LoadJobs(path)
		require.Error(t, err)
	})
}
