// Package engine owns the DuckDB warehouse session used by bronze ingestion,
// the silver pipeline and the query tools.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fraud-lake/internal/config"
	"fraud-lake/internal/ddl"
	"fraud-lake/internal/domain"
)

// StageSecretName is the DuckDB secret that grants read access to a remote stage.
const StageSecretName = "bronze_stage"

// LakeCatalog is the name the DuckLake catalog is attached under.
const LakeCatalog = "lake"

// Conn is satisfied by *sql.DB and *sql.Conn.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// InstallExtensions installs and loads DuckDB extensions by name.
func InstallExtensions(ctx context.Context, conn Conn, names ...string) error {
	for _, name := range names {
		stmt, err := ddl.InstallExtension(name)
		if err != nil {
			return fmt.Errorf("build DDL: %w", err)
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("extension setup (%s): %w", name, err)
		}
	}
	return nil
}

// stageExtensions returns the extensions DuckDB needs to read from a stage kind.
func stageExtensions(kind string) []string {
	switch kind {
	case domain.StageKindS3, domain.StageKindGCS:
		return []string{"httpfs"}
	case domain.StageKindAzure:
		return []string{"azure"}
	default:
		return nil
	}
}

// CreateStageSecret creates the DuckDB secret for a remote stage. Local
// stages need no secret and are a no-op.
func CreateStageSecret(ctx context.Context, conn Conn, cfg config.StageConfig) error {
	var (
		stmt string
		err  error
	)
	switch cfg.Kind {
	case domain.StageKindS3:
		urlStyle := cfg.S3URLStyle
		if urlStyle == "" {
			urlStyle = "path"
		}
		stmt, err = ddl.CreateS3Secret(StageSecretName, cfg.S3KeyID, cfg.S3Secret, cfg.S3Endpoint, cfg.S3Region, urlStyle)
	case domain.StageKindGCS:
		stmt, err = ddl.CreateGCSSecret(StageSecretName, cfg.GCSKeyFilePath)
	case domain.StageKindAzure:
		stmt, err = ddl.CreateAzureSecret(StageSecretName, cfg.AzureAccountName, cfg.AzureAccountKey, "")
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s secret %q: %w", cfg.Kind, StageSecretName, err)
	}
	return nil
}

// AttachDuckLake installs the DuckLake extensions, attaches the catalog and
// makes it the default database.
func AttachDuckLake(ctx context.Context, conn Conn, metaDBPath, dataPath string) error {
	exts := []string{"ducklake", "sqlite"}
	if strings.Contains(dataPath, "://") {
		exts = append(exts, "httpfs")
	}
	if err := InstallExtensions(ctx, conn, exts...); err != nil {
		return err
	}

	attachSQL, err := ddl.AttachDuckLake(LakeCatalog, metaDBPath, dataPath)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := conn.ExecContext(ctx, attachSQL); err != nil {
		return fmt.Errorf("attach ducklake: %w", err)
	}
	useSQL, err := ddl.SetDefaultCatalog(LakeCatalog)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := conn.ExecContext(ctx, useSQL); err != nil {
		return fmt.Errorf("use %s: %w", LakeCatalog, err)
	}
	return nil
}

// ApplySettings applies thread and memory limits to the connection.
func ApplySettings(ctx context.Context, conn Conn, cfg config.WarehouseConfig) error {
	var stmts []string
	if cfg.Threads > 0 {
		stmt, err := ddl.SetOption("threads", fmt.Sprint(cfg.Threads))
		if err != nil {
			return fmt.Errorf("build DDL: %w", err)
		}
		stmts = append(stmts, stmt)
	}
	if cfg.MemoryLimit != "" {
		stmt, err := ddl.SetOption("memory_limit", cfg.MemoryLimit)
		if err != nil {
			return fmt.Errorf("build DDL: %w", err)
		}
		stmts = append(stmts, stmt)
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %q: %w", stmt, err)
		}
	}
	return nil
}
