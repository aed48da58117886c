package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"fraud-lake/internal/config"
	"fraud-lake/internal/ddl"
	"fraud-lake/internal/domain"
)

var (
	_ domain.WarehouseSession = (*Session)(nil)
	_ domain.Querier          = (*Session)(nil)
)

// Session is one DuckDB connection pinned for the lifetime of a batch. USE
// and transaction state are per connection, so every statement goes through
// the same *sql.Conn.
type Session struct {
	db       *sql.DB
	conn     *sql.Conn
	stage    domain.Stage
	database string
	schema   string
	user     string
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// DSN builds the DuckDB data source name for the warehouse config. An empty
// database opens an in-memory warehouse; "md:" databases carry the password
// as the MotherDuck token.
func DSN(cfg config.WarehouseConfig) string {
	if strings.HasPrefix(cfg.Database, "md:") && cfg.Password != "" {
		sep := "?"
		if strings.Contains(cfg.Database, "?") {
			sep = "&"
		}
		return cfg.Database + sep + "motherduck_token=" + url.QueryEscape(cfg.Password)
	}
	return cfg.Database
}

// OpenSession opens the warehouse, prepares the stage and selects the target
// schema. The session takes ownership of st: it is closed by Session.Close,
// or before returning when setup fails.
func OpenSession(ctx context.Context, wcfg config.WarehouseConfig, scfg config.StageConfig, st domain.Stage, logger *slog.Logger) (_ *Session, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema := wcfg.Schema
	if schema == "" {
		schema = "BRONZE"
	}
	if err := ddl.ValidateIdentifier(schema); err != nil {
		st.Close() //nolint:errcheck
		return nil, domain.ErrValidation("invalid WAREHOUSE_SCHEMA %q: %v", schema, err)
	}

	db, err := sql.Open("duckdb", DSN(wcfg))
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		st.Close() //nolint:errcheck
		return nil, fmt.Errorf("connect duckdb: %w", err)
	}

	s := &Session{
		db:     db,
		conn:   conn,
		stage:  st,
		schema: schema,
		user:   wcfg.User,
		logger: logger.With("component", "warehouse"),
	}
	defer func() {
		if err != nil {
			s.Close() //nolint:errcheck
		}
	}()

	if err := ApplySettings(ctx, conn, wcfg); err != nil {
		return nil, err
	}
	if exts := stageExtensions(st.Kind()); len(exts) > 0 {
		if err := InstallExtensions(ctx, conn, exts...); err != nil {
			return nil, err
		}
		if err := CreateStageSecret(ctx, conn, scfg); err != nil {
			return nil, err
		}
	}
	if wcfg.HasLake() {
		if err := AttachDuckLake(ctx, conn, wcfg.LakeMetaDBPath, wcfg.LakeDataPath); err != nil {
			return nil, err
		}
	}

	if err := conn.QueryRowContext(ctx, "SELECT current_database()").Scan(&s.database); err != nil {
		return nil, fmt.Errorf("resolve current database: %w", err)
	}
	if err := s.UseSchema(ctx, schema); err != nil {
		return nil, err
	}

	s.logger.Info("warehouse session opened",
		"database", s.database,
		"schema", s.schema,
		"stage", st.Kind(),
		"warehouse", wcfg.Name,
		"account", wcfg.Account,
		"role", wcfg.Role,
	)
	return s, nil
}

// UseSchema creates schema if it is missing and makes it the default for
// unqualified names.
func (s *Session) UseSchema(ctx context.Context, schema string) error {
	createSQL, err := ddl.CreateSchemaIfNotExists(schema)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if err := s.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	useSQL, err := ddl.UseSchema(s.database, schema)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if err := s.Exec(ctx, useSQL); err != nil {
		return fmt.Errorf("use %s.%s: %w", s.database, schema, err)
	}
	return nil
}

// Database returns the current DuckDB catalog name.
func (s *Session) Database() string { return s.database }

// Schema returns the schema bronze tables are written to.
func (s *Session) Schema() string { return s.schema }

// User returns the configured warehouse user.
func (s *Session) User() string { return s.user }

// UploadToStage copies a local file into the stage.
func (s *Session) UploadToStage(ctx context.Context, localPath string, overwrite bool) (*domain.StagedObject, error) {
	obj, err := s.stage.Put(ctx, localPath, overwrite)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("staged file", "name", obj.Name, "uri", obj.URI, "bytes", obj.Size)
	return obj, nil
}

// ListStage lists the staged objects.
func (s *Session) ListStage(ctx context.Context) ([]domain.StagedObject, error) {
	return s.stage.List(ctx)
}

// ReadStagedCSV parses a staged object as comma-delimited text, skipping the
// first skipHeaderRows rows. The parser does not use the file's header for
// naming; columns come back as column0, column1, ... with VARCHAR values.
func (s *Session) ReadStagedCSV(ctx context.Context, name string, skipHeaderRows int) (domain.RowSet, error) {
	return s.readStaged(ctx, name, ddl.CSVOptions{SkipRows: skipHeaderRows})
}

// ReadStagedCSVWidth is ReadStagedCSV with exactly width columns and no
// sniffing. A file holding only its header parses to zero rows.
func (s *Session) ReadStagedCSVWidth(ctx context.Context, name string, skipHeaderRows, width int) (domain.RowSet, error) {
	if width < 1 {
		return nil, domain.ErrValidation("parse staged %s: width must be >= 1, got %d", name, width)
	}
	return s.readStaged(ctx, name, ddl.CSVOptions{SkipRows: skipHeaderRows, Columns: width})
}

func (s *Session) readStaged(ctx context.Context, name string, opts ddl.CSVOptions) (domain.RowSet, error) {
	source, err := ddl.ReadCSV(s.stage.URI(name), opts)
	if err != nil {
		return nil, err
	}
	cols, err := s.describe(ctx, "SELECT * FROM "+source)
	if err != nil {
		return nil, fmt.Errorf("parse staged %s: %w", name, err)
	}
	rel := &relation{session: s, source: source, cols: make([]column, len(cols))}
	for i, c := range cols {
		rel.cols[i] = column{source: c, name: c}
	}
	return rel, nil
}

// describe returns the output column names of query.
func (s *Session) describe(ctx context.Context, query string) ([]string, error) {
	describeSQL, err := ddl.DescribeQuery(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, describeSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		vals := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		names = append(names, fmt.Sprint(vals[0]))
	}
	return names, rows.Err()
}

// RestrictExternalAccess stops later statements from reading host files or
// URLs, apart from paths under allowedDirs. DuckDB keeps the restriction for
// the life of the database.
func (s *Session) RestrictExternalAccess(ctx context.Context, allowedDirs ...string) error {
	var stmts []string
	if len(allowedDirs) > 0 {
		dirs := make([]string, len(allowedDirs))
		for i, d := range allowedDirs {
			dirs[i] = strings.TrimSuffix(d, "/") + "/"
		}
		stmt, err := ddl.SetAllowedDirectories(dirs)
		if err != nil {
			return fmt.Errorf("build DDL: %w", err)
		}
		stmts = append(stmts, stmt)
	}
	stmt, err := ddl.SetOption("enable_external_access", "false")
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	stmts = append(stmts, stmt)

	for _, stmt := range stmts {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("restrict external access: %w", err)
		}
	}
	s.logger.Info("external file access disabled", "allowed_directories", allowedDirs)
	return nil
}

// Exec runs a statement on the pinned connection.
func (s *Session) Exec(ctx context.Context, query string) error {
	_, err := s.conn.ExecContext(ctx, query)
	return err
}

// QueryContext runs a query on the pinned connection.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

// SaveAsTable materializes rs as table in the session schema.
func (s *Session) SaveAsTable(ctx context.Context, rs domain.RowSet, table string, mode domain.SaveMode) error {
	rel, ok := rs.(*relation)
	if !ok || rel.session != s {
		return fmt.Errorf("save %s: row set was not produced by this session", table)
	}
	if len(rel.cols) == 0 {
		return domain.ErrValidation("save %s: row set has no columns", table)
	}

	var (
		stmt string
		err  error
	)
	switch mode {
	case domain.SaveModeOverwrite:
		stmt, err = ddl.CreateTableAs(s.schema, table, rel.SQL(), true)
	case domain.SaveModeErrorIfExists:
		stmt, err = ddl.CreateTableAs(s.schema, table, rel.SQL(), false)
	case domain.SaveModeAppend:
		stmt, err = ddl.InsertInto(s.schema, table, rel.SQL())
	default:
		return domain.ErrValidation("unsupported save mode %q", mode)
	}
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if err := s.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("save %s.%s: %w", s.schema, table, err)
	}
	return nil
}

// CountRows returns the number of rows in table.
func (s *Session) CountRows(ctx context.Context, table string) (int64, error) {
	q, err := ddl.CountRows(s.schema, table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.conn.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", s.schema, table, err)
	}
	return n, nil
}

// Close releases the connection, the database and the stage. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.conn != nil {
			errs = append(errs, s.conn.Close())
		}
		if s.db != nil {
			errs = append(errs, s.db.Close())
		}
		if s.stage != nil {
			errs = append(errs, s.stage.Close())
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("warehouse session closed")
	})
	return s.closeErr
}
