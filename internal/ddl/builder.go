// Package ddl builds DuckDB statements for secrets, extensions, schemas and bronze tables.
package ddl

import (
	"fmt"
	"strings"
)

// CSVOptions controls the read_csv call used to parse a staged object.
type CSVOptions struct {
	SkipRows  int    // leading rows to skip (the declared header)
	Delimiter string // defaults to ","
	// Columns, when > 0, fixes the width to column0..column{n-1} VARCHAR and
	// turns off sniffing.
	Columns int
}

// InstallExtension returns "INSTALL <name>; LOAD <name>;".
func InstallExtension(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid extension name: %w", err)
	}
	return fmt.Sprintf("INSTALL %s; LOAD %s;", name, name), nil
}

// SetOption returns a DuckDB SET statement. Numeric values are emitted bare,
// everything else as a string literal.
func SetOption(name, value string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid option name: %w", err)
	}
	if value == "" {
		return "", fmt.Errorf("value for %s is required", name)
	}
	if isDigits(value) {
		return fmt.Sprintf("SET %s = %s", name, value), nil
	}
	return fmt.Sprintf("SET %s = %s", name, QuoteLiteral(value)), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// CreateSchemaIfNotExists returns CREATE SCHEMA IF NOT EXISTS "<name>".
func CreateSchemaIfNotExists(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdentifier(name)), nil
}

// UseSchema returns a USE statement for "<catalog>"."<schema>", or just the
// schema when catalog is empty.
func UseSchema(catalog, schema string) (string, error) {
	if catalog != "" {
		if err := ValidateIdentifier(catalog); err != nil {
			return "", fmt.Errorf("invalid catalog name: %w", err)
		}
	}
	if err := ValidateIdentifier(schema); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	return "USE " + QualifiedName(catalog, schema), nil
}

func tableName(schema, table string) (string, error) {
	if schema != "" {
		if err := ValidateIdentifier(schema); err != nil {
			return "", fmt.Errorf("invalid schema name: %w", err)
		}
	}
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return QualifiedName(schema, table), nil
}

// DropTableIfExists returns DROP TABLE IF EXISTS "<schema>"."<table>".
func DropTableIfExists(schema, table string) (string, error) {
	name, err := tableName(schema, table)
	if err != nil {
		return "", err
	}
	return "DROP TABLE IF EXISTS " + name, nil
}

// CreateTableAs returns CREATE [OR REPLACE] TABLE "<schema>"."<table>" AS <query>.
func CreateTableAs(schema, table, query string, replace bool) (string, error) {
	name, err := tableName(schema, table)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("select query is required")
	}
	verb := "CREATE TABLE"
	if replace {
		verb = "CREATE OR REPLACE TABLE"
	}
	return fmt.Sprintf("%s %s AS %s", verb, name, query), nil
}

// InsertInto returns INSERT INTO "<schema>"."<table>" <query>.
func InsertInto(schema, table, query string) (string, error) {
	name, err := tableName(schema, table)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("select query is required")
	}
	return fmt.Sprintf("INSERT INTO %s %s", name, query), nil
}

// CountRows returns SELECT count(*) FROM "<schema>"."<table>".
func CountRows(schema, table string) (string, error) {
	name, err := tableName(schema, table)
	if err != nil {
		return "", err
	}
	return "SELECT count(*) FROM " + name, nil
}

// ReadCSV returns a read_csv table function call that parses every column as
// VARCHAR without using the file's first row for naming. DuckDB names the
// columns column0, column1, ...
//
//	read_csv('s3://bucket/BRONZE_STAGE/customers.csv', header = false, skip = 1, delim = ',', all_varchar = true)
func ReadCSV(uri string, opts CSVOptions) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("source uri is required")
	}
	if opts.SkipRows < 0 {
		return "", fmt.Errorf("skip rows must be >= 0, got %d", opts.SkipRows)
	}
	delim := opts.Delimiter
	if delim == "" {
		delim = ","
	}
	if opts.Columns < 0 {
		return "", fmt.Errorf("columns must be >= 0, got %d", opts.Columns)
	}
	if opts.Columns == 0 {
		return fmt.Sprintf("read_csv(%s, header = false, skip = %d, delim = %s, quote = '\"', all_varchar = true)",
			QuoteLiteral(uri), opts.SkipRows, QuoteLiteral(delim)), nil
	}
	cols := make([]string, opts.Columns)
	for i := range cols {
		cols[i] = fmt.Sprintf("'column%d': 'VARCHAR'", i)
	}
	return fmt.Sprintf("read_csv(%s, header = false, skip = %d, delim = %s, quote = '\"', auto_detect = false, columns = {%s})",
		QuoteLiteral(uri), opts.SkipRows, QuoteLiteral(delim), strings.Join(cols, ", ")), nil
}

// DescribeQuery wraps a query in DESCRIBE so its output columns can be
// discovered without materializing rows.
func DescribeQuery(query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	return "DESCRIBE " + query, nil
}

// CreateS3Secret returns a DuckDB DDL statement to create an S3 secret.
func CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE S3,
	KEY_ID %s,
	SECRET %s,
	ENDPOINT %s,
	REGION %s,
	URL_STYLE %s
)`,
		QuoteIdentifier(name),
		QuoteLiteral(keyID),
		QuoteLiteral(secret),
		QuoteLiteral(endpoint),
		QuoteLiteral(region),
		QuoteLiteral(urlStyle),
	), nil
}

// CreateAzureSecret returns a DuckDB DDL statement to create an Azure secret.
func CreateAzureSecret(name, accountName, accountKey, connectionString string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	if connectionString != "" {
		return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE AZURE,
	CONNECTION_STRING %s
)`,
			QuoteIdentifier(name),
			QuoteLiteral(connectionString),
		), nil
	}
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE AZURE,
	ACCOUNT_NAME %s,
	ACCOUNT_KEY %s
)`,
		QuoteIdentifier(name),
		QuoteLiteral(accountName),
		QuoteLiteral(accountKey),
	), nil
}

// CreateGCSSecret returns a DuckDB DDL statement to create a GCS secret.
func CreateGCSSecret(name, keyFilePath string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE GCS,
	KEY_FILE_PATH %s
)`,
		QuoteIdentifier(name),
		QuoteLiteral(keyFilePath),
	), nil
}

// DropSecret returns a DuckDB DDL statement: DROP SECRET IF EXISTS "<name>".
func DropSecret(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return fmt.Sprintf("DROP SECRET IF EXISTS %s", QuoteIdentifier(name)), nil
}

// AttachDuckLake returns a DuckDB DDL statement to attach a DuckLake catalog.
// Both metaDBPath and dataPath are escaped as SQL string literals.
func AttachDuckLake(catalogName, metaDBPath, dataPath string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if metaDBPath == "" {
		return "", fmt.Errorf("metastore path is required")
	}
	if dataPath == "" {
		return "", fmt.Errorf("data path is required")
	}
	connStr := QuoteLiteral("ducklake:sqlite:" + metaDBPath)
	return fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s (\n\tDATA_PATH %s\n)",
		connStr,
		QuoteIdentifier(catalogName),
		QuoteLiteral(dataPath),
	), nil
}

// SetAllowedDirectories returns a SET statement listing the path prefixes
// DuckDB may still read once external access is disabled.
//
//	SET allowed_directories = ['/srv/lake/data/']
func SetAllowedDirectories(dirs []string) (string, error) {
	if len(dirs) == 0 {
		return "", fmt.Errorf("at least one directory is required")
	}
	quoted := make([]string, len(dirs))
	for i, d := range dirs {
		if strings.TrimSpace(d) == "" {
			return "", fmt.Errorf("directory %d is empty", i)
		}
		quoted[i] = QuoteLiteral(d)
	}
	return fmt.Sprintf("SET allowed_directories = [%s]", strings.Join(quoted, ", ")), nil
}

// SetDefaultCatalog returns a DuckDB USE statement to set the default catalog.
func SetDefaultCatalog(catalogName string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	return fmt.Sprintf("USE %s", QuoteIdentifier(catalogName)), nil
}
