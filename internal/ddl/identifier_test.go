package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		// Valid cases
		{name: "simple", input: "users"},
		{name: "underscore_prefix", input: "_temp"},
		{name: "mixed_case", input: "MyTable"},
		{name: "with_digits", input: "table1"},
		{name: "all_upper", input: "SCHEMA"},
		{name: "max_length", input: strings.Repeat("a", 128)},

		// Invalid cases
		{name: "empty", input: "", wantErr: "name is required"},
		{name: "too_long", input: strings.Repeat("a", 129), wantErr: "at most 128 characters"},
		{name: "starts_with_digit", input: "1table", wantErr: "must match"},
		{name: "contains_space", input: "my table", wantErr: "must match"},
		{name: "contains_hyphen", input: "my-table", wantErr: "must match"},
		{name: "contains_dot", input: "schema.table", wantErr: "must match"},
		{name: "contains_semicolon", input: "foo;bar", wantErr: "must match"},
		{name: "contains_quote", input: `foo"bar`, wantErr: "must match"},
		{name: "sql_injection", input: "foo; DROP TABLE", wantErr: "must match"},
		{name: "contains_paren", input: "foo()", wantErr: "must match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "users", want: `"users"`},
		{name: "with_double_quote", input: `my"table`, want: `"my""table"`},
		{name: "multiple_quotes", input: `a"b"c`, want: `"a""b""c"`},
		{name: "empty", input: "", want: `""`},
		{name: "uppercase", input: "Users", want: `"Users"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuoteIdentifier(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "hello", want: "'hello'"},
		{name: "with_single_quote", input: "it's", want: "'it''s'"},
		{name: "multiple_quotes", input: "a'b'c", want: "'a''b''c'"},
		{name: "empty", input: "", want: "''"},
		{name: "with_backslash", input: `path\to\file`, want: `'path\to\file'`},
		{name: "s3_path", input: "s3://bucket/path", want: "'s3://bucket/path'"},
		{name: "path_with_quote", input: "/tmp/it's here/db", want: "'/tmp/it''s here/db'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuoteLiteral(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateColumnNames(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantErr string
	}{
		{name: "fraud header", input: []string{"TRANSACTION_ID", "CUSTOMER_ID", "AMOUNT", "IS_FRAUD"}},
		{name: "single", input: []string{"ID"}},
		{name: "empty list", input: nil, wantErr: "at least one column"},
		{name: "blank name", input: []string{"ID", ""}, wantErr: `column 2 (""): name is required`},
		{name: "space in name", input: []string{"customer id"}, wantErr: "must match"},
		{name: "exact duplicate", input: []string{"ID", "NAME", "ID"}, wantErr: "column 3 (\"ID\") duplicates column 1"},
		{name: "case-insensitive duplicate", input: []string{"amount", "AMOUNT"}, wantErr: "duplicates column 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumnNames(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, `"BRONZE"."CUSTOMERS"`, QualifiedName("BRONZE", "CUSTOMERS"))
	assert.Equal(t, `"lake"."BRONZE"."T"`, QualifiedName("lake", "BRONZE", "T"))
	assert.Equal(t, `"T"`, QualifiedName("", "T"))
	assert.Equal(t, `"we""ird"`, QualifiedName("we\"ird"))
}
