package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-lake/internal/domain"
)

func TestPrintTable_Basic(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"table", "rows"}, [][]string{
		{"CUSTOMERS", "10"},
		{"FRAUD_LABELS", "3"},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "TABLE         ROWS", lines[0])
	assert.Equal(t, "CUSTOMERS     10", lines[1])
	assert.Equal(t, "FRAUD_LABELS  3", lines[2])
}

func TestPrintTable_EmptyColumns(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, nil, [][]string{{"a"}})
	assert.Empty(t, buf.String())
}

func TestPrintTable_ShortRows(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"a", "b"}, [][]string{{"1"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1", strings.TrimSpace(lines[1]))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]string{"status": "OK"}))

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "OK", parsed["status"])
	assert.Contains(t, buf.String(), "\n  ")

	buf.Reset()
	require.NoError(t, PrintJSON(&buf, nil))
	assert.Equal(t, "null\n", buf.String())
}

func TestPrintDetail(t *testing.T) {
	var buf bytes.Buffer
	PrintDetail(&buf, map[string]any{
		"status":  "PARTIAL",
		"id":      "run-1",
		"tables":  []any{"A", "B"},
		"missing": nil,
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "id:       run-1", lines[0])
	assert.Equal(t, "missing:  ", lines[1])
	assert.Equal(t, "status:   PARTIAL", lines[2])
	assert.Equal(t, `tables:   ["A","B"]`, lines[3])
}

func TestExtractField(t *testing.T) {
	data := map[string]any{
		"name":   "alice",
		"count":  42.0,
		"nil":    nil,
		"nested": map[string]any{"k": "v"},
		"tags":   []any{"a", "b"},
	}

	tests := []struct {
		key  string
		want string
	}{
		{key: "name", want: "alice"},
		{key: "count", want: "42"},
		{key: "nil", want: ""},
		{key: "missing", want: ""},
		{key: "nested", want: `{"k":"v"}`},
		{key: "tags", want: `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractField(data, tt.key))
		})
	}
}

func TestRecordRows(t *testing.T) {
	rows := recordRows([]string{"ID", "AMOUNT"}, []domain.Record{
		{"ID": "T1", "AMOUNT": "12.5"},
		{"ID": "T2"},
	})
	assert.Equal(t, [][]string{{"T1", "12.5"}, {"T2", ""}}, rows)
}

func TestValidateOutputFormat(t *testing.T) {
	assert.NoError(t, validateOutputFormat("table"))
	assert.NoError(t, validateOutputFormat("json"))
	assert.NoError(t, validateOutputFormat(""))
	assert.Error(t, validateOutputFormat("yaml"))
}
