package architecture_test

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportBoundaries(t *testing.T) {
	files, err := collectGoFiles(internalRootDir())
	require.NoError(t, err)
	require.NotEmpty(t, files)

	violations := make([]string, 0)
	for _, file := range files {
		sourcePkg := packageImportPath(file)
		rule, ok := findRule(sourcePkg)
		if !ok {
			continue
		}
		testFile := isTestFile(file)

		for _, importPath := range parseImports(t, file) {
			if !strings.HasPrefix(importPath, modulePath+"/") {
				continue
			}
			if matchingForbiddenPrefix(importPath, rule.forbidden) == "" {
				continue
			}
			if testFile && isTestRelaxation(sourcePkg, importPath) {
				continue
			}
			kind := ""
			if testFile {
				kind = "test "
			}
			violations = append(violations,
				"governance: "+kind+sourcePkg+" imports "+importPath+" via "+relToRepoRoot(file)+"; allowed direction: "+rule.hint,
			)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

func TestArchitectureRulesNameExistingPackages(t *testing.T) {
	for _, rule := range architectureRules {
		rel := strings.TrimPrefix(rule.sourcePrefix, modulePath+"/")
		info, err := os.Stat(filepath.Join(repoRootDir(), filepath.FromSlash(rel)))
		require.NoErrorf(t, err, "rule source %s", rule.sourcePrefix)
		assert.Truef(t, info.IsDir(), "rule source %s is not a directory", rule.sourcePrefix)
	}
}

func TestPackageImportPath(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{file: "/repo/internal/domain/errors.go", want: "fraud-lake/internal/domain"},
		{file: "/repo/internal/db/repository/ingestion_run.go", want: "fraud-lake/internal/db/repository"},
		{file: "/repo/internal/service/risk/risk_test.go", want: "fraud-lake/internal/service/risk"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, packageImportPath(tt.file))
		})
	}

	rule, ok := findRule("fraud-lake/internal/ddl")
	require.True(t, ok)
	assert.Equal(t, modulePath+"/internal/ddl", rule.sourcePrefix, "ddl must not match the db rule")
}
