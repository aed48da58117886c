package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "fraud-lake"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

func internalPkgs(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = modulePath + "/internal/" + n
	}
	return append(out, modulePath+"/cmd", modulePath+"/pkg/cli")
}

var architectureRules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden:    internalPkgs("config", "ddl", "sqlscript", "stage", "engine", "db", "service", "api", "middleware", "deploy"),
		hint:         "domain may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/config",
		forbidden:    internalPkgs("stage", "engine", "db", "service", "api", "middleware", "deploy"),
		hint:         "config may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/ddl",
		forbidden:    internalPkgs("config", "sqlscript", "stage", "engine", "db", "service", "api", "middleware", "deploy"),
		hint:         "ddl is a leaf package",
	},
	{
		sourcePrefix: modulePath + "/internal/sqlscript",
		forbidden:    internalPkgs("domain", "config", "ddl", "stage", "engine", "db", "service", "api", "middleware", "deploy"),
		hint:         "sqlscript is a leaf package",
	},
	{
		sourcePrefix: modulePath + "/internal/stage",
		forbidden:    internalPkgs("engine", "db", "service", "api", "middleware", "deploy"),
		hint:         "stage should depend on config and domain",
	},
	{
		sourcePrefix: modulePath + "/internal/engine",
		forbidden:    internalPkgs("db", "service", "api", "middleware", "deploy"),
		hint:         "engine should depend on config, ddl and domain",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden:    internalPkgs("config", "stage", "engine", "service", "api", "middleware", "deploy"),
		hint:         "db should depend on domain and db-local packages",
	},
	{
		sourcePrefix: modulePath + "/internal/service",
		forbidden:    internalPkgs("config", "stage", "engine", "db", "api", "middleware", "deploy"),
		hint:         "service should depend on domain ports, ddl, sqlscript and service-local packages",
	},
	{
		sourcePrefix: modulePath + "/internal/api",
		forbidden:    internalPkgs("config", "stage", "engine", "db", "deploy"),
		hint:         "api should depend on service, middleware and domain",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden:    internalPkgs("stage", "engine", "db", "service", "api", "deploy"),
		hint:         "middleware should depend on middleware-local packages",
	},
	{
		sourcePrefix: modulePath + "/internal/deploy",
		forbidden:    internalPkgs("stage", "engine", "db", "service", "api", "middleware"),
		hint:         "deploy should depend on config",
	},
}

// testRelaxations lists imports that tests, and only tests, may use. Service
// tests run against an in-memory warehouse opened through the engine.
var testRelaxations = map[string][]string{
	modulePath + "/internal/service": {
		modulePath + "/internal/engine",
		modulePath + "/internal/stage",
		modulePath + "/internal/config",
	},
}

func collectGoFiles(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, filepath.ToSlash(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func internalRootDir() string {
	return filepath.Join(repoRootDir(), "internal")
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range architectureRules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func matchingForbiddenPrefix(importPath string, forbidden []string) string {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return prefix
		}
	}
	return ""
}

func isTestRelaxation(sourcePkg, importPath string) bool {
	for source, allowed := range testRelaxations {
		if !hasPathPrefix(sourcePkg, source) {
			continue
		}
		for _, a := range allowed {
			if hasPathPrefix(importPath, a) {
				return true
			}
		}
	}
	return false
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}

func packageImportPath(file string) string {
	path := filepath.ToSlash(file)
	if idx := strings.Index(path, "/internal/"); idx >= 0 {
		return modulePath + filepath.ToSlash(filepath.Dir(path[idx:]))
	}
	return modulePath + "/" + filepath.ToSlash(filepath.Dir(path))
}

func isTestFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

func parseImports(t *testing.T, file string) []string {
	t.Helper()

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	imports := make([]string, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, "\""))
	}
	return imports
}

func relToRepoRoot(path string) string {
	rel, err := filepath.Rel(repoRootDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
