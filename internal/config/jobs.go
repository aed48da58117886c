package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fraud-lake/internal/domain"
)

// JobsFile is the YAML document listing bronze ingestion jobs.
//
//	jobs:
//	  - table: CUSTOMERS
//	    path: data/customers.csv
type JobsFile struct {
	Jobs []domain.IngestionJob `yaml:"jobs"`
}

// LoadJobs returns the bronze jobs from path, or the built-in defaults when
// path is empty. Job order is preserved; it is the execution order.
func LoadJobs(path string) ([]domain.IngestionJob, error) {
	if path == "" {
		return domain.DefaultIngestionJobs(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	var f JobsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse jobs file %s: %w", path, err)
	}
	if len(f.Jobs) == 0 {
		return nil, domain.ErrValidation("jobs file %s lists no jobs", path)
	}
	seen := make(map[string]bool, len(f.Jobs))
	for i, j := range f.Jobs {
		if j.Table == "" || j.Path == "" {
			return nil, domain.ErrValidation("jobs[%d]: table and path are required", i)
		}
		if seen[j.Table] {
			return nil, domain.ErrValidation("jobs[%d]: table %q listed twice", i, j.Table)
		}
		seen[j.Table] = true
	}
	return f.Jobs, nil
}
