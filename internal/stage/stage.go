// Package stage implements the object storage landing zone that bronze files
// are copied into before the warehouse parses them.
package stage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"fraud-lake/internal/config"
	"fraud-lake/internal/domain"
)

// New builds the stage selected by cfg.Kind.
func New(ctx context.Context, cfg config.StageConfig) (domain.Stage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.ErrValidation("%s", err.Error())
	}
	switch cfg.Kind {
	case domain.StageKindLocal:
		return NewLocal(cfg.Location)
	case domain.StageKindS3:
		return NewS3(cfg), nil
	case domain.StageKindGCS:
		return NewGCS(ctx, cfg)
	case domain.StageKindAzure:
		return NewAzure(cfg)
	default:
		return nil, domain.ErrValidation("unsupported stage kind %q", cfg.Kind)
	}
}

// objectKey joins the stage prefix and the file name with forward slashes.
func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// keyPrefix returns the listing prefix for a stage location.
func keyPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// openSource opens a local file for upload and returns its base name and size.
func openSource(localPath string) (*os.File, string, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, "", 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, "", 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, "", 0, domain.ErrValidation("%s is a directory", localPath)
	}
	return f, filepath.Base(localPath), info.Size(), nil
}
