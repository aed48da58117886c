package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"fraud-lake/internal/domain"
)

var _ domain.Stage = (*Local)(nil)

// Local is a stage backed by a directory the warehouse process can read.
type Local struct {
	dir string
}

// NewLocal creates the stage directory if needed and returns a Local stage
// rooted at its absolute path.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve stage dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create stage dir %q: %w", abs, err)
	}
	return &Local{dir: abs}, nil
}

// Kind implements domain.Stage.
func (l *Local) Kind() string { return domain.StageKindLocal }

// Dir returns the absolute stage directory.
func (l *Local) Dir() string { return l.dir }

// URI implements domain.Stage.
func (l *Local) URI(name string) string { return filepath.Join(l.dir, name) }

// Put copies localPath into the stage under its base name. The copy goes to a
// temporary file first and is renamed into place, so readers never observe a
// half-written object.
func (l *Local) Put(ctx context.Context, localPath string, overwrite bool) (*domain.StagedObject, error) {
	src, name, size, err := openSource(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := l.URI(name)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return nil, domain.ErrConflict("staged object %q already exists", name)
		}
	}

	tmp, err := os.CreateTemp(l.dir, "."+name+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: src}); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("copy %s to stage: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return nil, fmt.Errorf("move %s into stage: %w", name, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("stat staged object: %w", err)
	}
	if info.Size() != size {
		return nil, fmt.Errorf("staged %s: wrote %d bytes, expected %d", name, info.Size(), size)
	}
	return &domain.StagedObject{Name: name, URI: dst, Size: info.Size(), LastModified: info.ModTime()}, nil
}

// List implements domain.Stage. Hidden and temporary files are skipped.
func (l *Local) List(_ context.Context) ([]domain.StagedObject, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list stage: %w", err)
	}
	var out []domain.StagedObject
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, domain.StagedObject{
			Name:         e.Name(),
			URI:          l.URI(e.Name()),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close implements domain.Stage.
func (l *Local) Close() error { return nil }

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
