// Package deploy copies the project to a VM over SSH and restarts the API
// server there.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fraud-lake/internal/config"
)

// Remote is a connected deployment target.
type Remote interface {
	MkdirAll(dir string) error
	Upload(ctx context.Context, localPath, remotePath string) error
	// Run executes a shell script and returns its stdout and stderr.
	Run(ctx context.Context, script string) (stdout, stderr string, err error)
	Close() error
}

// Dialer opens a Remote.
type Dialer func(ctx context.Context, cfg config.DeployConfig) (Remote, error)

// Result reports what a deployment did.
type Result struct {
	Files    int
	Bytes    int64
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Deployer uploads the project directory and starts the server remotely.
type Deployer struct {
	cfg    config.DeployConfig
	dial   Dialer
	logger *slog.Logger
}

// NewDeployer creates a Deployer. A nil dial uses DialSSH.
func NewDeployer(cfg config.DeployConfig, dial Dialer, logger *slog.Logger) *Deployer {
	if dial == nil {
		dial = DialSSH
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 4
	}
	return &Deployer{cfg: cfg, dial: dial, logger: logger}
}

// Deploy walks the project, uploads every file with bounded parallelism and
// runs the start script. The remote script's output is returned even when
// it fails.
func (d *Deployer) Deploy(ctx context.Context) (*Result, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	files, err := CollectFiles(d.cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("collect project files: %w", err)
	}
	d.logger.Info("deploying project", "host", d.cfg.Host, "files", len(files), "remote_dir", d.cfg.RemoteDir)

	remote, err := d.dial(ctx, d.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", d.cfg.Host, err)
	}
	defer func() {
		if cerr := remote.Close(); cerr != nil {
			d.logger.Warn("close remote connection", "error", cerr)
		}
	}()

	for _, dir := range RemoteDirs(d.cfg.RemoteDir, files) {
		if err := remote.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("create remote dir %s: %w", dir, err)
		}
	}

	var uploaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.UploadConcurrency)
	for _, f := range files {
		g.Go(func() error {
			dst := path.Join(d.cfg.RemoteDir, f.Rel)
			if err := remote.Upload(gctx, f.Local, dst); err != nil {
				return fmt.Errorf("upload %s: %w", f.Rel, err)
			}
			uploaded.Add(f.Size)
			d.logger.Debug("uploaded", "file", f.Rel, "bytes", f.Size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.logger.Info("upload complete", "files", len(files), "bytes", uploaded.Load())

	res := &Result{Files: len(files), Bytes: uploaded.Load()}
	res.Stdout, res.Stderr, err = remote.Run(ctx, StartScript(d.cfg.RemoteDir))
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("remote start script: %w", err)
	}
	return res, nil
}
