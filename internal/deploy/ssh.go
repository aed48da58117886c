package deploy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"fraud-lake/internal/config"
)

// sshRemote is a Remote over one SSH connection, with SFTP for file transfer.
type sshRemote struct {
	conn *ssh.Client
	sftp *sftp.Client
}

// DialSSH connects to cfg.Host with the private key at cfg.KeyPath.
func DialSSH(ctx context.Context, cfg config.DeployConfig) (Remote, error) {
	clientCfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	d := net.Dialer{Timeout: clientCfg.Timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(raw, addr, clientCfg)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	conn := ssh.NewClient(c, chans, reqs)

	sc, err := sftp.NewClient(conn, sftp.UseConcurrentWrites(true))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("start sftp: %w", err)
	}
	return &sshRemote{conn: conn, sftp: sc}, nil
}

func clientConfig(cfg config.DeployConfig) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", cfg.KeyPath, err)
	}

	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         15 * time.Second,
	}, nil
}

func hostKeyCallback(cfg config.DeployConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in via DEPLOY_INSECURE_HOST_KEY
	}
	path := cfg.KnownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

func (r *sshRemote) MkdirAll(dir string) error {
	return r.sftp.MkdirAll(dir)
}

func (r *sshRemote) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath) //nolint:gosec // path comes from the project walk
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	info, err := src.Stat()
	if err != nil {
		return err
	}
	dst, err := r.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", remotePath, err)
	}
	if err := dst.Chmod(info.Mode().Perm()); err != nil {
		_ = dst.Close()
		return fmt.Errorf("chmod %s: %w", remotePath, err)
	}
	return dst.Close()
}

func (r *sshRemote) Run(ctx context.Context, script string) (string, string, error) {
	sess, err := r.conn.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("open ssh session: %w", err)
	}
	defer sess.Close() //nolint:errcheck

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run("sh -s <<'FRAUDLAKE_EOF'\n" + script + "FRAUDLAKE_EOF\n") }()
	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGTERM)
		err = ctx.Err()
	}
	return stdout.String(), stderr.String(), err
}

func (r *sshRemote) Close() error {
	sErr := r.sftp.Close()
	cErr := r.conn.Close()
	if sErr != nil {
		return sErr
	}
	return cErr
}

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
