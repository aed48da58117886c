package cli

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fraud-lake/internal/deploy"
)

func newDeployCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Upload the project to the VM and restart the API",
		Long: `Copies the project directory to DEPLOY_HOST over SFTP (skipping .git, .env and
local stage data), then stops any running "fraudlake serve" and starts it again
in the background. Requires DEPLOY_HOST and DEPLOY_KEY_PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := deploy.NewDeployer(e.cfg.Deploy, nil, e.logger).Deploy(cmd.Context())
			if res != nil && res.Stderr != "" {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
			}
			if err != nil {
				return err
			}

			endpoints := deployEndpoints(e.cfg.Deploy.Host, e.cfg.ListenAddr)
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{
					"files":       res.Files,
					"bytes":       res.Bytes,
					"duration_ms": res.Duration.Milliseconds(),
					"stdout":      res.Stdout,
					"endpoints":   endpoints,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprint(out, res.Stdout)
			_, _ = fmt.Fprintf(out, "Deployed %d files (%d bytes) in %s\n", res.Files, res.Bytes, res.Duration.Round(time.Millisecond))
			for _, ep := range endpoints {
				_, _ = fmt.Fprintln(out, "  "+ep)
			}
			return nil
		},
	}
}

// deployEndpoints lists the public API URLs on the deploy host.
func deployEndpoints(host, listenAddr string) []string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	port := "8080"
	if _, p, err := net.SplitHostPort(listenAddr); err == nil && p != "" {
		port = p
	}
	base := "http://" + net.JoinHostPort(strings.Trim(host, "[]"), port)
	return []string{
		base + "/health",
		base + "/v1/risk",
		base + "/v1/query",
	}
}
