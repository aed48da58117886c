package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fraud-lake/internal/api"
	"fraud-lake/internal/middleware"
	"fraud-lake/internal/service/pipeline"
	"fraud-lake/internal/service/query"
	"fraud-lake/internal/service/risk"
)

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only analytics API",
		Long: `Serves GET /health and, under /v1: POST /query, GET /risk, GET /{entity}/{id}
and the ingestion run history. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = e.cfg.ListenAddr
			}

			sess, err := e.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck
			if err := sess.RestrictExternalAccess(ctx, e.lakeDirs()...); err != nil {
				return err
			}

			metaDB, runs, err := e.openRunHistoryReader()
			if err != nil {
				return err
			}
			defer metaDB.Close() //nolint:errcheck

			querySvc := query.NewService(sess, e.logger)
			riskSvc := risk.NewService(querySvc, pipeline.DefaultSchema, e.riskThresholds())
			handler := api.NewHandler(querySvc, riskSvc, runs, e.logger)
			router := api.NewRouter(ctx, handler, api.RouterConfig{
				AllowedOrigins: e.cfg.CORSAllowedOrigins,
				RateLimit: middleware.RateLimitConfig{
					RequestsPerSecond: e.cfg.RateLimitRPS,
					Burst:             e.cfg.RateLimitBurst,
				},
			})
			return api.Serve(ctx, addr, router, e.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: LISTEN_ADDR or :8080)")
	return cmd
}
