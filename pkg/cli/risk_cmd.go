package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fraud-lake/internal/api"
	"fraud-lake/internal/domain"
	"fraud-lake/internal/service/pipeline"
	"fraud-lake/internal/service/query"
	"fraud-lake/internal/service/risk"
)

func (e *env) riskThresholds() domain.RiskThresholds {
	return domain.RiskThresholds{
		MerchantRiskScore: e.cfg.HighRiskMerchantScore,
		HighValueAmount:   e.cfg.HighValueAmount,
	}
}

func newRiskCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Summarise high-risk merchants and customers from the silver layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			svc := risk.NewService(query.NewService(sess, e.logger), pipeline.DefaultSchema, e.riskThresholds())
			p, err := svc.Profile(cmd.Context())
			if err != nil {
				return err
			}

			out := api.RiskProfileFromDomain(p)
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			PrintDetail(cmd.OutOrStdout(), map[string]any{
				"merchant_risk_score_threshold": out.MerchantRiskScoreThreshold,
				"high_value_amount_threshold":   out.HighValueAmountThreshold,
				"high_risk_merchants":           strings.Join(out.HighRiskMerchants, ", "),
				"high_risk_customers":           strings.Join(out.HighRiskCustomers, ", "),
				"high_value_txn_count":          strconv.FormatInt(out.HighValueTxnCount, 10),
				"flagged_fraud_txn_count":       strconv.FormatInt(out.FlaggedFraudTxnCount, 10),
			})
			return nil
		},
	}
	cmd.AddCommand(newRiskLookupCmd(e))
	return cmd
}

func newRiskLookupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "lookup <entity> <id>",
		Short:     "Show one customer, account, merchant or transaction",
		Args:      cobra.ExactArgs(2),
		ValidArgs: risk.Entities(),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := e.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			svc := risk.NewService(query.NewService(sess, e.logger), pipeline.DefaultSchema, e.riskThresholds())
			rec, err := svc.Lookup(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), rec)
			}
			PrintDetail(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}
