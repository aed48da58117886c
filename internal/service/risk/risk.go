// Package risk derives fraud risk summaries from the silver tables.
package risk

import (
	"context"
	"fmt"
	"strings"

	"fraud-lake/internal/ddl"
	"fraud-lake/internal/domain"
	"fraud-lake/internal/service/query"
)

// Silver table names.
const (
	TableCustomers    = "dim_customer"
	TableAccounts     = "dim_account"
	TableMerchants    = "dim_merchant"
	TableTransactions = "fact_transactions"
)

type entityTable struct {
	table string
	key   string
}

var entities = map[string]entityTable{
	domain.EntityCustomer:    {table: TableCustomers, key: "CUSTOMER_ID"},
	domain.EntityAccount:     {table: TableAccounts, key: "ACCOUNT_ID"},
	domain.EntityMerchant:    {table: TableMerchants, key: "MERCHANT_ID"},
	domain.EntityTransaction: {table: TableTransactions, key: "TXN_ID"},
}

// Entities returns the entity kinds Lookup accepts.
func Entities() []string {
	return []string{domain.EntityCustomer, domain.EntityAccount, domain.EntityMerchant, domain.EntityTransaction}
}

// Service answers risk questions over the silver schema.
type Service struct {
	q          *query.Service
	schema     string
	thresholds domain.RiskThresholds
}

// NewService creates a risk Service reading from schema (e.g. "SILVER").
func NewService(q *query.Service, schema string, thresholds domain.RiskThresholds) *Service {
	if thresholds.MerchantRiskScore == 0 {
		thresholds.MerchantRiskScore = domain.DefaultHighRiskMerchantScore
	}
	if thresholds.HighValueAmount == 0 {
		thresholds.HighValueAmount = domain.DefaultHighValueAmount
	}
	return &Service{q: q, schema: schema, thresholds: thresholds}
}

func (s *Service) table(name string) string {
	return ddl.QualifiedName(s.schema, name)
}

// Profile returns the high-risk merchants, the customers who made a
// high-value transaction at one of them, and transaction counters.
func (s *Service) Profile(ctx context.Context) (*domain.RiskProfile, error) {
	p := &domain.RiskProfile{Thresholds: s.thresholds}
	merchants, transactions := s.table(TableMerchants), s.table(TableTransactions)

	var err error
	p.HighRiskMerchants, err = s.firstColumn(ctx, fmt.Sprintf(
		`SELECT CAST(MERCHANT_ID AS VARCHAR) FROM %s
		WHERE TRY_CAST(RISK_SCORE AS DOUBLE) >= ?
		ORDER BY 1`, merchants),
		s.thresholds.MerchantRiskScore)
	if err != nil {
		return nil, fmt.Errorf("high-risk merchants: %w", err)
	}

	p.HighRiskCustomers, err = s.firstColumn(ctx, fmt.Sprintf(
		`SELECT DISTINCT CAST(t.CUSTOMER_ID AS VARCHAR) FROM %s t
		JOIN %s m ON t.MERCHANT_ID = m.MERCHANT_ID
		WHERE TRY_CAST(t.AMOUNT AS DOUBLE) >= ? AND TRY_CAST(m.RISK_SCORE AS DOUBLE) >= ?
		ORDER BY 1`, transactions, merchants),
		s.thresholds.HighValueAmount, s.thresholds.MerchantRiskScore)
	if err != nil {
		return nil, fmt.Errorf("high-risk customers: %w", err)
	}

	p.HighValueTxnCount, err = s.count(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE TRY_CAST(AMOUNT AS DOUBLE) >= ?`, transactions),
		s.thresholds.HighValueAmount)
	if err != nil {
		return nil, fmt.Errorf("high-value transactions: %w", err)
	}

	p.FlaggedFraudTxnCount, err = s.count(ctx, fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE TRY_CAST(IS_FRAUD AS INTEGER) = 1`, transactions))
	if err != nil {
		return nil, fmt.Errorf("flagged transactions: %w", err)
	}
	return p, nil
}

// Lookup returns the row of the given entity kind with the given ID.
func (s *Service) Lookup(ctx context.Context, entity, id string) (domain.Record, error) {
	et, ok := entities[strings.ToLower(entity)]
	if !ok {
		return nil, domain.ErrValidation("unknown entity %q: use one of %s", entity, strings.Join(Entities(), ", "))
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrValidation("%s id is required", entity)
	}

	res, err := s.q.Execute(ctx, fmt.Sprintf(
		`SELECT * FROM %s WHERE CAST(%s AS VARCHAR) = ? LIMIT 1`,
		s.table(et.table), ddl.QuoteIdentifier(et.key)), id)
	if err != nil {
		return nil, err
	}
	if res.RowCount == 0 {
		return nil, domain.ErrNotFound("%s %q not found", entity, id)
	}
	return res.Records()[0], nil
}

func (s *Service) firstColumn(ctx context.Context, sqlQuery string, args ...any) ([]string, error) {
	res, err := s.q.Execute(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, res.RowCount)
	for _, row := range res.Rows {
		if v, ok := row[0].(string); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) count(ctx context.Context, sqlQuery string, args ...any) (int64, error) {
	res, err := s.q.Execute(ctx, sqlQuery, args...)
	if err != nil {
		return 0, err
	}
	if res.RowCount == 0 {
		return 0, nil
	}
	n, ok := res.Rows[0][0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type %T", res.Rows[0][0])
	}
	return n, nil
}
