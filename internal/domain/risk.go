package domain

// Default thresholds for the fraud risk profile.
const (
	DefaultHighRiskMerchantScore = 40
	DefaultHighValueAmount       = 5000
)

// RiskThresholds configures what counts as high risk.
type RiskThresholds struct {
	MerchantRiskScore float64
	HighValueAmount   float64
}

// RiskProfile summarises merchants and customers exposed to fraud risk.
type RiskProfile struct {
	Thresholds           RiskThresholds
	HighRiskMerchants    []string
	HighRiskCustomers    []string
	HighValueTxnCount    int64
	FlaggedFraudTxnCount int64
}

// Entity kinds that can be looked up by ID.
const (
	EntityCustomer    = "customer"
	EntityAccount     = "account"
	EntityMerchant    = "merchant"
	EntityTransaction = "transaction"
)

// Record is one warehouse row keyed by column name.
type Record map[string]any
