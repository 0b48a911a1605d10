package assessments

import (
	"encoding/json"
	"time"
)

// Risk levels assigned to a completed questionnaire.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Assessment is a self-assessment questionnaire filled in for a
// counterparty. Answers are stored as an opaque JSON document.
type Assessment struct {
	ID           int64           `json:"id"`
	TenantID     int64           `json:"tenant_id"`
	Counterparty string          `json:"counterparty"`
	Answers      json.RawMessage `json:"answers"`
	RiskLevel    string          `json:"risk_level"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
