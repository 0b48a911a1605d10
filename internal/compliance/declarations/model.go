package declarations

import "time"

// Declaration statuses.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusVerified  = "verified"
	StatusRejected  = "rejected"
)

// Declaration is a due-diligence statement covering a supplier shipment.
type Declaration struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	Reference   string     `json:"reference"`
	SupplierID  int64      `json:"supplier_id"`
	Commodity   string     `json:"commodity"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
