package suppliers

import "time"

// Supplier is a sourcing counterparty subject to due diligence. Rows are
// scoped to the tenant they were created in.
type Supplier struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Commodity string    `json:"commodity"`
	GeoNotes  string    `json:"geo_notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
