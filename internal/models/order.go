package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order is one raw order from the account's purchase history. Orders are
// written by upstream import and read-only to the engine.
type Order struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TenantID    uuid.UUID `json:"tenant_id" db:"tenant_id"`
	AccountID   uuid.UUID `json:"account_id" db:"account_id"`
	OrderedAt   time.Time `json:"ordered_at" db:"ordered_at"`
	TotalAmount float64   `json:"total_amount" db:"total_amount"`
}

// OrderLine is the per-category portion of an order's total.
type OrderLine struct {
	OrderID    uuid.UUID `json:"order_id" db:"order_id"`
	CategoryID uuid.UUID `json:"category_id" db:"category_id"`
	Amount     float64   `json:"amount" db:"amount"`
}

// Tenant is one customer organization. The scheduler iterates active tenants;
// Plan feeds the feature-limit checks performed before enrollment and profile
// approval.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Plan      string    `json:"plan" db:"plan"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SyncStatus represents sync outbox item status values
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSent    SyncStatus = "sent"
	SyncFailed  SyncStatus = "failed"
)

// SyncPayload is the loosely-shaped document pushed to the external system.
// It is validated on read rather than trusted, and stored as a JSON column.
type SyncPayload map[string]interface{}

// Value implements driver.Valuer for SyncPayload
func (p SyncPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for SyncPayload
func (p *SyncPayload) Scan(value interface{}) error {
	if value == nil {
		*p = SyncPayload{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into SyncPayload", value)
	}

	return json.Unmarshal(bytes, p)
}

// SyncItem is one pending push of recomputed metrics to the external system.
// Maintenance retries drain these, continuing past individual failures.
type SyncItem struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	TenantID  uuid.UUID   `json:"tenant_id" db:"tenant_id"`
	AccountID uuid.UUID   `json:"account_id" db:"account_id"`
	Payload   SyncPayload `json:"payload" db:"payload"`
	Attempts  int         `json:"attempts" db:"attempts"`
	LastError string      `json:"last_error" db:"last_error"`
	Status    string      `json:"status" db:"status"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}
