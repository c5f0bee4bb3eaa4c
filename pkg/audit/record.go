package audit

import (
	"fmt"
	"maps"
	"time"
)

// Action is the kind of operation an audit record describes.
type Action string

const (
	ActionCreate     Action = "CREATE"
	ActionUpdate     Action = "UPDATE"
	ActionDelete     Action = "DELETE"
	ActionRead       Action = "READ"
	ActionStockIn    Action = "STOCK_IN"
	ActionStockOut   Action = "STOCK_OUT"
	ActionTransfer   Action = "TRANSFER"
	ActionAdjustment Action = "ADJUSTMENT"
	ActionBulkCreate Action = "BULK_CREATE"
	ActionBulkUpdate Action = "BULK_UPDATE"
	ActionBulkDelete Action = "BULK_DELETE"
	ActionLogin      Action = "LOGIN"
	ActionLogout     Action = "LOGOUT"
	ActionExport     Action = "EXPORT"
	ActionImport     Action = "IMPORT"
)

var actions = map[Action]struct{}{
	ActionCreate: {}, ActionUpdate: {}, ActionDelete: {}, ActionRead: {},
	ActionStockIn: {}, ActionStockOut: {}, ActionTransfer: {}, ActionAdjustment: {},
	ActionBulkCreate: {}, ActionBulkUpdate: {}, ActionBulkDelete: {},
	ActionLogin: {}, ActionLogout: {}, ActionExport: {}, ActionImport: {},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

// Change is one field difference between two snapshots.
type Change struct {
	From any `json:"from" bson:"from"`
	To   any `json:"to" bson:"to"`
}

// Changes maps field names to their difference.
type Changes map[string]Change

// Record is one immutable audit trail entry.
type Record struct {
	ID            string         `json:"id" bson:"_id"`
	TenantID      string         `json:"tenant_id,omitempty" bson:"tenant_id"`
	Action        Action         `json:"action" bson:"action"`
	EntityType    string         `json:"entity_type" bson:"entity_type"`
	EntityID      string         `json:"entity_id,omitempty" bson:"entity_id"`
	UserID        string         `json:"user_id,omitempty" bson:"user_id"`
	UserEmail     string         `json:"user_email,omitempty" bson:"user_email"`
	SessionID     string         `json:"session_id,omitempty" bson:"session_id"`
	IPAddress     string         `json:"ip_address,omitempty" bson:"ip_address"`
	UserAgent     string         `json:"user_agent,omitempty" bson:"user_agent"`
	OldValues     map[string]any `json:"old_values,omitempty" bson:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty" bson:"new_values,omitempty"`
	Changes       Changes        `json:"changes,omitempty" bson:"changes,omitempty"`
	Reason        string         `json:"reason,omitempty" bson:"reason"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty" bson:"transaction_id"`
	CorrelationID string         `json:"correlation_id,omitempty" bson:"correlation_id"`
	RequestID     string         `json:"request_id,omitempty" bson:"request_id"`
	Success       bool           `json:"success" bson:"success"`
	ErrorMessage  string         `json:"error_message,omitempty" bson:"error_message"`
	DurationMS    int64          `json:"duration_ms" bson:"duration_ms"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

// Validate checks the fields every stored record must carry.
func (r *Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case r.Action == "":
		return fmt.Errorf("%w: action is required", ErrInvalidRecord)
	case !r.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRecord, r.Action)
	case r.EntityType == "":
		return fmt.Errorf("%w: entity type is required", ErrInvalidRecord)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrInvalidRecord)
	}
	return nil
}

// Clone returns a copy whose maps can be modified independently.
func (r Record) Clone() Record {
	r.OldValues = maps.Clone(r.OldValues)
	r.NewValues = maps.Clone(r.NewValues)
	r.Changes = maps.Clone(r.Changes)
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

// Actor returns the user identifier used for breakdowns: the id when set,
// otherwise the email, otherwise "system".
func (r *Record) Actor() string {
	switch {
	case r.UserID != "":
		return r.UserID
	case r.UserEmail != "":
		return r.UserEmail
	}
	return "system"
}
