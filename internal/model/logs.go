package model

import (
	"encoding/json"
	"time"
)

// Webhook log statuses.
const (
	LogReceived  = "Received"
	LogProcessed = "Processed"
	LogFailed    = "Failed"
)

// Log directions.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// WebhookLog audits one protocol exchange. It is written on receipt and
// updated once the asynchronous handler finishes.
type WebhookLog struct {
	ID            string          `json:"id"`
	Action        string          `json:"action"`
	Direction     string          `json:"direction"`
	TransactionID string          `json:"transaction_id"`
	MessageID     string          `json:"message_id"`
	RequestBody   json.RawMessage `json:"request_body,omitempty"`
	ResponseBody  json.RawMessage `json:"response_body,omitempty"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Compliance log types.
const (
	ComplianceAPI   = "API"
	ComplianceIGM   = "IGM"
	ComplianceRSP   = "RSP"
	ComplianceError = "ERROR"
	ComplianceOrder = "ORDER"
)

// ComplianceLog is the network observability record kept per exchange,
// error, settlement line and order state change.
type ComplianceLog struct {
	LogType       string    `json:"log_type"`
	Action        string    `json:"action"`
	TransactionID string    `json:"transaction_id,omitempty"`
	MessageID     string    `json:"message_id,omitempty"`
	BapID         string    `json:"bap_id,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	IssueID       string    `json:"issue_id,omitempty"`
	SettlementID  string    `json:"settlement_id,omitempty"`
	ReconStatus   string    `json:"recon_status,omitempty"`
	FromState     string    `json:"from_state,omitempty"`
	ToState       string    `json:"to_state,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	Status        string    `json:"status"`
	LatencyMillis int64     `json:"latency_ms,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
