// Package igm handles issue and grievance management: buyer issues become
// tickets in the seller's support backend and ticket progress is reported
// back over on_issue / on_issue_status.
package igm

import "strings"

// Issue categories.
var Categories = map[string]string{
	"ITEM":        "Item related issue",
	"FULFILLMENT": "Fulfillment related issue",
	"AGENT":       "Agent related issue",
	"PAYMENT":     "Payment related issue",
	"ORDER":       "Order related issue",
}

// Issue sub-categories.
var SubCategories = map[string]string{
	"ITM01": "Missing items",
	"ITM02": "Quantity issue",
	"ITM03": "Quality issue",
	"ITM04": "Wrong item delivered",
	"ITM05": "Damaged item",
	"FLM01": "Delivery delayed",
	"FLM02": "Order not received",
	"FLM03": "Wrong delivery address",
	"FLM04": "Packaging issue",
	"PMT01": "Refund not received",
	"PMT02": "Double charged",
	"PMT03": "Payment failed but order placed",
}

// Issue statuses on the wire.
const (
	StatusOpen       = "OPEN"
	StatusProcessing = "PROCESSING"
	StatusResolved   = "RESOLVED"
	StatusClosed     = "CLOSED"
)

var toOndc = map[string]string{
	"Open":     StatusOpen,
	"Replied":  StatusProcessing,
	"Resolved": StatusResolved,
	"Closed":   StatusClosed,
}

var fromOndc = map[string]string{
	StatusOpen:       "Open",
	StatusProcessing: "Replied",
	StatusResolved:   "Resolved",
	StatusClosed:     "Closed",
}

// OndcStatus maps a ticket status to the wire status. Unknown statuses are
// reported as OPEN.
func OndcStatus(ticketStatus string) string {
	if s, ok := toOndc[ticketStatus]; ok {
		return s
	}
	return StatusOpen
}

// TicketStatus maps a wire status to a ticket status, defaulting to Open.
func TicketStatus(ondcStatus string) string {
	if s, ok := fromOndc[strings.ToUpper(ondcStatus)]; ok {
		return s
	}
	return "Open"
}

// IssueMessage is message for /issue.
type IssueMessage struct {
	Issue Issue `json:"issue"`
}

// IssueStatusMessage is message for /issue_status.
type IssueStatusMessage struct {
	IssueID string `json:"issue_id"`
}

type Issue struct {
	ID              string          `json:"id"`
	Category        string          `json:"category"`
	SubCategory     string          `json:"sub_category"`
	IssueType       string          `json:"issue_type,omitempty"`
	ComplainantInfo ComplainantInfo `json:"complainant_info"`
	OrderDetails    OrderDetails    `json:"order_details"`
	Description     Description     `json:"description"`
	Resolution      *Resolution     `json:"resolution,omitempty"`
}

type ComplainantInfo struct {
	Person  Person  `json:"person"`
	Contact Contact `json:"contact"`
}

type Person struct {
	Name string `json:"name"`
}

type Contact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Org struct {
	Name string `json:"name"`
}

type OrderDetails struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id,omitempty"`
}

type Description struct {
	ShortDesc string   `json:"short_desc"`
	LongDesc  string   `json:"long_desc,omitempty"`
	Images    []string `json:"images,omitempty"`
}

type Resolution struct {
	ShortDesc       string `json:"short_desc,omitempty"`
	ActionTriggered string `json:"action_triggered"`
}

// OnIssueMessage is message for /on_issue.
type OnIssueMessage struct {
	Issue OnIssue `json:"issue"`
}

type OnIssue struct {
	ID           string       `json:"id"`
	IssueStatus  string       `json:"issue_status"`
	IssueActions IssueActions `json:"issue_actions"`
	CreatedAt    string       `json:"created_at"`
	UpdatedAt    string       `json:"updated_at"`
}

type IssueActions struct {
	RespondentActions []RespondentAction `json:"respondent_actions"`
}

type RespondentAction struct {
	RespondentAction string    `json:"respondent_action"`
	ShortDesc        string    `json:"short_desc"`
	UpdatedAt        string    `json:"updated_at"`
	UpdatedBy        UpdatedBy `json:"updated_by"`
}

type UpdatedBy struct {
	Org     Org     `json:"org"`
	Contact Contact `json:"contact"`
	Person  Person  `json:"person"`
}

// OnIssueStatusMessage is message for /on_issue_status.
type OnIssueStatusMessage struct {
	Issue OnIssueStatus `json:"issue"`
}

type OnIssueStatus struct {
	ID          string     `json:"id"`
	IssueStatus string     `json:"issue_status"`
	Resolution  Resolution `json:"resolution"`
	UpdatedAt   string     `json:"updated_at"`
}
