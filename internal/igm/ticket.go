package igm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ondc-bpp/internal/model"
	"ondc-bpp/internal/storage"
)

// OndcFields are the protocol references attached to a ticket. Context is
// the inbound /issue context, kept so later status changes can be pushed
// to the same buyer app.
type OndcFields struct {
	IssueID     string        `json:"issue_id"`
	OrderID     string        `json:"order_id,omitempty"`
	Category    string        `json:"category,omitempty"`
	SubCategory string        `json:"sub_category,omitempty"`
	Context     model.Context `json:"context"`
}

// Ticket is a support record in one of the ticketing backends.
type Ticket interface {
	ID() string
	// Status is the backend's own status vocabulary; see OndcStatus.
	Status() string
	Resolution() string
	SetOndcFields(f OndcFields)
	Ondc() OndcFields
}

// HelpdeskTicket lives in the helpdesk application and carries every ONDC
// reference.
type HelpdeskTicket struct {
	Name              string
	Subject           string
	Description       string
	Contact           string
	RaisedBy          string
	TicketStatus      string
	ResolutionDetails string
	Fields            OndcFields
}

func (t *HelpdeskTicket) ID() string                 { return t.Name }
func (t *HelpdeskTicket) Status() string             { return t.TicketStatus }
func (t *HelpdeskTicket) Resolution() string         { return t.ResolutionDetails }
func (t *HelpdeskTicket) SetOndcFields(f OndcFields) { t.Fields = f }
func (t *HelpdeskTicket) Ondc() OndcFields           { return t.Fields }

// ErpIssue is an ERP issue document. It only has room for the issue and
// order references, so status changes on it cannot be pushed to the buyer.
type ErpIssue struct {
	Name              string
	Subject           string
	Description       string
	Customer          string
	RaisedBy          string
	IssueStatus       string
	ResolutionDetails string
	IssueID           string
	OrderID           string
}

func (t *ErpIssue) ID() string         { return t.Name }
func (t *ErpIssue) Status() string     { return t.IssueStatus }
func (t *ErpIssue) Resolution() string { return t.ResolutionDetails }

func (t *ErpIssue) SetOndcFields(f OndcFields) {
	t.IssueID = f.IssueID
	t.OrderID = f.OrderID
}

func (t *ErpIssue) Ondc() OndcFields {
	return OndcFields{IssueID: t.IssueID, OrderID: t.OrderID}
}

// FallbackLogRecord keeps an issue in the webhook log when no ticketing
// system is available.
type FallbackLogRecord struct {
	LogID     string
	LogStatus string
	Fields    OndcFields
	Complaint Complaint
}

func (t *FallbackLogRecord) ID() string { return t.LogID }

func (t *FallbackLogRecord) Status() string {
	if t.LogStatus == model.LogProcessed {
		return "Resolved"
	}
	return "Open"
}

func (t *FallbackLogRecord) Resolution() string         { return "" }
func (t *FallbackLogRecord) SetOndcFields(f OndcFields) { t.Fields = f }
func (t *FallbackLogRecord) Ondc() OndcFields           { return t.Fields }

// Complaint is the backend-neutral content of an issue.
type Complaint struct {
	IssueID          string   `json:"issue_id"`
	Category         string   `json:"category"`
	SubCategory      string   `json:"sub_category"`
	OrderID          string   `json:"order_id"`
	ComplainantName  string   `json:"complainant_name"`
	ComplainantEmail string   `json:"complainant_email,omitempty"`
	ComplainantPhone string   `json:"complainant_phone,omitempty"`
	ShortDesc        string   `json:"short_desc,omitempty"`
	LongDesc         string   `json:"description,omitempty"`
	Images           []string `json:"images,omitempty"`
	ExpectedAction   string   `json:"expected_action,omitempty"`
}

// ComplaintFrom extracts the complaint carried by an /issue message.
func ComplaintFrom(is Issue) Complaint {
	c := Complaint{
		IssueID:          is.ID,
		Category:         is.Category,
		SubCategory:      is.SubCategory,
		OrderID:          is.OrderDetails.ID,
		ComplainantName:  is.ComplainantInfo.Person.Name,
		ComplainantEmail: is.ComplainantInfo.Contact.Email,
		ComplainantPhone: is.ComplainantInfo.Contact.Phone,
		ShortDesc:        is.Description.ShortDesc,
		LongDesc:         is.Description.LongDesc,
		Images:           is.Description.Images,
	}
	if c.ComplainantName == "" {
		c.ComplainantName = "Unknown"
	}
	if is.Resolution != nil {
		c.ExpectedAction = is.Resolution.ActionTriggered
	}
	return c
}

// Subject is the ticket title.
func (c Complaint) Subject() string {
	if c.ShortDesc != "" {
		return c.ShortDesc
	}
	return "ONDC Issue: " + c.IssueID
}

// Describe renders the ticket body. With labels the category codes are
// followed by their descriptions.
func (c Complaint) Describe(labels bool) string {
	category, sub := c.Category, c.SubCategory
	if labels {
		category += " - " + Categories[c.Category]
		sub += " - " + SubCategories[c.SubCategory]
	}
	body := c.LongDesc
	if body == "" {
		body = c.ShortDesc
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**ONDC Issue ID:** %s\n", c.IssueID)
	fmt.Fprintf(&b, "**Order ID:** %s\n", c.OrderID)
	fmt.Fprintf(&b, "**Category:** %s\n", category)
	fmt.Fprintf(&b, "**Sub-Category:** %s\n", sub)
	fmt.Fprintf(&b, "**Expected Action:** %s\n\n---\n\n%s\n", c.ExpectedAction, body)
	return b.String()
}

// Backend is one ticketing system in the chain.
type Backend interface {
	Name() string
	Available(ctx context.Context) bool
	Create(ctx context.Context, c Complaint, f OndcFields) (Ticket, error)
	Find(ctx context.Context, issueID string) (Ticket, bool, error)
	// SetStatus moves a ticket to status (backend vocabulary) and records
	// the resolution text when non-empty.
	SetStatus(ctx context.Context, issueID, status, resolution string) (Ticket, bool, error)
}

// Backends builds the chain named by names. Unknown names are skipped. Only
// "log" is backed by the shared store; helpdesk and erp are in-process
// registers that lose tickets on restart.
func Backends(names []string, logs storage.Logs) []Backend {
	var out []Backend
	for _, n := range names {
		switch n {
		case "helpdesk":
			log.Printf("IGM: helpdesk backend keeps tickets in process memory")
			out = append(out, NewHelpdesk())
		case "erp":
			log.Printf("IGM: erp backend keeps issues in process memory")
			out = append(out, NewErp())
		case "log":
			out = append(out, NewLogBackend(logs))
		default:
			log.Printf("IGM: unknown ticket backend %q skipped", n)
		}
	}
	return out
}

// Helpdesk is the in-process helpdesk. Contacts are deduplicated by email.
type Helpdesk struct {
	mu       sync.Mutex
	disabled bool
	tickets  map[string]HelpdeskTicket
	contacts map[string]string
}

func NewHelpdesk() *Helpdesk {
	return &Helpdesk{
		tickets:  make(map[string]HelpdeskTicket),
		contacts: make(map[string]string),
	}
}

// Disable takes the helpdesk out of the chain, as if it were not installed.
func (h *Helpdesk) Disable() {
	h.mu.Lock()
	h.disabled = true
	h.mu.Unlock()
}

func (h *Helpdesk) Name() string { return "helpdesk" }

func (h *Helpdesk) Available(context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.disabled
}

func (h *Helpdesk) contact(c Complaint) string {
	if c.ComplainantEmail != "" {
		if name, ok := h.contacts[c.ComplainantEmail]; ok {
			return name
		}
	}
	name := "HD-CONTACT-" + uuid.NewString()[:8]
	if c.ComplainantEmail != "" {
		h.contacts[c.ComplainantEmail] = name
	}
	return name
}

func (h *Helpdesk) Create(_ context.Context, c Complaint, f OndcFields) (Ticket, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := HelpdeskTicket{
		Name:         "HD-" + uuid.NewString(),
		Subject:      c.Subject(),
		Description:  c.Describe(true),
		Contact:      h.contact(c),
		RaisedBy:     c.ComplainantEmail,
		TicketStatus: "Open",
	}
	t.SetOndcFields(f)
	h.tickets[f.IssueID] = t
	log.Printf("IGM: created helpdesk ticket %s for issue %s", t.Name, f.IssueID)
	return &t, nil
}

func (h *Helpdesk) Find(_ context.Context, issueID string) (Ticket, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tickets[issueID]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

func (h *Helpdesk) SetStatus(_ context.Context, issueID, status, resolution string) (Ticket, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tickets[issueID]
	if !ok {
		return nil, false, nil
	}
	t.TicketStatus = status
	if resolution != "" {
		t.ResolutionDetails = resolution
	}
	h.tickets[issueID] = t
	return &t, true, nil
}

// Erp is the in-process ERP issue register. Customers are deduplicated by
// email, then phone.
type Erp struct {
	mu        sync.Mutex
	disabled  bool
	issues    map[string]ErpIssue
	customers map[string]string
}

func NewErp() *Erp {
	return &Erp{
		issues:    make(map[string]ErpIssue),
		customers: make(map[string]string),
	}
}

func (e *Erp) Disable() {
	e.mu.Lock()
	e.disabled = true
	e.mu.Unlock()
}

func (e *Erp) Name() string { return "erp" }

func (e *Erp) Available(context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.disabled
}

func (e *Erp) customer(c Complaint) string {
	for _, k := range []string{c.ComplainantEmail, c.ComplainantPhone} {
		if k == "" {
			continue
		}
		if name, ok := e.customers[k]; ok {
			return name
		}
	}
	name := c.ComplainantName
	if name == "" || name == "Unknown" {
		name = "ONDC Customer"
	}
	name += " " + uuid.NewString()[:4]
	for _, k := range []string{c.ComplainantEmail, c.ComplainantPhone} {
		if k != "" {
			e.customers[k] = name
		}
	}
	return name
}

func (e *Erp) Create(_ context.Context, c Complaint, f OndcFields) (Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := ErpIssue{
		Name:        "ISS-" + uuid.NewString(),
		Subject:     c.Subject(),
		Description: c.Describe(false),
		Customer:    e.customer(c),
		RaisedBy:    c.ComplainantEmail,
		IssueStatus: "Open",
	}
	t.SetOndcFields(f)
	e.issues[f.IssueID] = t
	return &t, nil
}

func (e *Erp) Find(_ context.Context, issueID string) (Ticket, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.issues[issueID]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

func (e *Erp) SetStatus(_ context.Context, issueID, status, resolution string) (Ticket, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.issues[issueID]
	if !ok {
		return nil, false, nil
	}
	t.IssueStatus = status
	if resolution != "" {
		t.ResolutionDetails = resolution
	}
	e.issues[issueID] = t
	return &t, true, nil
}

// LogBackend records issues as webhook log entries in the shared store, so
// tickets survive restarts and are visible to every replica. It is always
// available.
type LogBackend struct {
	logs storage.Logs
	now  func() time.Time
}

func NewLogBackend(logs storage.Logs) *LogBackend {
	return &LogBackend{logs: logs, now: time.Now}
}

func (l *LogBackend) Name() string { return "log" }

func (l *LogBackend) Available(context.Context) bool { return l.logs != nil }

// issueLogID is the log id an issue is recorded under.
func issueLogID(issueID string) string { return "issue:" + issueID }

type logBody struct {
	Complaint Complaint  `json:"complaint"`
	Ondc      OndcFields `json:"ondc"`
}

func (l *LogBackend) Create(ctx context.Context, c Complaint, f OndcFields) (Ticket, error) {
	body, err := json.Marshal(logBody{Complaint: c, Ondc: f})
	if err != nil {
		return nil, fmt.Errorf("encode issue record: %w", err)
	}
	now := l.now().UTC()
	entry := model.WebhookLog{
		ID:            issueLogID(f.IssueID),
		Action:        "issue",
		Direction:     model.Inbound,
		TransactionID: f.Context.TransactionID,
		MessageID:     f.Context.MessageID,
		RequestBody:   body,
		Status:        model.LogReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.logs.CreateLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("store issue record: %w", err)
	}
	t := &FallbackLogRecord{LogID: entry.ID, LogStatus: entry.Status, Complaint: c}
	t.SetOndcFields(f)
	return t, nil
}

func (l *LogBackend) Find(ctx context.Context, issueID string) (Ticket, bool, error) {
	id := issueLogID(issueID)
	entry, found, err := l.logs.GetLog(ctx, id)
	if err != nil || !found || entry.Action != "issue" {
		return nil, false, err
	}
	var body logBody
	if err := json.Unmarshal(entry.RequestBody, &body); err != nil {
		return nil, false, fmt.Errorf("decode issue record %s: %w", id, err)
	}
	return &FallbackLogRecord{LogID: entry.ID, LogStatus: entry.Status, Fields: body.Ondc, Complaint: body.Complaint}, true, nil
}

// SetStatus marks the record Processed once the issue is resolved or closed.
func (l *LogBackend) SetStatus(ctx context.Context, issueID, status, _ string) (Ticket, bool, error) {
	t, found, err := l.Find(ctx, issueID)
	if err != nil || !found {
		return nil, found, err
	}
	rec := t.(*FallbackLogRecord)
	if status == "Resolved" || status == "Closed" {
		if err := l.logs.FinishLog(ctx, rec.LogID, model.LogProcessed, nil, ""); err != nil {
			return nil, true, err
		}
		rec.LogStatus = model.LogProcessed
	}
	return rec, true, nil
}
