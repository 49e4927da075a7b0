package igm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ondc-bpp/internal/callback"
	"ondc-bpp/internal/config"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/signing"
	"ondc-bpp/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		SubscriberID:    "seller.example.com",
		SubscriberURL:   "https://seller.example.com/ondc",
		CallbackTimeout: 2 * time.Second,
		Store: config.StoreSettings{
			LegalEntityName:   "Kirana Stores",
			ConsumerCarePhone: "9999999999",
			ConsumerCareEmail: "care@example.com",
		},
	}
}

func newService(t *testing.T, backends ...Backend) *Service {
	t.Helper()
	priv, _, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := signing.NewSigner("seller.example.com", "uk-1", priv)
	require.NoError(t, err)
	cfg := testConfig()
	return NewService(cfg, callback.NewClient(cfg, signer), nil, backends...)
}

func issueContext(bapURI string) model.Context {
	return model.Context{
		Domain:        "ONDC:RET10",
		Country:       "IND",
		City:          "std:080",
		Action:        "issue",
		CoreVersion:   "1.2.0",
		BapID:         "buyer.example.com",
		BapURI:        bapURI,
		TransactionID: "txn-igm",
		MessageID:     "msg-igm",
		Timestamp:     "2024-01-01T10:00:00.000Z",
	}
}

func sampleIssue(id string) IssueMessage {
	return IssueMessage{Issue: Issue{
		ID:          id,
		Category:    "ITEM",
		SubCategory: "ITM04",
		ComplainantInfo: ComplainantInfo{
			Person:  Person{Name: "Asha"},
			Contact: Contact{Phone: "9876543210", Email: "asha@example.com"},
		},
		OrderDetails: OrderDetails{ID: "ORD-1"},
		Description:  Description{ShortDesc: "Wrong item", LongDesc: "Received salt instead of sugar"},
		Resolution:   &Resolution{ActionTriggered: "REFUND"},
	}}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		ticket string
		ondc   string
	}{
		{"Open", StatusOpen},
		{"Replied", StatusProcessing},
		{"Resolved", StatusResolved},
		{"Closed", StatusClosed},
		{"On Hold", StatusOpen},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ondc, OndcStatus(tt.ticket), tt.ticket)
	}
	assert.Equal(t, "Replied", TicketStatus("processing"))
	assert.Equal(t, "Open", TicketStatus("whatever"))
}

func TestOpenUsesFirstAvailableBackend(t *testing.T) {
	ctx := context.Background()
	hd := NewHelpdesk()
	erp := NewErp()
	svc := newService(t, hd, erp)

	out, err := svc.Open(ctx, issueContext("https://buyer"), sampleIssue("ISSUE-1"))
	require.NoError(t, err)
	assert.Equal(t, "ISSUE-1", out.Issue.ID)
	assert.Equal(t, StatusOpen, out.Issue.IssueStatus)
	require.Len(t, out.Issue.IssueActions.RespondentActions, 1)
	ra := out.Issue.IssueActions.RespondentActions[0]
	assert.Equal(t, StatusProcessing, ra.RespondentAction)
	assert.Equal(t, "Kirana Stores", ra.UpdatedBy.Org.Name)
	assert.Equal(t, "care@example.com", ra.UpdatedBy.Contact.Email)

	tk, found, err := hd.Find(ctx, "ISSUE-1")
	require.NoError(t, err)
	require.True(t, found)
	ticket := tk.(*HelpdeskTicket)
	assert.Equal(t, "Wrong item", ticket.Subject)
	assert.Contains(t, ticket.Description, "ITM04 - Wrong item delivered")
	assert.Equal(t, "ORD-1", ticket.Fields.OrderID)
	assert.Equal(t, "txn-igm", ticket.Fields.Context.TransactionID)

	_, found, err = erp.Find(ctx, "ISSUE-1")
	require.NoError(t, err)
	assert.False(t, found)

	// Same issue again is not filed twice.
	_, err = svc.Open(ctx, issueContext("https://buyer"), sampleIssue("ISSUE-1"))
	require.NoError(t, err)
	assert.Len(t, hd.tickets, 1)
}

func TestOpenFallsBackThroughChain(t *testing.T) {
	ctx := context.Background()
	hd := NewHelpdesk()
	hd.Disable()
	erp := NewErp()
	erp.Disable()
	logs := storage.NewMemory()
	fallback := NewLogBackend(logs)
	svc := newService(t, hd, erp, fallback)

	_, err := svc.Open(ctx, issueContext("https://buyer"), sampleIssue("ISSUE-2"))
	require.NoError(t, err)

	tk, found, err := fallback.Find(ctx, "ISSUE-2")
	require.NoError(t, err)
	require.True(t, found)
	rec := tk.(*FallbackLogRecord)
	assert.Equal(t, "Open", rec.Status())
	assert.Equal(t, "asha@example.com", rec.Complaint.ComplainantEmail)

	entry, found, err := logs.GetLog(ctx, rec.LogID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "issue", entry.Action)
	assert.Equal(t, model.LogReceived, entry.Status)

	out, err := svc.Status(ctx, issueContext("https://buyer"), IssueStatusMessage{IssueID: "ISSUE-2"})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, out.Issue.IssueStatus)
	assert.Equal(t, "NO-ACTION", out.Issue.Resolution.ActionTriggered)
	assert.Equal(t, "Issue is OPEN", out.Issue.Resolution.ShortDesc)
}

func TestOpenRejectsMissingID(t *testing.T) {
	svc := newService(t, NewHelpdesk())
	_, err := svc.Open(context.Background(), issueContext("https://buyer"), IssueMessage{})
	var oe *ondcerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, ondcerr.CodeInvalidRequest, oe.Code)
}

func TestStatusErrors(t *testing.T) {
	svc := newService(t, NewHelpdesk())
	ctx := context.Background()

	_, err := svc.Status(ctx, issueContext("https://buyer"), IssueStatusMessage{})
	var oe *ondcerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "20000", oe.Code)

	_, err = svc.Status(ctx, issueContext("https://buyer"), IssueStatusMessage{IssueID: "nope"})
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "30010", oe.Code)
	assert.Equal(t, "Issue not found: nope", oe.Message)
}

func TestTicketStatusChangedPushesOnIssueStatus(t *testing.T) {
	var got model.Callback
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	hd := NewHelpdesk()
	svc := newService(t, hd)
	_, err := svc.Open(ctx, issueContext(srv.URL), sampleIssue("ISSUE-3"))
	require.NoError(t, err)

	tk, err := svc.TicketStatusChanged(ctx, "ISSUE-3", "Resolved", "Refund initiated")
	require.NoError(t, err)
	assert.Equal(t, "Resolved", tk.Status())

	assert.Equal(t, "/on_issue_status", path)
	assert.Equal(t, "on_issue_status", got.Context.Action)
	assert.Equal(t, "txn-igm", got.Context.TransactionID)
	assert.NotEqual(t, "msg-igm", got.Context.MessageID)

	msg, _ := json.Marshal(got.Message)
	var status OnIssueStatusMessage
	require.NoError(t, json.Unmarshal(msg, &status))
	assert.Equal(t, StatusResolved, status.Issue.IssueStatus)
	assert.Equal(t, "RESOLVE", status.Issue.Resolution.ActionTriggered)
	assert.Equal(t, "Refund initiated", status.Issue.Resolution.ShortDesc)
}

func TestTicketStatusChangedOnErpIssueDoesNotCallBack(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	ctx := context.Background()
	svc := newService(t, NewErp())
	_, err := svc.Open(ctx, issueContext(srv.URL), sampleIssue("ISSUE-4"))
	require.NoError(t, err)

	tk, err := svc.TicketStatusChanged(ctx, "ISSUE-4", "Closed", "")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, OndcStatus(tk.Status()))
	assert.False(t, called)

	_, err = svc.TicketStatusChanged(ctx, "missing", "Closed", "")
	assert.Error(t, err)
}

func TestLogBackendResolves(t *testing.T) {
	ctx := context.Background()
	b := NewLogBackend(storage.NewMemory())
	_, err := b.Create(ctx, Complaint{IssueID: "I-9"}, OndcFields{IssueID: "I-9"})
	require.NoError(t, err)

	tk, found, err := b.SetStatus(ctx, "I-9", "Resolved", "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusResolved, OndcStatus(tk.Status()))

	tk, _, err = b.Find(ctx, "I-9")
	require.NoError(t, err)
	assert.Equal(t, "Resolved", tk.Status())
}

func TestLogBackendSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	first := newService(t, Backends([]string{"log"}, store)...)
	_, err := first.Open(ctx, issueContext(""), sampleIssue("ISSUE-7"))
	require.NoError(t, err)

	// A new process, or another replica, shares only the store.
	second := newService(t, Backends([]string{"log"}, store)...)
	out, err := second.Status(ctx, issueContext(""), IssueStatusMessage{IssueID: "ISSUE-7"})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, out.Issue.IssueStatus)

	tk, err := second.TicketStatusChanged(ctx, "ISSUE-7", "Resolved", "")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, OndcStatus(tk.Status()))

	entry, found, err := store.GetLog(ctx, "issue:ISSUE-7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.LogProcessed, entry.Status)
}

// vanishingBackend finds a ticket that is gone by the time its status is
// set.
type vanishingBackend struct{ *Helpdesk }

func (vanishingBackend) SetStatus(context.Context, string, string, string) (Ticket, bool, error) {
	return nil, false, nil
}

func TestTicketStatusChangedOnVanishedTicket(t *testing.T) {
	ctx := context.Background()
	hd := NewHelpdesk()
	svc := newService(t, vanishingBackend{hd})
	_, err := svc.Open(ctx, issueContext(""), sampleIssue("ISSUE-8"))
	require.NoError(t, err)

	tk, err := svc.TicketStatusChanged(ctx, "ISSUE-8", "Closed", "")
	assert.Nil(t, tk)
	var oe *ondcerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, ondcerr.CodeOrderNotFound, oe.Code)
}

func TestBackendsByName(t *testing.T) {
	bs := Backends([]string{"helpdesk", "bogus", "log"}, storage.NewMemory())
	require.Len(t, bs, 2)
	assert.Equal(t, "helpdesk", bs[0].Name())
	assert.Equal(t, "log", bs[1].Name())
}
