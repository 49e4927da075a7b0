package igm

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"ondc-bpp/internal/callback"
	"ondc-bpp/internal/config"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/storage"
)

// Service routes issues through an ordered chain of ticketing backends.
type Service struct {
	backends   []Backend
	client     *callback.Client
	compliance storage.ComplianceSink

	org  string
	care Contact
	now  func() time.Time
}

func NewService(cfg *config.Config, client *callback.Client, compliance storage.ComplianceSink, backends ...Backend) *Service {
	org := cfg.Store.LegalEntityName
	if org == "" {
		org = cfg.SubscriberID
	}
	if compliance == nil {
		compliance = storage.Discard{}
	}
	return &Service{
		backends:   backends,
		client:     client,
		compliance: compliance,
		org:        org,
		care:       Contact{Phone: cfg.Store.ConsumerCarePhone, Email: cfg.Store.ConsumerCareEmail},
		now:        time.Now,
	}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// find looks the issue up in every backend, in chain order.
func (s *Service) find(ctx context.Context, issueID string) (Ticket, Backend, bool, error) {
	for _, b := range s.backends {
		t, found, err := b.Find(ctx, issueID)
		if err != nil {
			return nil, nil, false, err
		}
		if found {
			return t, b, true, nil
		}
	}
	return nil, nil, false, nil
}

// Open files the issue with the first available backend and returns the
// on_issue acknowledgement. A repeated issue id returns the existing ticket.
func (s *Service) Open(ctx context.Context, in model.Context, msg IssueMessage) (OnIssueMessage, error) {
	is := msg.Issue
	if is.ID == "" {
		return OnIssueMessage{}, ondcerr.New(ondcerr.CodeInvalidRequest, "Missing issue id")
	}

	t, _, found, err := s.find(ctx, is.ID)
	if err != nil {
		return OnIssueMessage{}, err
	}
	if !found {
		var backend Backend
		for _, b := range s.backends {
			if b.Available(ctx) {
				backend = b
				break
			}
		}
		if backend == nil {
			return OnIssueMessage{}, ondcerr.New(ondcerr.CodeInternal, "No ticketing backend available")
		}
		fields := OndcFields{
			IssueID:     is.ID,
			OrderID:     is.OrderDetails.ID,
			Category:    is.Category,
			SubCategory: is.SubCategory,
			Context:     in,
		}
		t, err = backend.Create(ctx, ComplaintFrom(is), fields)
		if err != nil {
			return OnIssueMessage{}, err
		}
		log.Printf("IGM: issue %s filed with %s as %s", is.ID, backend.Name(), t.ID())
	}

	s.record(ctx, in, "issue", is.ID, OndcStatus(t.Status()), "")
	now := s.timestamp()
	return OnIssueMessage{Issue: OnIssue{
		ID:          is.ID,
		IssueStatus: OndcStatus(t.Status()),
		IssueActions: IssueActions{RespondentActions: []RespondentAction{{
			RespondentAction: StatusProcessing,
			ShortDesc:        "Issue received and being processed",
			UpdatedAt:        now,
			UpdatedBy: UpdatedBy{
				Org:     Org{Name: s.org},
				Contact: s.care,
				Person:  Person{Name: "Support Team"},
			},
		}}},
		CreatedAt: now,
		UpdatedAt: now,
	}}, nil
}

// Status returns the on_issue_status payload for an issue.
func (s *Service) Status(ctx context.Context, in model.Context, msg IssueStatusMessage) (OnIssueStatusMessage, error) {
	if msg.IssueID == "" {
		return OnIssueStatusMessage{}, ondcerr.New(ondcerr.CodeInvalidRequest, "Missing issue_id")
	}
	t, _, found, err := s.find(ctx, msg.IssueID)
	if err != nil {
		return OnIssueStatusMessage{}, err
	}
	if !found {
		return OnIssueStatusMessage{}, ondcerr.Newf(ondcerr.CodeOrderNotFound, "Issue not found: %s", msg.IssueID)
	}
	out := s.statusMessage(msg.IssueID, t)
	s.record(ctx, in, "issue_status", msg.IssueID, out.Issue.IssueStatus, "")
	return out, nil
}

func (s *Service) statusMessage(issueID string, t Ticket) OnIssueStatusMessage {
	status := OndcStatus(t.Status())
	remarks := t.Resolution()
	if len(remarks) > 200 {
		remarks = remarks[:200]
	}
	if remarks == "" {
		remarks = "Issue is " + status
	}
	action := "RESOLVE"
	if status == StatusOpen {
		action = "NO-ACTION"
	}
	return OnIssueStatusMessage{Issue: OnIssueStatus{
		ID:          issueID,
		IssueStatus: status,
		Resolution:  Resolution{ShortDesc: remarks, ActionTriggered: action},
		UpdatedAt:   s.timestamp(),
	}}
}

// TicketStatusChanged applies a ticket status change made by support staff
// and pushes an unsolicited on_issue_status to the buyer app that raised
// the issue. Tickets without a stored callback address are updated only.
func (s *Service) TicketStatusChanged(ctx context.Context, issueID, status, resolution string) (Ticket, error) {
	_, backend, found, err := s.find(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ondcerr.Newf(ondcerr.CodeOrderNotFound, "Issue not found: %s", issueID)
	}
	t, found, err := backend.SetStatus(ctx, issueID, status, resolution)
	if err != nil {
		return nil, err
	}
	if !found || t == nil {
		return nil, ondcerr.Newf(ondcerr.CodeOrderNotFound, "Issue not found: %s", issueID)
	}

	in := t.Ondc().Context
	if in.BapURI == "" {
		log.Printf("IGM: issue %s moved to %s; no callback address on %s ticket", issueID, status, backend.Name())
		return t, nil
	}
	in.Action = "issue_status"
	cb := model.Callback{Context: s.client.ReplyContext(in), Message: s.statusMessage(issueID, t)}
	cb.Context.MessageID = uuid.NewString()

	_, err = s.client.Send(ctx, cb)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	s.record(ctx, cb.Context, "on_issue_status", issueID, OndcStatus(t.Status()), errMsg)
	return t, err
}

func (s *Service) record(ctx context.Context, c model.Context, action, issueID, status, errMsg string) {
	entry := model.ComplianceLog{
		LogType:       model.ComplianceIGM,
		Action:        action,
		TransactionID: c.TransactionID,
		MessageID:     c.MessageID,
		BapID:         c.BapID,
		IssueID:       issueID,
		Status:        status,
		Message:       errMsg,
		Timestamp:     s.now().UTC(),
	}
	if err := s.compliance.Record(ctx, entry); err != nil {
		log.Printf("IGM: compliance record for %s failed: %v", issueID, err)
	}
}
