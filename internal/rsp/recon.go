// Package rsp reconciles collector settlements against stored orders and
// books them in the seller's ledger.
package rsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"ondc-bpp/internal/metrics"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/storage"
)

// Reconciliation statuses.
const (
	ReconMatched  = "01"
	ReconDiff     = "02"
	ReconNotFound = "03"
	ReconError    = "04"
)

// Tolerance is the largest difference treated as a match (one paisa).
const Tolerance = 0.01

// ReconMessage is message for /receiver_recon.
type ReconMessage struct {
	ReconRequest ReconRequest `json:"recon_request"`
}

type ReconRequest struct {
	SettlementID string       `json:"settlement_id"`
	Orders       []ReconOrder `json:"orders"`
}

type ReconOrder struct {
	ID          string       `json:"id"`
	Settlements []Settlement `json:"settlements"`
}

type Settlement struct {
	Type         string `json:"type"`
	Amount       Amount `json:"amount"`
	PaymentRefNo string `json:"payment_ref_no,omitempty"`
}

// Amount accepts its value as either a JSON string or number.
type Amount struct {
	Currency string      `json:"currency"`
	Value    json.Number `json:"value"`
}

// Float parses the value; an empty value is zero.
func (a Amount) Float() (float64, error) {
	if a.Value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(a.Value), 64)
}

// OnReconMessage is message for /on_receiver_recon.
type OnReconMessage struct {
	ReconResponse ReconResponse `json:"recon_response"`
}

type ReconResponse struct {
	SettlementID string        `json:"settlement_id"`
	Orders       []OrderResult `json:"orders"`
	UpdatedAt    string        `json:"updated_at"`
}

type OrderResult struct {
	ID           string      `json:"id"`
	SettlementID string      `json:"settlement_id"`
	ReconStatus  string      `json:"recon_status"`
	DiffAmount   model.Price `json:"diff_amount"`
	Message      Note        `json:"message"`
}

type Note struct {
	Code      string `json:"code"`
	ShortDesc string `json:"short_desc"`
}

// Service reconciles settlement batches.
type Service struct {
	orders     storage.Orders
	ledgers    []Ledger
	compliance storage.ComplianceSink
	currency   string
	now        func() time.Time
}

func NewService(orders storage.Orders, compliance storage.ComplianceSink, currency string, ledgers ...Ledger) *Service {
	if compliance == nil {
		compliance = storage.Discard{}
	}
	if currency == "" {
		currency = "INR"
	}
	return &Service{orders: orders, ledgers: ledgers, compliance: compliance, currency: currency, now: time.Now}
}

// Reconcile checks every order of the batch and returns the
// on_receiver_recon payload. Per-order problems are reported in the order's
// result; only a malformed batch fails as a whole.
func (s *Service) Reconcile(ctx context.Context, msg ReconMessage) (OnReconMessage, error) {
	req := msg.ReconRequest
	if req.SettlementID == "" {
		return OnReconMessage{}, ondcerr.New(ondcerr.CodeReconFailed, "Missing settlement_id")
	}
	results := make([]OrderResult, 0, len(req.Orders))
	for _, o := range req.Orders {
		r := s.reconcileOrder(ctx, o, req.SettlementID)
		metrics.ReconOutcomesTotal.WithLabelValues(r.ReconStatus).Inc()
		results = append(results, r)
	}
	return OnReconMessage{ReconResponse: ReconResponse{
		SettlementID: req.SettlementID,
		Orders:       results,
		UpdatedAt:    s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}}, nil
}

func (s *Service) reconcileOrder(ctx context.Context, o ReconOrder, settlementID string) OrderResult {
	res := OrderResult{
		ID:           o.ID,
		SettlementID: settlementID,
		ReconStatus:  ReconMatched,
		DiffAmount:   model.Price{Currency: s.currency, Value: "0"},
		Message:      Note{Code: "SUCCESS", ShortDesc: "Reconciliation successful"},
	}
	fail := func(err error) OrderResult {
		res.ReconStatus = ReconError
		res.Message = Note{Code: "PROCESSING_ERROR", ShortDesc: err.Error()}
		return res
	}

	rec, found, err := s.orders.GetOrder(ctx, o.ID)
	if err != nil {
		return fail(err)
	}
	if !found {
		res.ReconStatus = ReconNotFound
		res.Message = Note{Code: "ORDER_NOT_FOUND", ShortDesc: fmt.Sprintf("Order %s not found in system", o.ID)}
		return res
	}

	var actual float64
	for _, st := range o.Settlements {
		if st.Type != TypeOrder {
			continue
		}
		v, err := st.Amount.Float()
		if err != nil {
			return fail(fmt.Errorf("invalid settlement amount %q", st.Amount.Value))
		}
		actual += v
	}
	diff := rec.TotalAmount - actual
	if math.Abs(diff) > Tolerance {
		res.ReconStatus = ReconDiff
		res.DiffAmount.Value = strconv.FormatFloat(math.Abs(diff), 'f', 2, 64)
		res.Message = Note{Code: "DIFF_FOUND", ShortDesc: fmt.Sprintf("Amount difference of %.2f found", math.Abs(diff))}
	}

	if err := s.post(ctx, rec, o.Settlements, settlementID, diff); err != nil {
		log.Printf("RSP: ledger posting for order %s failed: %v", o.ID, err)
		return fail(err)
	}
	s.record(ctx, res)
	return res
}

func (s *Service) post(ctx context.Context, rec model.OrderRecord, lines []Settlement, settlementID string, diff float64) error {
	for _, l := range s.ledgers {
		if l.Available(ctx) {
			return l.Post(ctx, rec, lines, settlementID, diff)
		}
	}
	return fmt.Errorf("no ledger available")
}

func (s *Service) record(ctx context.Context, r OrderResult) {
	status := "Success"
	if r.ReconStatus != ReconMatched {
		status = "Failed"
	}
	entry := model.ComplianceLog{
		LogType:      model.ComplianceRSP,
		Action:       "receiver_recon",
		OrderID:      r.ID,
		SettlementID: r.SettlementID,
		ReconStatus:  r.ReconStatus,
		Status:       status,
		Message:      r.Message.ShortDesc,
		Timestamp:    s.now().UTC(),
	}
	if err := s.compliance.Record(ctx, entry); err != nil {
		log.Printf("RSP: compliance record for %s failed: %v", r.ID, err)
	}
}
