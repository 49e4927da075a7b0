package rsp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/storage"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []model.ComplianceLog
}

func (r *recordingSink) Record(_ context.Context, e model.ComplianceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

type brokenOrders struct{ storage.Orders }

func (brokenOrders) GetOrder(context.Context, string) (model.OrderRecord, bool, error) {
	return model.OrderRecord{}, false, errors.New("store down")
}

func seed(t *testing.T) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	require.NoError(t, store.SaveOrder(context.Background(), model.OrderRecord{
		OndcOrderID: "ORD-1",
		Items:       []model.OrderLine{{ProductID: "P1", Quantity: 2, Price: 100}},
		Billing:     model.Billing{Name: "Asha"},
		SalesOrder:  "SO-1",
	}))
	return store
}

func decodeRecon(t *testing.T, raw string) ReconMessage {
	t.Helper()
	var m ReconMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestReconcileStatuses(t *testing.T) {
	store := seed(t)
	sink := &recordingSink{}
	payments := NewPaymentLedger()
	svc := NewService(store, sink, "INR", payments)

	msg := decodeRecon(t, `{"recon_request":{"settlement_id":"SET-1","orders":[
		{"id":"ORD-1","settlements":[
			{"type":"ORDER","amount":{"currency":"INR","value":"150"},"payment_ref_no":"UTR-1"},
			{"type":"ORDER","amount":{"currency":"INR","value":50},"payment_ref_no":"UTR-2"},
			{"type":"WITHHOLDING","amount":{"currency":"INR","value":"10"}}]},
		{"id":"ORD-404","settlements":[]}]}}`)

	out, err := svc.Reconcile(context.Background(), msg)
	require.NoError(t, err)
	resp := out.ReconResponse
	assert.Equal(t, "SET-1", resp.SettlementID)
	require.Len(t, resp.Orders, 2)

	assert.Equal(t, ReconMatched, resp.Orders[0].ReconStatus)
	assert.Equal(t, "0", resp.Orders[0].DiffAmount.Value)
	assert.Equal(t, "SUCCESS", resp.Orders[0].Message.Code)

	assert.Equal(t, ReconNotFound, resp.Orders[1].ReconStatus)
	assert.Equal(t, "ORDER_NOT_FOUND", resp.Orders[1].Message.Code)

	entries := payments.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Receive", entries[0].PaymentType)
	assert.Equal(t, "SO-1", entries[0].SalesOrder)
	assert.Equal(t, "Asha", entries[0].Party)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, model.ComplianceRSP, sink.entries[0].LogType)
	assert.Equal(t, "Success", sink.entries[0].Status)
}

func TestReconcileDifference(t *testing.T) {
	svc := NewService(seed(t), nil, "INR", NewPaymentLedger())
	msg := decodeRecon(t, `{"recon_request":{"settlement_id":"SET-2","orders":[
		{"id":"ORD-1","settlements":[{"type":"ORDER","amount":{"currency":"INR","value":"180.5"}}]}]}}`)

	out, err := svc.Reconcile(context.Background(), msg)
	require.NoError(t, err)
	r := out.ReconResponse.Orders[0]
	assert.Equal(t, ReconDiff, r.ReconStatus)
	assert.Equal(t, "19.50", r.DiffAmount.Value)
	assert.Equal(t, "Amount difference of 19.50 found", r.Message.ShortDesc)
}

func TestReconcileWithinTolerance(t *testing.T) {
	svc := NewService(seed(t), nil, "INR", NewPaymentLedger())
	msg := decodeRecon(t, `{"recon_request":{"settlement_id":"SET-3","orders":[
		{"id":"ORD-1","settlements":[{"type":"ORDER","amount":{"currency":"INR","value":"199.995"}}]}]}}`)

	out, err := svc.Reconcile(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, ReconMatched, out.ReconResponse.Orders[0].ReconStatus)
}

func TestReconcileErrorsPerOrder(t *testing.T) {
	svc := NewService(brokenOrders{}, nil, "INR", NewPaymentLedger())
	out, err := svc.Reconcile(context.Background(), ReconMessage{ReconRequest: ReconRequest{
		SettlementID: "SET-4",
		Orders:       []ReconOrder{{ID: "ORD-1"}},
	}})
	require.NoError(t, err)
	r := out.ReconResponse.Orders[0]
	assert.Equal(t, ReconError, r.ReconStatus)
	assert.Equal(t, "PROCESSING_ERROR", r.Message.Code)
	assert.Equal(t, "store down", r.Message.ShortDesc)
}

func TestReconcileMissingSettlementID(t *testing.T) {
	svc := NewService(seed(t), nil, "INR", NewPaymentLedger())
	_, err := svc.Reconcile(context.Background(), ReconMessage{})
	var oe *ondcerr.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, ondcerr.CodeReconFailed, oe.Code)
}

func TestPaymentLedgerSkipsBookedReferences(t *testing.T) {
	l := NewPaymentLedger()
	o := model.OrderRecord{OndcOrderID: "ORD-1"}
	lines := []Settlement{
		{Type: TypeOrder, Amount: Amount{Value: "100"}, PaymentRefNo: "UTR-9"},
		{Type: TypeRefund, Amount: Amount{Value: "20"}, PaymentRefNo: "UTR-10"},
		{Type: TypeOrder, Amount: Amount{Value: "0"}},
	}
	require.NoError(t, l.Post(context.Background(), o, lines, "S", 0))
	require.NoError(t, l.Post(context.Background(), o, lines, "S", 0))

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Pay", entries[1].PaymentType)
	assert.Equal(t, "ONDC Refund: S", entries[1].Remarks)
}

func TestFallsBackToJournalLedger(t *testing.T) {
	payments := NewPaymentLedger()
	payments.Disable()
	journal := NewJournalLedger("", "")
	svc := NewService(seed(t), nil, "INR", payments, journal)

	msg := decodeRecon(t, `{"recon_request":{"settlement_id":"SET-5","orders":[
		{"id":"ORD-1","settlements":[
			{"type":"ORDER","amount":{"currency":"INR","value":"200"}},
			{"type":"REFUND","amount":{"currency":"INR","value":"15"}}]}]}}`)
	_, err := svc.Reconcile(context.Background(), msg)
	require.NoError(t, err)

	assert.Empty(t, payments.Entries())
	entries := journal.Entries()
	require.Len(t, entries, 1)
	lines := entries[0].Lines
	require.Len(t, lines, 3)
	assert.Equal(t, "Bank - Company", lines[0].Account)
	assert.Equal(t, 200.0, lines[0].Debit)
	assert.Equal(t, "Debtors - Company", lines[1].Account)
	assert.Equal(t, "Debtors - Company", lines[2].Account)
	assert.Equal(t, 215.0, lines[2].Credit)
}
