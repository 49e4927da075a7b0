package rsp

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"ondc-bpp/internal/model"
)

// Settlement types.
const (
	TypeOrder       = "ORDER"
	TypeRefund      = "REFUND"
	TypeWithholding = "WITHHOLDING"
	TypeIncentive   = "INCENTIVE"
	TypePenalty     = "PENALTY"
)

// Ledger books settlement lines against an order. The service posts to the
// first available ledger of its chain.
type Ledger interface {
	Name() string
	Available(ctx context.Context) bool
	Post(ctx context.Context, order model.OrderRecord, lines []Settlement, settlementID string, diff float64) error
}

// PaymentEntry is a receipt (ORDER) or payout (REFUND) booked per
// settlement line.
type PaymentEntry struct {
	Name         string
	PaymentType  string // Receive or Pay
	Party        string
	Amount       float64
	ReferenceNo  string
	SalesOrder   string
	OrderID      string
	SettlementID string
	Remarks      string
	PostedAt     time.Time
}

// PaymentLedger books one payment entry per settlement line. Lines whose
// payment reference was already booked are skipped so replays do not
// double count.
type PaymentLedger struct {
	mu       sync.Mutex
	disabled bool
	entries  []PaymentEntry
	refs     map[string]bool
	now      func() time.Time
}

func NewPaymentLedger() *PaymentLedger {
	return &PaymentLedger{refs: make(map[string]bool), now: time.Now}
}

func (p *PaymentLedger) Disable() {
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

func (p *PaymentLedger) Name() string { return "payment" }

func (p *PaymentLedger) Available(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disabled
}

func (p *PaymentLedger) Post(_ context.Context, o model.OrderRecord, lines []Settlement, settlementID string, _ float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range lines {
		amount, err := s.Amount.Float()
		if err != nil {
			return fmt.Errorf("settlement %s amount: %w", settlementID, err)
		}
		if s.PaymentRefNo != "" && p.refs[s.PaymentRefNo] {
			continue
		}
		if amount <= 0 {
			continue
		}
		e := PaymentEntry{
			Name:         "PE-" + uuid.NewString(),
			Party:        o.Billing.Name,
			Amount:       amount,
			ReferenceNo:  s.PaymentRefNo,
			OrderID:      o.OndcOrderID,
			SettlementID: settlementID,
			PostedAt:     p.now().UTC(),
		}
		switch s.Type {
		case TypeOrder:
			e.PaymentType = "Receive"
			e.SalesOrder = o.SalesOrder
			e.Remarks = "ONDC Settlement: " + settlementID
		case TypeRefund:
			e.PaymentType = "Pay"
			e.Remarks = "ONDC Refund: " + settlementID
		default:
			continue
		}
		p.entries = append(p.entries, e)
		if s.PaymentRefNo != "" {
			p.refs[s.PaymentRefNo] = true
		}
	}
	return nil
}

// Entries returns a copy of the booked entries.
func (p *PaymentLedger) Entries() []PaymentEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaymentEntry(nil), p.entries...)
}

// JournalLine is one side of a journal entry.
type JournalLine struct {
	Account       string
	Debit         float64
	Credit        float64
	ReferenceType string
	ReferenceName string
}

// JournalEntry is a balanced double-entry voucher.
type JournalEntry struct {
	Name         string
	Lines        []JournalLine
	SettlementID string
	Remark       string
	PostedAt     time.Time
}

// JournalLedger books a single balanced journal entry per order: ORDER
// lines debit the bank, REFUND lines debit receivables, and one credit line
// balances the voucher.
type JournalLedger struct {
	bankAccount       string
	receivableAccount string
	now               func() time.Time

	mu      sync.Mutex
	entries []JournalEntry
}

func NewJournalLedger(bankAccount, receivableAccount string) *JournalLedger {
	if bankAccount == "" {
		bankAccount = "Bank - Company"
	}
	if receivableAccount == "" {
		receivableAccount = "Debtors - Company"
	}
	return &JournalLedger{bankAccount: bankAccount, receivableAccount: receivableAccount, now: time.Now}
}

func (j *JournalLedger) Name() string { return "journal" }

func (j *JournalLedger) Available(context.Context) bool { return true }

func (j *JournalLedger) Post(_ context.Context, o model.OrderRecord, lines []Settlement, settlementID string, _ float64) error {
	var debit float64
	var out []JournalLine
	for _, s := range lines {
		amount, err := s.Amount.Float()
		if err != nil {
			return fmt.Errorf("settlement %s amount: %w", settlementID, err)
		}
		account := ""
		switch s.Type {
		case TypeOrder, "":
			account = j.bankAccount
		case TypeRefund:
			account = j.receivableAccount
		default:
			continue
		}
		out = append(out, JournalLine{
			Account:       account,
			Debit:         amount,
			ReferenceType: "ONDC Order",
			ReferenceName: o.OndcOrderID,
		})
		debit += amount
	}
	balance := j.bankAccount
	if debit > 0 {
		balance = j.receivableAccount
	}
	out = append(out, JournalLine{Account: balance, Credit: math.Abs(debit)})

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, JournalEntry{
		Name:         "JV-" + uuid.NewString(),
		Lines:        out,
		SettlementID: settlementID,
		Remark:       "ONDC Settlement Reconciliation: " + settlementID,
		PostedAt:     j.now().UTC(),
	})
	return nil
}

// Entries returns a copy of the booked vouchers.
func (j *JournalLedger) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEntry(nil), j.entries...)
}
