package catalog

import (
	"encoding/json"
	"time"

	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
)

// Quoted is an order draft priced against current stock.
type Quoted struct {
	Order      model.Order
	Lines      []model.OrderLine
	ItemTotal  float64
	Delivery   float64
	Packing    float64
	Tax        float64
	GrandTotal float64
}

// CalculateQuote prices draft against products, keyed by product id.
// Unknown, inactive or out-of-stock lines are dropped unless the store runs
// with StrictAvailability, in which case the first such line fails the quote.
// Requested quantities above stock are capped to stock.
func (b *Builder) CalculateQuote(draft model.Order, products map[string]model.Product) (Quoted, error) {
	var q Quoted
	currency := firstNonEmpty(b.store.Currency, "INR")
	fulfillmentID := DeliveryFulfillmentID
	if len(draft.Fulfillments) > 0 && draft.Fulfillments[0].ID != "" {
		fulfillmentID = draft.Fulfillments[0].ID
	}

	var items []model.OrderItem
	var breakup []model.BreakupLine
	for _, it := range draft.Items {
		p, ok := products[it.ID]
		if !ok || !p.IsActive {
			if b.store.StrictAvailability {
				return Quoted{}, ondcerr.Newf(ondcerr.CodeItemNotFound, "Item not found: %s", it.ID)
			}
			continue
		}
		if p.Available <= 0 {
			if b.store.StrictAvailability {
				return Quoted{}, ondcerr.Newf(ondcerr.CodeOutOfStock, "Item out of stock: %s", it.ID)
			}
			continue
		}

		qty := it.Quantity.Count
		if qty < 1 {
			qty = 1
		}
		if qty > p.Available {
			qty = p.Available
		}
		amount := round2(float64(qty) * p.Price)
		q.ItemTotal += amount
		q.Lines = append(q.Lines, model.OrderLine{ProductID: p.ID, Quantity: qty, Price: p.Price, Amount: amount})

		itemFulfillment := firstNonEmpty(it.FulfillmentID, fulfillmentID)
		items = append(items, model.OrderItem{
			ID:            p.ID,
			FulfillmentID: itemFulfillment,
			LocationID:    firstNonEmpty(it.LocationID, p.LocationID, b.LocationID()),
			Quantity:      model.ItemCount{Count: qty},
		})
		breakup = append(breakup, model.BreakupLine{
			ItemID:       p.ID,
			ItemQuantity: &model.ItemCount{Count: qty},
			Title:        p.Name,
			TitleType:    model.TitleItem,
			Price:        model.Price{Currency: currency, Value: Money(amount)},
			Item: &model.BreakupItem{
				Quantity: b.Item(p).Quantity,
				Price:    model.Price{Currency: currency, Value: Money(p.Price)},
			},
		})
	}
	q.ItemTotal = round2(q.ItemTotal)

	// The retail schema requires a delivery line even when it is free.
	q.Delivery = round2(b.store.DeliveryCharge)
	breakup = append(breakup, model.BreakupLine{
		ItemID:    fulfillmentID,
		Title:     "Delivery charges",
		TitleType: model.TitleDelivery,
		Price:     model.Price{Currency: currency, Value: Money(q.Delivery)},
	})
	if b.store.PackingCharge != 0 {
		q.Packing = round2(b.store.PackingCharge)
		breakup = append(breakup, model.BreakupLine{
			ItemID:    fulfillmentID,
			Title:     "Packing charges",
			TitleType: model.TitlePacking,
			Price:     model.Price{Currency: currency, Value: Money(q.Packing)},
		})
	}
	q.Tax = round2(q.ItemTotal * b.store.TaxRate / 100)
	if q.Tax != 0 {
		breakup = append(breakup, model.BreakupLine{
			ItemID:    fulfillmentID,
			Title:     "Tax",
			TitleType: model.TitleTax,
			Price:     model.Price{Currency: currency, Value: Money(q.Tax)},
		})
	}
	q.GrandTotal = round2(q.ItemTotal + q.Delivery + q.Packing + q.Tax)

	order := draft
	order.Items = items
	if order.Items == nil {
		order.Items = []model.OrderItem{}
	}
	order.Provider = b.provider(draft.Provider)
	order.Fulfillments = b.quoteFulfillments(draft.Fulfillments)
	order.Quote = &model.Quote{
		Price:   model.Price{Currency: currency, Value: Money(q.GrandTotal)},
		Breakup: breakup,
		TTL:     firstNonEmpty(b.store.QuoteTTL, "P1D"),
	}
	q.Order = order
	return q, nil
}

func (b *Builder) provider(in *model.OrderProvider) *model.OrderProvider {
	if in != nil && in.ID != "" {
		p := *in
		if len(p.Locations) == 0 {
			p.Locations = []model.IDRef{{ID: b.LocationID()}}
		}
		return &p
	}
	return &model.OrderProvider{ID: b.providerID, Locations: []model.IDRef{{ID: b.LocationID()}}}
}

// quoteFulfillments echoes the buyer's fulfillments, buyer-owned end
// locations included, and layers in the seller fields.
func (b *Builder) quoteFulfillments(in []model.OrderFulfillment) []model.OrderFulfillment {
	if len(in) == 0 {
		in = []model.OrderFulfillment{{ID: DeliveryFulfillmentID, Type: FulfillmentDelivery}}
	}
	out := make([]model.OrderFulfillment, len(in))
	for i, f := range in {
		if f.ID == "" {
			f.ID = DeliveryFulfillmentID
		}
		if f.Type == "" {
			f.Type = FulfillmentDelivery
			if f.ID == PickupFulfillmentID {
				f.Type = FulfillmentSelfPickup
			}
		}
		f.ProviderName = firstNonEmpty(b.store.LegalEntityName, "ONDC Seller")
		f.Category = "Standard Delivery"
		f.TAT = firstNonEmpty(b.store.TimeToShip, "P1D")
		out[i] = f
	}
	return out
}

// AddPaymentTerms layers the payment block and cancellation terms onto a
// quoted order. A buyer-requested payment type is honoured when the store
// supports it.
func (b *Builder) AddPaymentTerms(q Quoted) model.Order {
	order := q.Order
	supported := b.SupportedPaymentTypes()
	payType := supported[0]
	if order.Payment != nil {
		for _, s := range supported {
			if order.Payment.Type == s {
				payType = s
			}
		}
	}
	collectedBy := "BAP"
	if payType == PaymentOnFulfillment {
		collectedBy = "BPP"
	}

	status := "NOT-PAID"
	var txnID string
	if order.Payment != nil {
		if order.Payment.Status != "" {
			status = order.Payment.Status
		}
		if order.Payment.Params != nil {
			txnID = order.Payment.Params.TransactionID
		}
	}

	currency := firstNonEmpty(b.store.Currency, "INR")
	order.Payment = &model.Payment{
		Params: &model.PaymentParams{
			Amount:        Money(q.GrandTotal),
			Currency:      currency,
			TransactionID: txnID,
		},
		Type:                   payType,
		Status:                 status,
		CollectedBy:            collectedBy,
		BuyerAppFinderFeeType:  b.store.BuyerFinderFeeType,
		BuyerAppFinderFeeValue: b.store.BuyerFinderFeeAmount,
		SettlementBasis:        b.store.SettlementBasis,
		SettlementWindow:       b.store.SettlementWindow,
		WithholdingAmount:      Money(0),
		SettlementDetails: []model.SettlementDetail{{
			Counterparty:    "seller-app",
			Phase:           "sale-amount",
			Type:            "neft",
			BankAccountNo:   b.store.SettlementBankAcct,
			IFSCCode:        b.store.SettlementIFSC,
			BeneficiaryName: b.store.SettlementBeneficiary,
		}},
	}
	order.CancellationTerms = cancellationTerms()
	return order
}

func cancellationTerms() []model.CancellationTerm {
	term := func(state, pct string, reason bool) model.CancellationTerm {
		return model.CancellationTerm{
			FulfillmentState: model.FulfillmentState{Descriptor: model.StateDescriptor{Code: state}},
			ReasonRequired:   reason,
			CancellationFee:  model.CancellationFee{Percentage: pct},
		}
	}
	return []model.CancellationTerm{
		term(model.FulfillmentPending, "0.00", false),
		term(model.FulfillmentPacked, "0.00", true),
		term(model.FulfillmentPickedUp, "10.00", true),
		term(model.FulfillmentOutForDelivery, "20.00", true),
	}
}

// CreateOrderConfirmation finalizes a confirmed order for on_confirm.
func (b *Builder) CreateOrderConfirmation(q Quoted, orderID string) model.Order {
	order := b.AddPaymentTerms(q)
	order.ID = orderID
	order.State = model.OrderAccepted
	now := Timestamp(b.now())
	if order.CreatedAt == "" {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	for i := range order.Fulfillments {
		order.Fulfillments[i].State = &model.FulfillmentState{Descriptor: model.StateDescriptor{Code: model.FulfillmentPending}}
	}
	return order
}

// DecodeBilling returns the typed view of a raw billing block.
func DecodeBilling(raw json.RawMessage) model.Billing {
	var bl model.Billing
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &bl)
	}
	return bl
}

// Timestamp formats t the way ONDC payloads expect.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
