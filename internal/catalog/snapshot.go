package catalog

import (
	"encoding/json"

	"ondc-bpp/internal/model"
)

// OrderSnapshot renders a stored order as the order object of on_status,
// on_cancel and on_update.
func (b *Builder) OrderSnapshot(rec model.OrderRecord) model.Order {
	currency := firstNonEmpty(b.store.Currency, "INR")
	fulfillmentID := firstNonEmpty(rec.FulfillmentID, DeliveryFulfillmentID)

	items := make([]model.OrderItem, 0, len(rec.Items))
	breakup := make([]model.BreakupLine, 0, len(rec.Items))
	for _, l := range rec.Items {
		items = append(items, model.OrderItem{
			ID:            l.ProductID,
			FulfillmentID: fulfillmentID,
			LocationID:    b.LocationID(),
			Quantity:      model.ItemCount{Count: l.Quantity},
		})
		breakup = append(breakup, model.BreakupLine{
			ItemID:       l.ProductID,
			ItemQuantity: &model.ItemCount{Count: l.Quantity},
			Title:        l.ProductID,
			TitleType:    model.TitleItem,
			Price:        model.Price{Currency: currency, Value: Money(l.Amount)},
			Item:         &model.BreakupItem{Price: model.Price{Currency: currency, Value: Money(l.Price)}},
		})
	}

	f := model.OrderFulfillment{
		ID:           fulfillmentID,
		Type:         firstNonEmpty(rec.FulfillmentType, FulfillmentDelivery),
		ProviderName: firstNonEmpty(b.store.LegalEntityName, "ONDC Seller"),
		Tracking:     rec.TrackingURL != "",
		State:        &model.FulfillmentState{Descriptor: model.StateDescriptor{Code: rec.FulfillmentState}},
	}
	if rec.ShippingGPS != "" || len(rec.ShippingAddress) > 0 {
		var end model.FulfillmentEnd
		end.Location.GPS = rec.ShippingGPS
		end.Location.Address = rec.ShippingAddress
		f.End, _ = json.Marshal(end)
	}

	order := model.Order{
		ID:           rec.OndcOrderID,
		State:        rec.OrderStatus,
		Provider:     &model.OrderProvider{ID: b.providerID, Locations: []model.IDRef{{ID: b.LocationID()}}},
		Items:        items,
		Fulfillments: []model.OrderFulfillment{f},
		Quote: &model.Quote{
			Price:   model.Price{Currency: currency, Value: Money(rec.TotalAmount)},
			Breakup: breakup,
		},
		CreatedAt: Timestamp(rec.CreatedAt),
		UpdatedAt: Timestamp(rec.UpdatedAt),
	}
	if rec.Billing.Name != "" {
		order.Billing, _ = json.Marshal(rec.Billing)
	}
	if rec.PaymentType != "" {
		order.Payment = &model.Payment{
			Type:        rec.PaymentType,
			Status:      rec.PaymentStatus,
			CollectedBy: rec.PaymentCollectedBy,
			Params: &model.PaymentParams{
				Amount:   Money(rec.TotalAmount),
				Currency: currency,
			},
		}
	}
	if rec.OrderStatus == model.OrderCancelled {
		order.Cancellation = &model.Cancellation{CancelledBy: rec.BapID}
		if rec.CancellationReasonID != "" {
			order.Cancellation.Reason = &model.IDRefDesc{ID: rec.CancellationReasonID}
		}
	}
	return order
}

// Tracking is message.tracking of on_track.
type Tracking struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status"`
}

// TrackingFor reports the tracking link of an order. Orders without a
// carrier link get the seller's own tracking page, which is active only
// while the order is with a delivery agent.
func (b *Builder) TrackingFor(rec model.OrderRecord, sellerURL string) Tracking {
	status := "inactive"
	switch rec.FulfillmentState {
	case model.FulfillmentAgentAssigned, model.FulfillmentAtPickup, model.FulfillmentPickedUp, model.FulfillmentOutForDelivery:
		status = "active"
	}
	url := rec.TrackingURL
	if url == "" && sellerURL != "" {
		url = sellerURL + "/track/" + rec.OndcOrderID
	}
	return Tracking{URL: url, Status: status}
}
