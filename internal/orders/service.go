// Package orders owns the order aggregate. Every mutation of one order runs
// under that order's lock as load, validate, mutate a copy, save, so a
// rejected transition leaves the stored order untouched.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ondc-bpp/internal/fulfillment"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/storage"
)

// Notifier pushes unsolicited on_status callbacks for seller-side changes.
type Notifier interface {
	NotifyStatus(ctx context.Context, order model.OrderRecord) error
}

// Service mutates orders.
type Service struct {
	store      storage.Orders
	compliance storage.ComplianceSink
	notifier   Notifier
	locks      *keyedMutex
	now        func() time.Time
}

func NewService(store storage.Orders, compliance storage.ComplianceSink) *Service {
	if compliance == nil {
		compliance = storage.Discard{}
	}
	return &Service{
		store:      store,
		compliance: compliance,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// SetNotifier installs the unsolicited on_status sender. The callback
// client depends on the service's orders, so it is wired after construction.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// NewOrderID returns an id for an order the buyer did not name.
func NewOrderID() string {
	return "ORD-" + uuid.NewString()
}

// Get loads an order. A missing order is found == false with a nil error.
func (s *Service) Get(ctx context.Context, id string) (model.OrderRecord, bool, error) {
	return s.store.GetOrder(ctx, id)
}

// ConfirmInput is what a confirm call carries into order creation.
type ConfirmInput struct {
	OrderID string
	Context model.Context
	Order   model.Order
	Lines   []model.OrderLine
}

// CreateFromConfirm stores a new Pending order. A confirm replayed for an
// existing order id in the same transaction returns the stored order
// unchanged; an id already held by another transaction is refused.
func (s *Service) CreateFromConfirm(ctx context.Context, in ConfirmInput) (model.OrderRecord, error) {
	if in.OrderID == "" {
		return model.OrderRecord{}, ondcerr.New(ondcerr.CodeConfirmFailed, "Order id missing")
	}
	if len(in.Lines) == 0 {
		return model.OrderRecord{}, ondcerr.New(ondcerr.CodeConfirmFailed, "No serviceable items in order")
	}
	unlock := s.locks.Lock(in.OrderID)
	defer unlock()

	existing, found, err := s.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return model.OrderRecord{}, fmt.Errorf("load order %s: %w", in.OrderID, err)
	}
	if found && existing.TransactionID != in.Context.TransactionID {
		return model.OrderRecord{}, ondcerr.Newf(ondcerr.CodeConfirmFailed, "Order %s belongs to another transaction", in.OrderID)
	}
	if found {
		log.Printf("Orders: confirm replay for %s, keeping stored order", in.OrderID)
		return existing, nil
	}

	now := s.now().UTC()
	rec := model.OrderRecord{
		OndcOrderID:      in.OrderID,
		TransactionID:    in.Context.TransactionID,
		MessageID:        in.Context.MessageID,
		BapID:            in.Context.BapID,
		BapURI:           in.Context.BapURI,
		Domain:           in.Context.Domain,
		City:             in.Context.City,
		Country:          in.Context.Country,
		CoreVersion:      in.Context.CoreVersion,
		Items:            append([]model.OrderLine(nil), in.Lines...),
		FulfillmentState: model.FulfillmentPending,
		OrderStatus:      model.OrderPending,
		PaymentStatus:    "NOT-PAID",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if len(in.Order.Billing) > 0 {
		_ = json.Unmarshal(in.Order.Billing, &rec.Billing)
	}
	if len(in.Order.Fulfillments) > 0 {
		f := in.Order.Fulfillments[0]
		rec.FulfillmentID = f.ID
		rec.FulfillmentType = f.Type
		if len(f.End) > 0 {
			var end model.FulfillmentEnd
			if err := json.Unmarshal(f.End, &end); err == nil {
				rec.ShippingGPS = end.Location.GPS
				rec.ShippingAddress = end.Location.Address
			}
		}
	}
	if rec.FulfillmentType == "" {
		rec.FulfillmentType = "Delivery"
	}
	if p := in.Order.Payment; p != nil {
		rec.PaymentType = p.Type
		rec.PaymentCollectedBy = p.CollectedBy
		if p.Status != "" {
			rec.PaymentStatus = p.Status
		}
	}

	rec.RecalculateTotals()
	if err := s.store.SaveOrder(ctx, rec); err != nil {
		return model.OrderRecord{}, fmt.Errorf("save order %s: %w", rec.OndcOrderID, err)
	}
	s.record(ctx, rec, "confirm", "", model.OrderPending, "Order created")
	return rec, nil
}

// mutate applies fn to the order through the store's atomic update. The
// keyed lock only saves retries between goroutines of this process; the
// store serializes writers across replicas.
func (s *Service) mutate(ctx context.Context, id string, fn func(o *model.OrderRecord) error) (model.OrderRecord, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var rejected bool
	o, found, err := s.store.UpdateOrder(ctx, id, func(o *model.OrderRecord) error {
		rejected = false
		if err := fn(o); err != nil {
			rejected = true
			return err
		}
		o.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if rejected {
			return o, err
		}
		return o, fmt.Errorf("update order %s: %w", id, err)
	}
	if !found {
		return model.OrderRecord{}, ondcerr.Newf(ondcerr.CodeOrderNotFound, "Order not found: %s", id)
	}
	return o, nil
}

// Cancel cancels an order that is neither Completed nor Cancelled, moving
// both the order status and the fulfillment state to Cancelled. The reason
// code is stored as given; an empty or unlisted code does not block the
// cancel.
func (s *Service) Cancel(ctx context.Context, id, reasonID string) (model.OrderRecord, error) {
	var from string
	o, err := s.mutate(ctx, id, func(o *model.OrderRecord) error {
		from = o.OrderStatus
		if o.OrderStatus == model.OrderCompleted || o.OrderStatus == model.OrderCancelled {
			return ondcerr.New(ondcerr.CodeNotCancellable, "Order cannot be cancelled")
		}
		if err := fulfillment.OrderStatus.ValidateTransition(o.OrderStatus, model.OrderCancelled); err != nil {
			return ondcerr.New(ondcerr.CodeNotCancellable, "Order cannot be cancelled")
		}
		if err := fulfillment.Fulfillment.ValidateTransition(o.FulfillmentState, model.FulfillmentCancelled); err != nil {
			return ondcerr.Newf(ondcerr.CodeNotCancellable, "Order cannot be cancelled in fulfillment state %s", o.FulfillmentState)
		}
		o.OrderStatus = model.OrderCancelled
		o.FulfillmentState = model.FulfillmentCancelled
		o.CancellationReasonID = reasonID
		return nil
	})
	if err != nil {
		return o, err
	}
	s.record(ctx, o, "cancel", from, model.OrderCancelled, cancelMessage(reasonID))
	return o, nil
}

func cancelMessage(reasonID string) string {
	text, _ := ondcerr.CancellationReason(reasonID)
	if reasonID == "" {
		return "Cancelled: " + text
	}
	return fmt.Sprintf("Cancelled with reason %s: %s", reasonID, text)
}

// TransitionFulfillment moves the fulfillment state and carries the order
// status forward to match it.
func (s *Service) TransitionFulfillment(ctx context.Context, id, to string) (model.OrderRecord, error) {
	var from string
	o, err := s.mutate(ctx, id, func(o *model.OrderRecord) error {
		from = o.FulfillmentState
		if err := fulfillment.Fulfillment.ValidateTransition(o.FulfillmentState, to); err != nil {
			return err
		}
		if target := fulfillment.OrderStatusFor(to); target != "" {
			status, err := advanceOrderStatus(o.OrderStatus, target)
			if err != nil {
				return err
			}
			o.OrderStatus = status
		}
		o.FulfillmentState = to
		return nil
	})
	if err != nil {
		return o, err
	}
	s.record(ctx, o, "fulfillment", from, to, "")
	return o, nil
}

// UpdateOrderStatus moves the coarse order status one step.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, to string) (model.OrderRecord, error) {
	var from string
	o, err := s.mutate(ctx, id, func(o *model.OrderRecord) error {
		from = o.OrderStatus
		if err := fulfillment.OrderStatus.ValidateTransition(o.OrderStatus, to); err != nil {
			return err
		}
		o.OrderStatus = to
		if to == model.OrderCancelled && fulfillment.Fulfillment.CanTransition(o.FulfillmentState, model.FulfillmentCancelled) {
			o.FulfillmentState = model.FulfillmentCancelled
		}
		return nil
	})
	if err != nil {
		return o, err
	}
	s.record(ctx, o, "status", from, to, "")
	return o, nil
}

// UpdateBilling replaces the buyer billing block.
func (s *Service) UpdateBilling(ctx context.Context, id string, billing model.Billing) (model.OrderRecord, error) {
	return s.mutate(ctx, id, func(o *model.OrderRecord) error {
		if fulfillment.OrderStatus.IsTerminal(o.OrderStatus) {
			return ondcerr.Newf(ondcerr.CodeOrderNotUpdatable, "Order %s is %s", o.OndcOrderID, o.OrderStatus)
		}
		o.Billing = billing
		return nil
	})
}

// Rate stores a buyer rating on the order.
func (s *Service) Rate(ctx context.Context, id, value string) (model.OrderRecord, error) {
	return s.mutate(ctx, id, func(o *model.OrderRecord) error {
		o.Rating = value
		return nil
	})
}

// salesOrderStatus maps back-office sales order states to order statuses.
var salesOrderStatus = map[string]string{
	"Draft":               model.OrderPending,
	"On Hold":             model.OrderPending,
	"To Deliver and Bill": model.OrderAccepted,
	"To Bill":             model.OrderInProgress,
	"To Deliver":          model.OrderInProgress,
	"Completed":           model.OrderCompleted,
	"Closed":              model.OrderCompleted,
	"Cancelled":           model.OrderCancelled,
}

// ApplySalesOrderStatus syncs an order from its linked sales order. Moves to
// In-progress, Completed or Cancelled are announced to the buyer.
func (s *Service) ApplySalesOrderStatus(ctx context.Context, id, soStatus string) (model.OrderRecord, bool, error) {
	target, ok := salesOrderStatus[soStatus]
	if !ok {
		return model.OrderRecord{}, false, nil
	}
	var from string
	o, err := s.mutate(ctx, id, func(o *model.OrderRecord) error {
		from = o.OrderStatus
		if o.OrderStatus == target {
			return nil
		}
		status, err := advanceOrderStatus(o.OrderStatus, target)
		if err != nil {
			return err
		}
		o.OrderStatus = status
		if status == model.OrderCancelled && fulfillment.Fulfillment.CanTransition(o.FulfillmentState, model.FulfillmentCancelled) {
			o.FulfillmentState = model.FulfillmentCancelled
		}
		return nil
	})
	if err != nil {
		return o, false, err
	}
	if from == o.OrderStatus {
		return o, false, nil
	}
	s.record(ctx, o, "sales_order", from, o.OrderStatus, "Sales order "+soStatus)
	switch o.OrderStatus {
	case model.OrderInProgress, model.OrderCompleted, model.OrderCancelled:
		s.notify(ctx, o)
	}
	return o, true, nil
}

// AutoProgress advances every open order one step along the happy delivery
// path and announces each move. It is a demo and conformance aid.
func (s *Service) AutoProgress(ctx context.Context) (int, error) {
	all, err := s.store.ListOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list orders: %w", err)
	}
	moved := 0
	for _, o := range all {
		if fulfillment.Fulfillment.IsTerminal(o.FulfillmentState) || fulfillment.OrderStatus.IsTerminal(o.OrderStatus) {
			continue
		}
		next, ok := fulfillment.Next(o.FulfillmentState)
		if !ok {
			continue
		}
		updated, err := s.TransitionFulfillment(ctx, o.OndcOrderID, next)
		if err != nil {
			log.Printf("Orders: auto-progress %s: %v", o.OndcOrderID, err)
			continue
		}
		moved++
		s.notify(ctx, updated)
	}
	return moved, nil
}

func (s *Service) notify(ctx context.Context, o model.OrderRecord) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStatus(ctx, o); err != nil {
		log.Printf("Orders: on_status for %s failed: %v", o.OndcOrderID, err)
	}
}

func (s *Service) record(ctx context.Context, o model.OrderRecord, action, from, to, msg string) {
	err := s.compliance.Record(ctx, model.ComplianceLog{
		LogType:       model.ComplianceOrder,
		Action:        action,
		TransactionID: o.TransactionID,
		BapID:         o.BapID,
		OrderID:       o.OndcOrderID,
		FromState:     from,
		ToState:       to,
		Status:        "Success",
		Message:       msg,
		Timestamp:     s.now().UTC(),
	})
	if err != nil {
		log.Printf("Orders: compliance log for %s: %v", o.OndcOrderID, err)
	}
}

var forwardStatus = []string{model.OrderPending, model.OrderAccepted, model.OrderInProgress, model.OrderCompleted}

// advanceOrderStatus walks the order status forward to target one allowed
// edge at a time. Cancelled is reached directly.
func advanceOrderStatus(current, target string) (string, error) {
	if current == target {
		return current, nil
	}
	if target == model.OrderCancelled {
		if err := fulfillment.OrderStatus.ValidateTransition(current, target); err != nil {
			return current, err
		}
		return target, nil
	}
	state := current
	for state != target {
		next := ""
		for i, s := range forwardStatus {
			if s == state && i+1 < len(forwardStatus) {
				next = forwardStatus[i+1]
			}
		}
		if next == "" || !fulfillment.OrderStatus.CanTransition(state, next) {
			return current, fulfillment.OrderStatus.ValidateTransition(current, target)
		}
		state = next
	}
	return state, nil
}
