package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"ondc-bpp/internal/catalog"
	"ondc-bpp/internal/igm"
	"ondc-bpp/internal/metrics"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/orders"
	"ondc-bpp/internal/rsp"
	"ondc-bpp/internal/storage"
	"ondc-bpp/internal/tasks"
)

// handlerFunc builds the callback message for one request.
type handlerFunc func(s *Server, ctx context.Context, in model.Context, msg json.RawMessage) (any, error)

type route struct {
	run handlerFunc
	// errorCallback sends {context, error} when run fails. Without it a
	// failure is only logged.
	errorCallback bool
	// failCode is used for failures that are not protocol errors.
	failCode string
}

var routes = map[tasks.Kind]route{
	tasks.KindSearch:        {run: (*Server).search, failCode: ondcerr.CodeInternal},
	tasks.KindSelect:        {run: (*Server).selectQuote, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindInit:          {run: (*Server).initOrder, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindConfirm:       {run: (*Server).confirm, failCode: ondcerr.CodeConfirmFailed},
	tasks.KindStatus:        {run: (*Server).status, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindTrack:         {run: (*Server).track, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindCancel:        {run: (*Server).cancel, failCode: ondcerr.CodeNotCancellable},
	tasks.KindUpdate:        {run: (*Server).update, errorCallback: true, failCode: ondcerr.CodeOrderNotUpdatable},
	tasks.KindRating:        {run: (*Server).rating, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindSupport:       {run: (*Server).support, failCode: ondcerr.CodeInternal},
	tasks.KindIssue:         {run: (*Server).issue, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindIssueStatus:   {run: (*Server).issueStatus, errorCallback: true, failCode: ondcerr.CodeInternal},
	tasks.KindReceiverRecon: {run: (*Server).receiverRecon, errorCallback: true, failCode: ondcerr.CodeReconFailed},
}

// housekeeping jobs run on the same queue but answer nobody.
var housekeeping = map[tasks.Kind]func(s *Server, ctx context.Context) error{
	tasks.KindAutoProgress: (*Server).autoProgress,
	tasks.KindCleanup:      (*Server).cleanup,
}

// Process is the tasks.Handler for every queued task.
func (s *Server) Process(ctx context.Context, t tasks.Task) {
	start := time.Now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(t.Kind.String()).Observe(time.Since(start).Seconds())
	}()

	if job, ok := housekeeping[t.Kind]; ok {
		if err := job(s, ctx); err != nil {
			log.Printf("Dispatcher: %s: %v", t.Kind, err)
		}
		return
	}

	r, ok := routes[t.Kind]
	if !ok {
		log.Printf("Dispatcher: no handler for task kind %s", t.Kind)
		s.finish(ctx, t.LogID, model.LogFailed, nil, "no handler for "+t.Kind.String())
		return
	}
	var req model.Request
	var in model.Context
	if err := json.Unmarshal(t.Body, &req); err != nil {
		s.finish(ctx, t.LogID, model.LogFailed, nil, "decode task body: "+err.Error())
		return
	}
	if err := json.Unmarshal(req.Context, &in); err != nil {
		s.finish(ctx, t.LogID, model.LogFailed, nil, "decode context: "+err.Error())
		return
	}

	msg, err := r.run(s, ctx, in, req.Message)
	if err != nil {
		e := asOndcError(err, r.failCode)
		log.Printf("Dispatcher: %s %s failed: %v", in.Action, in.TransactionID, err)
		if r.errorCallback {
			res, cerr := s.Callbacks.ReplyError(ctx, in, e)
			s.observeCallback("on_"+in.Action, res.Latency, cerr)
		}
		s.finish(ctx, t.LogID, model.LogFailed, nil, e.Message)
		return
	}

	res, err := s.Callbacks.Reply(ctx, in, msg)
	s.observeCallback("on_"+in.Action, res.Latency, err)
	if err != nil {
		s.finish(ctx, t.LogID, model.LogFailed, res.Body, err.Error())
		return
	}
	s.finish(ctx, t.LogID, model.LogProcessed, res.Body, "")
}

func (s *Server) observeCallback(action string, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	metrics.CallbacksTotal.WithLabelValues(action, outcome).Inc()
	if latency > 0 {
		metrics.CallbackDuration.WithLabelValues(action).Observe(latency.Seconds())
	}
}

func decode(msg json.RawMessage, v any) error {
	if len(msg) == 0 {
		return ondcerr.New(ondcerr.CodeInvalidRequest, "Missing message")
	}
	if err := json.Unmarshal(msg, v); err != nil {
		return ondcerr.Newf(ondcerr.CodeInvalidRequest, "Invalid message: %v", err)
	}
	return nil
}

func (s *Server) search(ctx context.Context, _ model.Context, _ json.RawMessage) (any, error) {
	products, err := s.Store.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return map[string]any{"catalog": s.Catalog.BuildCatalog(products)}, nil
}

// quote prices the order of a select, init or confirm message.
func (s *Server) quote(ctx context.Context, msg json.RawMessage) (catalog.Quoted, error) {
	var m model.OrderMessage
	if err := decode(msg, &m); err != nil {
		return catalog.Quoted{}, err
	}
	products := make(map[string]model.Product, len(m.Order.Items))
	for _, it := range m.Order.Items {
		p, found, err := s.Store.GetProduct(ctx, it.ID)
		if err != nil {
			return catalog.Quoted{}, fmt.Errorf("load product %s: %w", it.ID, err)
		}
		if found {
			products[p.ID] = p
		}
	}
	return s.Catalog.CalculateQuote(m.Order, products)
}

func (s *Server) selectQuote(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	q, err := s.quote(ctx, msg)
	if err != nil {
		return nil, err
	}
	return model.OrderMessage{Order: q.Order}, nil
}

func (s *Server) initOrder(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	q, err := s.quote(ctx, msg)
	if err != nil {
		return nil, err
	}
	return model.OrderMessage{Order: s.Catalog.AddPaymentTerms(q)}, nil
}

func (s *Server) confirm(ctx context.Context, in model.Context, msg json.RawMessage) (any, error) {
	q, err := s.quote(ctx, msg)
	if err != nil {
		return nil, err
	}
	id := q.Order.ID
	if id == "" {
		id = orders.NewOrderID()
	}
	rec, err := s.Orders.CreateFromConfirm(ctx, orders.ConfirmInput{
		OrderID: id,
		Context: in,
		Order:   s.Catalog.AddPaymentTerms(q),
		Lines:   q.Lines,
	})
	if err != nil {
		return nil, err
	}
	if rec.OrderStatus == model.OrderPending {
		if _, err := s.Orders.UpdateOrderStatus(ctx, rec.OndcOrderID, model.OrderAccepted); err != nil {
			return nil, err
		}
	}
	return model.OrderMessage{Order: s.Catalog.CreateOrderConfirmation(q, rec.OndcOrderID)}, nil
}

// stored loads the order named by an order_id message.
func (s *Server) stored(ctx context.Context, msg json.RawMessage) (model.OrderRecord, error) {
	var m model.OrderIDMessage
	if err := decode(msg, &m); err != nil {
		return model.OrderRecord{}, err
	}
	if m.OrderID == "" {
		return model.OrderRecord{}, ondcerr.New(ondcerr.CodeInvalidRequest, "Missing order_id")
	}
	rec, found, err := s.Orders.Get(ctx, m.OrderID)
	if err != nil {
		return model.OrderRecord{}, err
	}
	if !found {
		return model.OrderRecord{}, ondcerr.Newf(ondcerr.CodeOrderNotFound, "Order not found: %s", m.OrderID)
	}
	return rec, nil
}

func (s *Server) status(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	rec, err := s.stored(ctx, msg)
	if err != nil {
		return nil, err
	}
	return model.OrderMessage{Order: s.Catalog.OrderSnapshot(rec)}, nil
}

func (s *Server) track(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	rec, err := s.stored(ctx, msg)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tracking": s.Catalog.TrackingFor(rec, s.Config.SubscriberURL)}, nil
}

func (s *Server) cancel(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	var m model.CancelMessage
	if err := decode(msg, &m); err != nil {
		return nil, err
	}
	rec, err := s.Orders.Cancel(ctx, m.OrderID, m.CancellationReasonID)
	if err != nil {
		return nil, err
	}
	return model.OrderMessage{Order: s.Catalog.OrderSnapshot(rec)}, nil
}

// update applies a fulfillment state change or a billing update. The
// update_target names which; without one the order's fulfillment state
// wins over its billing block.
func (s *Server) update(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	var m model.OrderMessage
	if err := decode(msg, &m); err != nil {
		return nil, err
	}
	if m.Order.ID == "" {
		return nil, ondcerr.New(ondcerr.CodeInvalidRequest, "Missing order id")
	}

	var state string
	for _, f := range m.Order.Fulfillments {
		if f.State != nil && f.State.Descriptor.Code != "" {
			state = f.State.Descriptor.Code
			break
		}
	}

	var rec model.OrderRecord
	var err error
	switch {
	case m.UpdateTarget == "billing" || (m.UpdateTarget == "" && state == "" && len(m.Order.Billing) > 0):
		rec, err = s.Orders.UpdateBilling(ctx, m.Order.ID, catalog.DecodeBilling(m.Order.Billing))
	case state != "":
		rec, err = s.Orders.TransitionFulfillment(ctx, m.Order.ID, state)
	default:
		return nil, ondcerr.Newf(ondcerr.CodeOrderNotUpdatable, "Nothing to update on order %s", m.Order.ID)
	}
	if err != nil {
		return nil, err
	}
	return model.OrderMessage{Order: s.Catalog.OrderSnapshot(rec)}, nil
}

// Rating categories.
const ratingOrder = "Order"

func (s *Server) rating(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	var m model.RatingMessage
	if err := decode(msg, &m); err != nil {
		return nil, err
	}
	v, err := strconv.Atoi(m.Value)
	if err != nil || v < 1 || v > 5 {
		return nil, ondcerr.Newf(ondcerr.CodeRatingOutOfRange, "Rating value must be 1 to 5, got %q", m.Value)
	}
	if m.RatingCategory == ratingOrder {
		if _, err := s.Orders.Rate(ctx, m.ID, m.Value); err != nil {
			return nil, err
		}
	}
	return map[string]any{"feedback_ack": true, "rating_ack": true}, nil
}

func (s *Server) support(_ context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	var m model.SupportMessage
	if len(msg) > 0 {
		_ = json.Unmarshal(msg, &m)
	}
	out := map[string]any{
		"phone": s.Config.Store.ConsumerCarePhone,
		"email": s.Config.Store.ConsumerCareEmail,
	}
	if s.Config.SubscriberURL != "" {
		out["uri"] = s.Config.SubscriberURL + "/support"
		if m.RefID != "" {
			out["uri"] = s.Config.SubscriberURL + "/support/" + m.RefID
		}
	}
	return out, nil
}

func (s *Server) issue(ctx context.Context, in model.Context, msg json.RawMessage) (any, error) {
	var m igm.IssueMessage
	if err := decode(msg, &m); err != nil {
		return nil, err
	}
	return s.Issues.Open(ctx, in, m)
}

func (s *Server) issueStatus(ctx context.Context, in model.Context, msg json.RawMessage) (any, error) {
	var m igm.IssueStatusMessage
	if err := decode(msg, &m); err != nil {
		return nil, err
	}
	return s.Issues.Status(ctx, in, m)
}

func (s *Server) receiverRecon(ctx context.Context, _ model.Context, msg json.RawMessage) (any, error) {
	var m rsp.ReconMessage
	if err := decode(msg, &m); err != nil {
		return nil, ondcerr.New(ondcerr.CodeReconFailed, err.Error())
	}
	return s.Recon.Reconcile(ctx, m)
}

func (s *Server) autoProgress(ctx context.Context) error {
	n, err := s.Orders.AutoProgress(ctx)
	if n > 0 {
		log.Printf("Dispatcher: auto-progressed %d orders", n)
	}
	return err
}

// cleanup drops webhook logs and audit files past the retention window.
func (s *Server) cleanup(ctx context.Context) error {
	cutoff := s.now().Add(-storage.LogRetention)
	n, err := s.Store.PruneLogs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune webhook logs: %w", err)
	}
	files := 0
	if s.Audit != nil {
		if files, err = s.Audit.Cleanup(storage.LogRetention); err != nil {
			return fmt.Errorf("clean audit files: %w", err)
		}
	}
	log.Printf("Dispatcher: cleanup removed %d webhook logs and %d audit files", n, files)
	return nil
}

// NotifyStatus pushes an unsolicited on_status for a seller-side change.
func (s *Server) NotifyStatus(ctx context.Context, rec model.OrderRecord) error {
	cb := model.Callback{
		Context: s.Callbacks.UnsolicitedContext("on_status", rec),
		Message: model.OrderMessage{Order: s.Catalog.OrderSnapshot(rec)},
	}
	res, err := s.Callbacks.Send(ctx, cb)
	s.observeCallback("on_status", res.Latency, err)
	return err
}
