// Package dispatcher is the protocol edge: it validates and acknowledges
// inbound calls synchronously and runs the business handlers on the task
// queue, answering each with a signed on_<action> callback.
package dispatcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ondc-bpp/internal/callback"
	"ondc-bpp/internal/catalog"
	"ondc-bpp/internal/config"
	"ondc-bpp/internal/igm"
	"ondc-bpp/internal/metrics"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/orders"
	"ondc-bpp/internal/rsp"
	"ondc-bpp/internal/schemagate"
	"ondc-bpp/internal/signing"
	"ondc-bpp/internal/storage"
	"ondc-bpp/internal/subscribe"
	"ondc-bpp/internal/tasks"
)

const maxBodyBytes = 10 << 20

// PolicyChecker blocks buyer apps the seller does not trade with.
type PolicyChecker interface {
	Denied(ctx context.Context, buyerID, sellerID, domain, city string) (bool, error)
}

// ReplayChecker flags message ids that were probably seen before.
type ReplayChecker interface {
	Seen(ctx context.Context, key string) bool
}

// Deps are the collaborators of a Server. Policy, Replays, Subscribe and
// Audit are optional.
type Deps struct {
	Config    *config.Config
	Gate      *schemagate.Gate
	Keys      signing.KeyResolver
	Store     storage.Store
	Catalog   *catalog.Builder
	Orders    *orders.Service
	Callbacks *callback.Client
	Queue     tasks.Queue
	Issues    *igm.Service
	Recon     *rsp.Service

	Policy    PolicyChecker
	Replays   ReplayChecker
	Subscribe *subscribe.Answerer
	Audit     *storage.AuditLog
}

// Server serves the protocol routes and processes their tasks.
type Server struct {
	Deps
	now func() time.Time
}

func NewServer(d Deps) *Server {
	if d.Gate == nil {
		d.Gate = schemagate.NewGate(d.Config.IsProduction())
	}
	return &Server{Deps: d, now: time.Now}
}

// RegisterRoutes wires the protocol, onboarding, health and metrics routes.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/on_subscribe", s.onSubscribeHandler).Methods(http.MethodPost)

	for _, action := range []string{
		"search", "select", "init", "confirm", "status", "track", "cancel",
		"update", "rating", "support", "issue", "issue_status", "receiver_recon",
	} {
		r.HandleFunc("/"+action, func(w http.ResponseWriter, r *http.Request) {
			s.handleAction(w, r, action)
		}).Methods(http.MethodPost)
	}
	r.HandleFunc("/ondc/webhook/{action}", func(w http.ResponseWriter, r *http.Request) {
		s.handleAction(w, r, mux.Vars(r)["action"])
	}).Methods(http.MethodPost)

	if s.Config.AdminToken != "" {
		s.registerAdminRoutes(r.PathPrefix("/admin").Subrouter())
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody returns the request bytes, inflating gzip bodies.
func readBody(r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if enc := r.Header.Get("Content-Encoding"); strings.EqualFold(enc, "gzip") {
		gr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		reader = gr
	}
	return io.ReadAll(io.LimitReader(reader, maxBodyBytes))
}

func (s *Server) nack(w http.ResponseWriter, action string, ctx json.RawMessage, e *ondcerr.Error) {
	metrics.RequestsTotal.WithLabelValues(action, ondcerr.StatusNACK).Inc()
	metrics.NacksTotal.WithLabelValues(e.Code).Inc()
	var echo any
	if len(ctx) > 0 && json.Valid(ctx) {
		echo = ctx
	}
	writeJSON(w, e.HTTPStatus(), ondcerr.Nack(echo, e))
}

// handleAction is the synchronous path shared by every protocol route. No
// business logic runs here: the request is checked, acknowledged and
// queued.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, action string) {
	ctx := r.Context()
	if !schemagate.SupportedAction(action) {
		s.nack(w, action, nil, ondcerr.Newf(ondcerr.CodeInvalidAction, "Invalid action: %s", action))
		return
	}

	body, err := readBody(r)
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		s.nack(w, action, nil, ondcerr.New(ondcerr.CodeInvalidRequest, "Empty request body"))
		return
	}
	var req model.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.nack(w, action, nil, ondcerr.New(ondcerr.CodeInvalidRequest, "Invalid JSON body"))
		return
	}

	in, verr := s.Gate.ParseContext(req.Context)
	if verr != nil {
		s.auditRejected(ctx, action, in, body, verr)
		s.nack(w, action, req.Context, verr)
		return
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		header = r.Header.Get("X-Gateway-Authorization")
	}
	if _, err := signing.Verify(ctx, header, body, s.Keys); err != nil {
		enforced := s.Config.EnforceSignatures
		metrics.SignatureFailuresTotal.WithLabelValues(strconv.FormatBool(enforced)).Inc()
		if enforced {
			e := ondcerr.New(ondcerr.CodeInvalidSignature, err.Error())
			s.auditRejected(ctx, action, in, body, e)
			s.nack(w, action, req.Context, e)
			return
		}
		log.Printf("Dispatcher: %s %s: signature not verified (not enforced): %v", action, in.TransactionID, err)
	}

	if in.Action != action {
		e := ondcerr.Newf(ondcerr.CodeInvalidAction, "Action mismatch: context.action %s on /%s", in.Action, action)
		s.auditRejected(ctx, action, in, body, e)
		s.nack(w, action, req.Context, e)
		return
	}

	if s.Policy != nil {
		denied, err := s.Policy.Denied(ctx, in.BapID, s.Config.SubscriberID, in.Domain, in.City)
		if err != nil {
			log.Printf("Dispatcher: policy check for %s failed, allowing: %v", in.BapID, err)
		}
		if denied {
			e := ondcerr.Newf(ondcerr.CodeBusinessPolicy, "Buyer app %s is not permitted", in.BapID)
			s.auditRejected(ctx, action, in, body, e)
			s.nack(w, action, req.Context, e)
			return
		}
	}

	if s.Replays != nil && s.Replays.Seen(ctx, in.TransactionID+":"+in.MessageID) {
		metrics.ReplaysTotal.Inc()
		log.Printf("Dispatcher: %s %s: message_id %s probably seen before", action, in.TransactionID, in.MessageID)
	}

	logID := uuid.NewString()
	now := s.now().UTC()
	if err := s.Store.CreateLog(ctx, model.WebhookLog{
		ID:            logID,
		Action:        action,
		Direction:     model.Inbound,
		TransactionID: in.TransactionID,
		MessageID:     in.MessageID,
		RequestBody:   body,
		Status:        model.LogReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		log.Printf("Dispatcher: audit log for %s %s: %v", action, in.MessageID, err)
		logID = ""
	}

	metrics.RequestsTotal.WithLabelValues(action, ondcerr.StatusACK).Inc()
	writeJSON(w, http.StatusOK, ondcerr.Ack(req.Context))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// The ACK is on the wire before any worker can call back.
	kind, _ := tasks.ParseKind(action)
	t := tasks.Task{Kind: kind, Key: in.TransactionID, LogID: logID, Body: body, ReceivedAt: now}
	if err := s.Queue.Enqueue(context.WithoutCancel(ctx), t); err != nil {
		metrics.EnqueueFailuresTotal.WithLabelValues(kind.String()).Inc()
		log.Printf("Dispatcher: enqueue %s %s: %v", action, in.TransactionID, err)
		s.finish(context.WithoutCancel(ctx), logID, model.LogFailed, nil, "enqueue failed: "+err.Error())
	}
}

// auditRejected records a request refused on the synchronous path.
func (s *Server) auditRejected(ctx context.Context, action string, in *model.Context, body []byte, e *ondcerr.Error) {
	now := s.now().UTC()
	entry := model.WebhookLog{
		ID:           uuid.NewString(),
		Action:       action,
		Direction:    model.Inbound,
		Status:       model.LogFailed,
		ErrorMessage: e.Message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if json.Valid(body) {
		entry.RequestBody = body
	}
	if in != nil {
		entry.TransactionID = in.TransactionID
		entry.MessageID = in.MessageID
	}
	if err := s.Store.CreateLog(ctx, entry); err != nil {
		log.Printf("Dispatcher: audit log for rejected %s: %v", action, err)
	}
}

func (s *Server) finish(ctx context.Context, logID, status string, response []byte, errMsg string) {
	if logID == "" {
		return
	}
	var raw json.RawMessage
	if len(response) > 0 && json.Valid(response) {
		raw = response
	}
	if err := s.Store.FinishLog(ctx, logID, status, raw, errMsg); err != nil {
		log.Printf("Dispatcher: finish audit log %s: %v", logID, err)
	}
}

func (s *Server) onSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if s.Subscribe == nil {
		http.Error(w, "encryption keys not configured", http.StatusServiceUnavailable)
		return
	}
	var req subscribe.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Challenge == "" {
		http.Error(w, "invalid on_subscribe body", http.StatusBadRequest)
		return
	}
	answer, err := s.Subscribe.Answer(req.Challenge)
	if err != nil {
		log.Printf("Dispatcher: on_subscribe for %s: %v", req.SubscriberID, err)
		http.Error(w, "challenge could not be decrypted", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, subscribe.Response{Answer: answer})
}

// asOndcError returns err as a protocol error, wrapping plain errors with
// fallback.
func asOndcError(err error, fallback string) *ondcerr.Error {
	var oe *ondcerr.Error
	if errors.As(err, &oe) {
		return oe
	}
	return ondcerr.New(fallback, err.Error())
}
