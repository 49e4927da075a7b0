package dispatcher

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
	"ondc-bpp/internal/schemagate"
)

// registerAdminRoutes mounts the seller back-office hooks. Every route needs
// the X-Admin-Token header.
func (s *Server) registerAdminRoutes(r *mux.Router) {
	r.Use(s.requireAdmin)
	r.HandleFunc("/orders/{id}/fulfillment", s.adminFulfillment).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}/sales-order", s.adminSalesOrder).Methods(http.MethodPost)
	r.HandleFunc("/issues/{id}/status", s.adminIssueStatus).Methods(http.MethodPost)
	r.HandleFunc("/products", s.adminSaveProduct).Methods(http.MethodPost)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.Config.AdminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeAdmin(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// adminError writes err with the status its protocol code implies.
func adminError(w http.ResponseWriter, err error) {
	e := asOndcError(err, ondcerr.CodeInternal)
	status := http.StatusConflict
	switch e.Code {
	case ondcerr.CodeOrderNotFound:
		status = http.StatusNotFound
	case ondcerr.CodeInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"code": e.Code, "message": e.Message})
}

func (s *Server) adminFulfillment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State string `json:"state"`
	}
	if err := decodeAdmin(r, &body); err != nil || body.State == "" {
		http.Error(w, "state is required", http.StatusBadRequest)
		return
	}
	rec, err := s.Orders.TransitionFulfillment(r.Context(), mux.Vars(r)["id"], body.State)
	if err != nil {
		adminError(w, err)
		return
	}
	if err := s.NotifyStatus(r.Context(), rec); err != nil {
		log.Printf("Admin: on_status for %s failed: %v", rec.OndcOrderID, err)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) adminSalesOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeAdmin(r, &body); err != nil || body.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}
	rec, changed, err := s.Orders.ApplySalesOrderStatus(r.Context(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		adminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "order": rec})
}

func (s *Server) adminIssueStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status     string `json:"status"`
		Resolution string `json:"resolution"`
	}
	if err := decodeAdmin(r, &body); err != nil || body.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}
	t, err := s.Issues.TicketStatusChanged(r.Context(), mux.Vars(r)["id"], body.Status, body.Resolution)
	if t == nil {
		adminError(w, err)
		return
	}
	if err != nil {
		log.Printf("Admin: on_issue_status for %s failed: %v", t.ID(), err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": t.ID(), "status": t.Status()})
}

func (s *Server) adminSaveProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := decodeAdmin(r, &p); err != nil {
		http.Error(w, "invalid product", http.StatusBadRequest)
		return
	}
	if ok, reason := schemagate.ValidateProduct(p); !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": reason})
		return
	}
	if err := s.Store.SaveProduct(r.Context(), p); err != nil {
		adminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
