// Package ondcerr holds the ONDC error code table and the ACK/NACK envelopes
// every protocol endpoint answers with.
package ondcerr

import (
	"fmt"
	"net/http"
)

// Error types defined by the protocol.
const (
	ContextError = "CONTEXT-ERROR"
	CoreError    = "CORE-ERROR"
	DomainError  = "DOMAIN-ERROR"
	PolicyError  = "POLICY-ERROR"
)

// Codes referenced by name in the code base.
const (
	CodeInvalidContext    = "10000"
	CodeInvalidDomain     = "10001"
	CodeInvalidAction     = "10002"
	CodeStaleTimestamp    = "10003"
	CodeInvalidRequest    = "20000"
	CodeInvalidSignature  = "20001"
	CodeInternal          = "20003"
	CodeTimeout           = "20004"
	CodeProviderNotFound  = "30000"
	CodeItemNotFound      = "30004"
	CodeOutOfStock        = "30006"
	CodeQuantityExceeded  = "30007"
	CodeOrderNotFound     = "30010"
	CodeOrderNotUpdatable = "30011"
	CodeNotCancellable    = "30012"
	CodeBadCancelReason   = "30013"
	CodeConfirmFailed     = "30016"
	CodeInvalidTransition = "30017"
	CodeRatingOutOfRange  = "30018"
	CodeBusinessPolicy    = "40000"
	CodeReconFailed       = "50001"
)

type entry struct {
	Type    string
	Message string
}

var table = map[string]entry{
	"10000": {ContextError, "Invalid request context"},
	"10001": {ContextError, "Invalid domain"},
	"10002": {ContextError, "Invalid action"},
	"10003": {ContextError, "Invalid timestamp - stale request"},

	"20000": {CoreError, "Invalid request"},
	"20001": {CoreError, "Invalid signature"},
	"20002": {CoreError, "Stale request"},
	"20003": {CoreError, "Invalid response"},
	"20004": {CoreError, "Request timed out"},
	"20005": {CoreError, "Schema validation failed"},
	"20006": {CoreError, "Signing algorithm mismatch"},

	"30000": {DomainError, "Provider not found"},
	"30001": {DomainError, "Provider location not found"},
	"30004": {DomainError, "Item not found"},
	"30005": {DomainError, "Category not found"},
	"30006": {DomainError, "Item out of stock"},
	"30007": {DomainError, "Item quantity exceeds available stock"},
	"30008": {DomainError, "Item price has changed"},
	"30009": {DomainError, "Fulfillment service unavailable"},
	"30010": {DomainError, "Order not found"},
	"30011": {DomainError, "Order cannot be updated"},
	"30012": {DomainError, "Order cannot be cancelled"},
	"30013": {DomainError, "Cancellation reason not valid"},
	"30014": {DomainError, "Payment failed"},
	"30015": {DomainError, "Quote has expired"},
	"30016": {DomainError, "Order confirmation failed"},
	"30017": {DomainError, "Invalid fulfillment state transition"},
	"30018": {DomainError, "Rating value out of range"},

	"40000": {PolicyError, "Business policy error"},
	"40001": {PolicyError, "Cancellation not permitted"},
	"40002": {PolicyError, "Return not permitted"},
	"40003": {PolicyError, "Update not permitted"},

	"50001": {DomainError, "Settlement reconciliation failed"},
}

// Error is the {type, code, message} object carried by NACKs and
// error callbacks. It doubles as a Go error so business code can return it.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Type, e.Code, e.Message)
}

// New builds an Error for code. An empty msg uses the table's default text;
// codes missing from the table are reported as DOMAIN-ERROR.
func New(code, msg string) *Error {
	ent, ok := table[code]
	if !ok {
		ent = entry{Type: DomainError, Message: "Unknown error"}
	}
	if msg == "" {
		msg = ent.Message
	}
	return &Error{Type: ent.Type, Code: code, Message: msg}
}

// Newf is New with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the status code used on the synchronous path.
func (e *Error) HTTPStatus() int {
	switch {
	case e.Code == CodeInvalidSignature:
		return http.StatusUnauthorized
	case e.Type == PolicyError:
		return http.StatusForbidden
	case e.Code == CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Ack statuses.
const (
	StatusACK  = "ACK"
	StatusNACK = "NACK"
)

type AckStatus struct {
	Status string `json:"status"`
}

type AckMessage struct {
	Ack AckStatus `json:"ack"`
}

// Response is the synchronous reply to every inbound protocol call.
// Context is kept as the raw inbound bytes so it is echoed byte-for-byte.
type Response struct {
	Context any        `json:"context,omitempty"`
	Message AckMessage `json:"message"`
	Error   *Error     `json:"error,omitempty"`
}

// Ack returns an ACK envelope echoing ctx.
func Ack(ctx any) Response {
	return Response{Context: ctx, Message: AckMessage{Ack: AckStatus{Status: StatusACK}}}
}

// Nack returns a NACK envelope carrying err.
func Nack(ctx any, err *Error) Response {
	return Response{Context: ctx, Message: AckMessage{Ack: AckStatus{Status: StatusNACK}}, Error: err}
}

// IsAck reports whether r acknowledges the request.
func (r Response) IsAck() bool {
	return r.Message.Ack.Status == StatusACK
}

var cancellationReasons = map[string]string{
	"001": "Price of one or more items has changed",
	"002": "One or more items in the Order not available",
	"003": "Product available at lower than order price",
	"004": "Order in pending shipment / delivery state for too long",
	"005": "Merchant rejected the order",
	"006": "Order not received as per the expected date of delivery",
	"007": "No response from seller",
	"008": "Delivery address not serviceable",
	"009": "Duplicate order",
	"010": "Changed my mind",
	"011": "Buyer wants to modify details",
	"012": "Buyer not available at the time of delivery",
	"013": "Wrong product delivered",
	"014": "Quality not as expected",
	"015": "Delayed delivery",

	"501": "Merchant rejected order",
	"502": "Item(s) out of stock",
	"503": "Cannot service delivery area",
	"504": "Order cannot be fulfilled",
	"505": "Store closed",
	"506": "Incorrect pricing",

	"901": "Order delivery delayed",
	"902": "Delivery agent could not reach pickup location",
	"903": "Delivery agent could not reach delivery location",
	"904": "Buyer not available",
	"905": "Address incorrect",
}

// CancellationReason returns the text for a reason code and whether the
// code is known.
func CancellationReason(code string) (string, bool) {
	r, ok := cancellationReasons[code]
	if !ok {
		return "Unknown cancellation reason", false
	}
	return r, true
}
