// Package fulfillment holds the two order lifecycles: the granular
// fulfillment_state and the coarse order_status.
package fulfillment

import (
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
)

// Machine is a closed transition table. States absent from the map, or
// mapped to no targets, are terminal.
type Machine struct {
	name        string
	invalidCode string
	edges       map[string][]string
}

// Fulfillment is the delivery lifecycle.
var Fulfillment = Machine{
	name:        "fulfillment state",
	invalidCode: ondcerr.CodeInvalidTransition,
	edges: map[string][]string{
		model.FulfillmentPending:        {model.FulfillmentPacked, model.FulfillmentCancelled},
		model.FulfillmentPacked:         {model.FulfillmentAgentAssigned, model.FulfillmentCancelled},
		model.FulfillmentAgentAssigned:  {model.FulfillmentAtPickup, model.FulfillmentCancelled},
		model.FulfillmentAtPickup:       {model.FulfillmentPickedUp, model.FulfillmentCancelled},
		model.FulfillmentPickedUp:       {model.FulfillmentOutForDelivery, model.FulfillmentCancelled, model.FulfillmentRTOInitiated},
		model.FulfillmentOutForDelivery: {model.FulfillmentDelivered, model.FulfillmentFailed, model.FulfillmentRTOInitiated},
		model.FulfillmentFailed:         {model.FulfillmentOutForDelivery, model.FulfillmentRTOInitiated},
		model.FulfillmentRTOInitiated:   {model.FulfillmentRTODelivered, model.FulfillmentRTODisposed},
		model.FulfillmentDelivered:      nil,
		model.FulfillmentCancelled:      nil,
		model.FulfillmentRTODelivered:   nil,
		model.FulfillmentRTODisposed:    nil,
	},
}

// OrderStatus is the coarse order lifecycle.
var OrderStatus = Machine{
	name:        "order status",
	invalidCode: ondcerr.CodeOrderNotUpdatable,
	edges: map[string][]string{
		model.OrderPending:    {model.OrderAccepted, model.OrderCancelled},
		model.OrderAccepted:   {model.OrderInProgress, model.OrderCancelled},
		model.OrderInProgress: {model.OrderCompleted, model.OrderCancelled},
		model.OrderCompleted:  nil,
		model.OrderCancelled:  nil,
	},
}

// HappyPath is the forward delivery sequence used by auto-progression.
var HappyPath = []string{
	model.FulfillmentPending,
	model.FulfillmentPacked,
	model.FulfillmentAgentAssigned,
	model.FulfillmentAtPickup,
	model.FulfillmentPickedUp,
	model.FulfillmentOutForDelivery,
	model.FulfillmentDelivered,
}

// Known reports whether state belongs to the machine.
func (m Machine) Known(state string) bool {
	_, ok := m.edges[state]
	return ok
}

// CanTransition reports whether from → to is an allowed edge.
func (m Machine) CanTransition(from, to string) bool {
	for _, s := range m.edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a DOMAIN-ERROR naming the rejected pair.
func (m Machine) ValidateTransition(from, to string) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return ondcerr.Newf(m.invalidCode, "Invalid %s transition from %s to %s", m.name, from, to)
}

// IsTerminal reports whether state has no outbound edges.
func (m Machine) IsTerminal(state string) bool {
	return len(m.edges[state]) == 0
}

// Allowed lists the states reachable from state in one step.
func (m Machine) Allowed(state string) []string {
	out := make([]string, len(m.edges[state]))
	copy(out, m.edges[state])
	return out
}

// Next returns the state after current on HappyPath.
func Next(current string) (string, bool) {
	for i, s := range HappyPath {
		if s == current && i+1 < len(HappyPath) {
			return HappyPath[i+1], true
		}
	}
	return "", false
}

// OrderStatusFor derives the coarse order status implied by a fulfillment
// state, or "" if the fulfillment state does not move the order.
func OrderStatusFor(fulfillmentState string) string {
	switch fulfillmentState {
	case model.FulfillmentPacked:
		return model.OrderAccepted
	case model.FulfillmentAgentAssigned, model.FulfillmentAtPickup, model.FulfillmentPickedUp,
		model.FulfillmentOutForDelivery, model.FulfillmentFailed, model.FulfillmentRTOInitiated:
		return model.OrderInProgress
	case model.FulfillmentDelivered, model.FulfillmentRTODelivered, model.FulfillmentRTODisposed:
		return model.OrderCompleted
	case model.FulfillmentCancelled:
		return model.OrderCancelled
	}
	return ""
}
