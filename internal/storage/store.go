// Package storage persists products, orders and webhook logs, and keeps the
// append-only compliance audit trail.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"ondc-bpp/internal/model"
)

// Products is the catalog side of the document store.
type Products interface {
	ListActiveProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, bool, error)
	SaveProduct(ctx context.Context, p model.Product) error
}

// Orders is the order side of the document store. A missing order is
// reported as found == false with a nil error.
//
// UpdateOrder applies fn to the stored order and writes the result as one
// atomic read-modify-write, so concurrent updates from separate processes
// never overwrite each other. When fn returns an error nothing is written
// and the stored order is returned with that error.
type Orders interface {
	GetOrder(ctx context.Context, id string) (model.OrderRecord, bool, error)
	SaveOrder(ctx context.Context, o model.OrderRecord) error
	UpdateOrder(ctx context.Context, id string, fn func(o *model.OrderRecord) error) (model.OrderRecord, bool, error)
	ListOrders(ctx context.Context) ([]model.OrderRecord, error)
}

// Logs records webhook exchanges.
type Logs interface {
	CreateLog(ctx context.Context, l model.WebhookLog) error
	FinishLog(ctx context.Context, id, status string, response json.RawMessage, errMsg string) error
	GetLog(ctx context.Context, id string) (model.WebhookLog, bool, error)
	PruneLogs(ctx context.Context, before time.Time) (int, error)
}

// Store is the full document store.
type Store interface {
	Products
	Orders
	Logs
}

// ComplianceSink receives network observability records.
type ComplianceSink interface {
	Record(ctx context.Context, entry model.ComplianceLog) error
}
