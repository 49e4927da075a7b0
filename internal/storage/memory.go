package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"ondc-bpp/internal/model"
)

// Memory is an in-process Store. Values are copied in and out so callers
// never share slices with the store.
type Memory struct {
	mu       sync.RWMutex
	products map[string]model.Product
	orders   map[string]model.OrderRecord
	logs     map[string]model.WebhookLog
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[string]model.Product),
		orders:   make(map[string]model.OrderRecord),
		logs:     make(map[string]model.WebhookLog),
	}
}

func (m *Memory) ListActiveProducts(_ context.Context) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetProduct(_ context.Context, id string) (model.Product, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok, nil
}

func (m *Memory) SaveProduct(_ context.Context, p model.Product) error {
	if p.ID == "" {
		return fmt.Errorf("save product: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (model.OrderRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return model.OrderRecord{}, false, nil
	}
	return cloneOrder(o), true, nil
}

func (m *Memory) SaveOrder(_ context.Context, o model.OrderRecord) error {
	if o.OndcOrderID == "" {
		return fmt.Errorf("save order: empty ondc_order_id")
	}
	o.RecalculateTotals()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OndcOrderID] = cloneOrder(o)
	return nil
}

func (m *Memory) UpdateOrder(_ context.Context, id string, fn func(o *model.OrderRecord) error) (model.OrderRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[id]
	if !ok {
		return model.OrderRecord{}, false, nil
	}
	next := cloneOrder(cur)
	if err := fn(&next); err != nil {
		return cloneOrder(cur), true, err
	}
	next.OndcOrderID = id
	next.RecalculateTotals()
	m.orders[id] = cloneOrder(next)
	return next, true, nil
}

func (m *Memory) ListOrders(_ context.Context) ([]model.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.OrderRecord, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OndcOrderID < out[j].OndcOrderID })
	return out, nil
}

func (m *Memory) CreateLog(_ context.Context, l model.WebhookLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[l.ID] = l
	return nil
}

func (m *Memory) FinishLog(_ context.Context, id, status string, response json.RawMessage, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return fmt.Errorf("finish log %s: not found", id)
	}
	l.Status = status
	l.ResponseBody = response
	l.ErrorMessage = errMsg
	l.UpdatedAt = time.Now().UTC()
	m.logs[id] = l
	return nil
}

func (m *Memory) GetLog(_ context.Context, id string) (model.WebhookLog, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.logs[id]
	return l, ok, nil
}

func (m *Memory) PruneLogs(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, l := range m.logs {
		if l.CreatedAt.Before(before) {
			delete(m.logs, id)
			n++
		}
	}
	return n, nil
}

func cloneOrder(o model.OrderRecord) model.OrderRecord {
	o.Items = append([]model.OrderLine(nil), o.Items...)
	return o
}
