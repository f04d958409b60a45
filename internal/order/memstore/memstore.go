// Package memstore is a thread-safe in-memory order.Repository used by
// service tests and local tooling.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/2b33rs/codevision-backend/internal/order"
)

type Store struct {
	mu               sync.RWMutex
	customers        map[uuid.UUID]order.Customer
	orders           map[uuid.UUID]order.Order
	positions        map[uuid.UUID]order.Position
	productionOrders map[uuid.UUID]order.ProductionOrder
	products         map[uuid.UUID]order.StandardProduct
	deletedProducts  map[uuid.UUID]time.Time
	complaints       []order.Complaint
	counters         map[int]int
}

var _ order.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		customers:        make(map[uuid.UUID]order.Customer),
		orders:           make(map[uuid.UUID]order.Order),
		positions:        make(map[uuid.UUID]order.Position),
		productionOrders: make(map[uuid.UUID]order.ProductionOrder),
		products:         make(map[uuid.UUID]order.StandardProduct),
		deletedProducts:  make(map[uuid.UUID]time.Time),
		counters:         make(map[int]int),
	}
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

func (s *Store) CreateCustomer(ctx context.Context, c *order.Customer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c.ID = newID()
	if c.Country == "" {
		c.Country = "DE"
	}
	c.CreatedAt, c.UpdatedAt = now, now
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*order.Customer, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, order.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]order.Customer, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *order.Customer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.customers[c.ID]
	if !ok {
		return order.ErrCustomerNotFound
	}
	if c.Country == "" {
		c.Country = "DE"
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return order.ErrCustomerNotFound
	}
	for _, o := range s.orders {
		if o.CustomerID != nil && *o.CustomerID == id {
			return order.ErrCustomerInUse
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	year := now.Year()
	s.counters[year]++

	o.ID = newID()
	o.OrderNumber = fmt.Sprintf("%d%04d", year, s.counters[year])
	o.CreatedAt, o.UpdatedAt = now, now

	for i := range o.Positions {
		p := &o.Positions[i]
		p.ID = newID()
		p.OrderID = o.ID
		p.OrderNumber = o.OrderNumber
		if p.Status == "" {
			p.Status = order.PositionOpen
		}
		p.CreatedAt, p.UpdatedAt = now, now
		stored := *p
		stored.ProductionOrders = nil
		s.positions[p.ID] = stored
	}

	stored := *o
	stored.Positions = nil
	s.orders[o.ID] = stored
	return nil
}

// assemble must be called with the lock held.
func (s *Store) assemble(o order.Order) order.Order {
	o.Positions = make([]order.Position, 0)
	for _, p := range s.positions {
		if p.OrderID == o.ID {
			p.ProductionOrders = s.productionOrdersOf(p.ID)
			o.Positions = append(o.Positions, p)
		}
	}
	sort.Slice(o.Positions, func(i, j int) bool { return o.Positions[i].PosNumber < o.Positions[j].PosNumber })
	return o
}

func (s *Store) productionOrdersOf(positionID uuid.UUID) []order.ProductionOrder {
	out := make([]order.ProductionOrder, 0)
	for _, po := range s.productionOrders {
		if po.PositionID != nil && *po.PositionID == positionID {
			out = append(out, po)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o = s.assemble(o)
	return &o, nil
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]order.Order, error) {
	return s.listOrders(ctx, func(o order.Order) bool {
		return o.CustomerID != nil && *o.CustomerID == customerID
	})
}

func (s *Store) ListOrdersWithPositionStatus(ctx context.Context, status order.PositionStatus) ([]order.Order, error) {
	return s.listOrders(ctx, func(o order.Order) bool {
		for _, p := range o.Positions {
			if p.Status == status {
				return true
			}
		}
		return false
	})
}

func (s *Store) listOrders(ctx context.Context, keep func(order.Order) bool) ([]order.Order, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Order, 0)
	for _, o := range s.orders {
		o = s.assemble(o)
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return out, nil
}

func (s *Store) GetPosition(ctx context.Context, id uuid.UUID) (*order.Position, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, order.ErrPositionNotFound
	}
	return &p, nil
}

func (s *Store) GetPositionByKey(ctx context.Context, orderNumber string, posNumber int) (*order.Position, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.positions {
		if p.OrderNumber == orderNumber && p.PosNumber == posNumber {
			return &p, nil
		}
	}
	return nil, order.ErrPositionNotFound
}

func (s *Store) UpdatePositionStatus(ctx context.Context, id uuid.UUID, from, to order.PositionStatus) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return order.ErrPositionNotFound
	}
	if p.Status != from {
		return order.ErrStaleStatus
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	s.positions[id] = p
	return nil
}

func (s *Store) CreateProductionOrder(ctx context.Context, po *order.ProductionOrder) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := 1
	if po.PositionID != nil {
		for _, existing := range s.productionOrdersOf(*po.PositionID) {
			if existing.SequenceNumber >= seq {
				seq = existing.SequenceNumber + 1
			}
		}
	}

	now := time.Now().UTC()
	po.ID = newID()
	po.SequenceNumber = seq
	if po.Status == "" {
		po.Status = order.ProductionOrderReceived
	}
	po.CreatedAt, po.UpdatedAt = now, now
	s.productionOrders[po.ID] = *po
	return nil
}

func (s *Store) GetProductionOrderByKey(ctx context.Context, key order.Key) (*order.ProductionOrder, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.positions {
		if p.OrderNumber != key.OrderNumber || p.PosNumber != key.PosNumber {
			continue
		}
		for _, po := range s.productionOrdersOf(p.ID) {
			if po.SequenceNumber == key.Sequence {
				return &po, nil
			}
		}
	}
	return nil, order.ErrProductionOrderNotFound
}

func (s *Store) ListProductionOrdersByPosition(ctx context.Context, positionID uuid.UUID) ([]order.ProductionOrder, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productionOrdersOf(positionID), nil
}

func (s *Store) UpdateProductionOrderStatus(ctx context.Context, id uuid.UUID, from, to order.ProductionOrderStatus) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.productionOrders[id]
	if !ok {
		return order.ErrProductionOrderNotFound
	}
	if po.Status != from {
		return order.ErrStaleStatus
	}
	po.Status = to
	po.UpdatedAt = time.Now().UTC()
	s.productionOrders[id] = po
	return nil
}

func (s *Store) CreateStandardProduct(ctx context.Context, p *order.StandardProduct) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p.ID = newID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.SubTypes == nil {
		p.SubTypes = []string{}
	}
	s.products[p.ID] = *p
	return nil
}

func (s *Store) GetStandardProduct(ctx context.Context, id uuid.UUID) (*order.StandardProduct, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.liveProduct(id)
	if !ok {
		return nil, order.ErrStandardProductNotFound
	}
	return &p, nil
}

// liveProduct must be called with the lock held.
func (s *Store) liveProduct(id uuid.UUID) (order.StandardProduct, bool) {
	if _, deleted := s.deletedProducts[id]; deleted {
		return order.StandardProduct{}, false
	}
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) UpdateStandardProduct(ctx context.Context, p *order.StandardProduct) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.liveProduct(p.ID)
	if !ok {
		return order.ErrStandardProductNotFound
	}
	if p.SubTypes == nil {
		p.SubTypes = []string{}
	}
	p.AmountInProduction = old.AmountInProduction
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteStandardProduct(ctx context.Context, id uuid.UUID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveProduct(id); !ok {
		return order.ErrStandardProductNotFound
	}
	s.deletedProducts[id] = time.Now().UTC()
	return nil
}

// ListStandardProducts matches every word of search against name, color and
// size, case-insensitively.
func (s *Store) ListStandardProducts(ctx context.Context, search string) ([]order.StandardProduct, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := strings.Fields(strings.ToLower(search))
	out := make([]order.StandardProduct, 0)
	for id, p := range s.products {
		if _, deleted := s.deletedProducts[id]; deleted {
			continue
		}
		doc := strings.ToLower(p.Name + " " + p.Color + " " + string(p.Size))
		match := true
		for _, w := range words {
			if !strings.Contains(doc, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) AdjustAmountInProduction(ctx context.Context, id uuid.UUID, delta int) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return order.ErrStandardProductNotFound
	}
	p.AmountInProduction = max(p.AmountInProduction+delta, 0)
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

func (s *Store) CreateComplaint(ctx context.Context, c *order.Complaint) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[c.PositionID]; !ok {
		return order.ErrPositionNotFound
	}
	c.ID = newID()
	c.CreatedAt = time.Now().UTC()
	s.complaints = append(s.complaints, *c)
	return nil
}

func (s *Store) ListComplaints(ctx context.Context, filter order.ComplaintFilter) ([]order.Complaint, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Complaint, 0)
	for _, c := range s.complaints {
		p := s.positions[c.PositionID]
		o := s.orders[p.OrderID]
		switch {
		case filter.PositionID != nil && c.PositionID != *filter.PositionID:
			continue
		case filter.PositionID == nil && filter.OrderID != nil && p.OrderID != *filter.OrderID:
			continue
		case filter.PositionID == nil && filter.OrderID == nil && filter.CustomerID != nil &&
			(o.CustomerID == nil || *o.CustomerID != *filter.CustomerID):
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
