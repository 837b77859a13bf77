package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

// =====================
// in-memory TxManager
// =====================

// memState はテーブル相当のマップ。WithinTx ごとに複製し、エラーなら捨てる
type memState struct {
	orders    map[int64]model.Order
	items     map[int64][]model.OrderItem
	payments  map[int64]model.Payment // key: order_id
	shipments []model.ShipmentTracking
	products  map[int64]model.Product
	variants  map[int64]model.Variant
	audits    []model.AuditLog
	seq       int64
}

func newMemState() *memState {
	return &memState{
		orders:   map[int64]model.Order{},
		items:    map[int64][]model.OrderItem{},
		payments: map[int64]model.Payment{},
		products: map[int64]model.Product{},
		variants: map[int64]model.Variant{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	c.shipments = append([]model.ShipmentTracking(nil), s.shipments...)
	c.audits = append([]model.AuditLog(nil), s.audits...)
	c.seq = s.seq
	return c
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

// memTx はTxを1本ずつ直列に流す（行ロックの代わり）
type memTx struct {
	mu    sync.Mutex
	state *memState

	// 次の Payments().Create を重複扱いにする回数
	dupTxnIDs int
}

func newMemTx() *memTx {
	return &memTx{state: newMemState()}
}

func (m *memTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memRepos{s: work, tx: m}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// テストから commit 済みの状態を見る
func (m *memTx) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memTx) seedProduct(p model.Product, variants ...model.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
	for _, v := range variants {
		v.ProductID = p.ID
		m.state.variants[v.ID] = v
	}
}

// 直接書き換える（価格変更や古い注文の用意など）
func (m *memTx) mutate(fn func(s *memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

type memRepos struct {
	s  *memState
	tx *memTx
}

func (r *memRepos) Orders() repo.OrderRepository         { return memOrders{r.s} }
func (r *memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r.s} }
func (r *memRepos) Payments() repo.PaymentRepository     { return memPayments{r.s, r.tx} }
func (r *memRepos) Shipments() repo.ShipmentRepository   { return memShipments{r.s} }
func (r *memRepos) Products() repo.ProductRepository     { return memProducts{r.s} }
func (r *memRepos) Inventory() repo.InventoryRepository  { return memInventory{r.s} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository   { return memAudits{r.s} }

// =====================
// repositories
// =====================

type memOrders struct{ s *memState }

func (m memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	o.ID = m.s.nextID()
	m.s.orders[o.ID] = o
	return o.ID, nil
}

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := m.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return m.FindByID(ctx, orderID)
}

func (m memOrders) UpdateStatuses(ctx context.Context, orderID int64, os model.OrderStatus, ps model.PaymentStatus) error {
	o, ok := m.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.OrderStatus = os
	o.PaymentStatus = ps
	m.s.orders[orderID] = o
	return nil
}

func (m memOrders) sorted() []model.Order {
	out := make([]model.Order, 0, len(m.s.orders))
	for _, o := range m.s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func pageOf(orders []model.Order, p, limit int) []model.Order {
	start := (p - 1) * limit
	if start >= len(orders) {
		return []model.Order{}
	}
	end := start + limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[start:end]
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, p int, limit int) ([]model.Order, int64, error) {
	var mine []model.Order
	for _, o := range m.sorted() {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}
	//新しい順
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID > mine[j].ID })
	return pageOf(mine, p, limit), int64(len(mine)), nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var hit []model.Order
	for _, o := range m.sorted() {
		if f.OrderStatus != nil && o.OrderStatus != *f.OrderStatus {
			continue
		}
		if f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus {
			continue
		}
		if f.PaymentMethod != nil && o.PaymentMethod != *f.PaymentMethod {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		hit = append(hit, o)
	}
	if f.SortBy == repo.OrderSortTotalAmount {
		sort.SliceStable(hit, func(i, j int) bool { return hit[i].TotalAmount.LessThan(hit[j].TotalAmount) })
	}
	if f.SortDesc {
		for i, j := 0, len(hit)-1; i < j; i, j = i+1, j-1 {
			hit[i], hit[j] = hit[j], hit[i]
		}
	}
	return pageOf(hit, f.Page, f.Limit), int64(len(hit)), nil
}

func (m memOrders) ListReclaimable(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range m.sorted() {
		if len(out) >= limit {
			break
		}
		if Reclaimable(o, cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

type memOrderItems struct{ s *memState }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = m.s.nextID()
		it.OrderID = orderID
		m.s.items[orderID] = append(m.s.items[orderID], it)
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem(nil), m.s.items[orderID]...), nil
}

type memPayments struct {
	s  *memState
	tx *memTx
}

func (m memPayments) Create(ctx context.Context, p model.Payment) (int64, error) {
	if m.tx.dupTxnIDs > 0 {
		m.tx.dupTxnIDs--
		return 0, repo.ErrDuplicateTransactionID
	}
	for _, cur := range m.s.payments {
		if cur.TransactionID == p.TransactionID {
			return 0, repo.ErrDuplicateTransactionID
		}
	}
	p.ID = m.s.nextID()
	m.s.payments[p.OrderID] = p
	return p.ID, nil
}

func (m memPayments) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	p, ok := m.s.payments[orderID]
	if !ok {
		return model.Payment{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memPayments) FindByTransactionID(ctx context.Context, txnID string) (model.Payment, error) {
	for _, p := range m.s.payments {
		if p.TransactionID == txnID {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

func (m memPayments) Update(ctx context.Context, p model.Payment) error {
	if _, ok := m.s.payments[p.OrderID]; !ok {
		return repo.ErrNotFound
	}
	for _, cur := range m.s.payments {
		if cur.OrderID != p.OrderID && cur.TransactionID == p.TransactionID {
			return repo.ErrDuplicateTransactionID
		}
	}
	m.s.payments[p.OrderID] = p
	return nil
}

type memShipments struct{ s *memState }

func (m memShipments) Create(ctx context.Context, t model.ShipmentTracking) (model.ShipmentTracking, error) {
	t.ID = m.s.nextID()
	m.s.shipments = append(m.s.shipments, t)
	return t, nil
}

func (m memShipments) ListByOrderID(ctx context.Context, orderID int64) ([]model.ShipmentTracking, error) {
	var out []model.ShipmentTracking
	for _, t := range m.s.shipments {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memProducts struct{ s *memState }

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.s.products[id]
	if !ok || !p.IsActive {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) FindVariant(ctx context.Context, productID int64, color, size string) (model.Variant, error) {
	for _, v := range m.s.variants {
		if v.ProductID == productID && v.Color == color && v.Size == size {
			return v, nil
		}
	}
	return model.Variant{}, repo.ErrNotFound
}

func (m memProducts) FindVariantByID(ctx context.Context, variantID int64) (model.Variant, error) {
	v, ok := m.s.variants[variantID]
	if !ok {
		return model.Variant{}, repo.ErrNotFound
	}
	return v, nil
}

type memInventory struct{ s *memState }

func (m memInventory) DecreaseVariantIfEnough(ctx context.Context, variantID int64, qty int64) (bool, error) {
	v, ok := m.s.variants[variantID]
	if !ok || v.Quantity < qty {
		return false, nil
	}
	v.Quantity -= qty
	m.s.variants[variantID] = v
	return true, nil
}

func (m memInventory) DecreaseProductIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := m.s.products[productID]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	m.s.products[productID] = p
	return true, nil
}

func (m memInventory) IncreaseVariant(ctx context.Context, variantID int64, qty int64) error {
	v, ok := m.s.variants[variantID]
	if !ok {
		return repo.ErrNotFound
	}
	v.Quantity += qty
	m.s.variants[variantID] = v
	return nil
}

func (m memInventory) IncreaseProduct(ctx context.Context, productID int64, qty int64) error {
	p, ok := m.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.StockQuantity += qty
	m.s.products[productID] = p
	return nil
}

type memAudits struct{ s *memState }

func (m memAudits) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = m.s.nextID()
	m.s.audits = append(m.s.audits, log)
	return nil
}

func (m memAudits) ListTrail(ctx context.Context, q repo.AuditTrailQuery) ([]model.AuditLog, int64, error) {
	var hit []model.AuditLog
	for _, a := range m.s.audits {
		if a.ResourceType != q.ResourceType || a.ResourceID != q.ResourceID {
			continue
		}
		if q.Action != nil && a.Action != *q.Action {
			continue
		}
		hit = append(hit, a)
	}
	total := int64(len(hit))
	if q.Offset >= len(hit) {
		return []model.AuditLog{}, total, nil
	}
	hit = hit[q.Offset:]
	if q.Limit > 0 && len(hit) > q.Limit {
		hit = hit[:q.Limit]
	}
	return hit, total, nil
}
