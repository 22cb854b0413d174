package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
	"github.com/shopspring/decimal"
)

// memState — всё содержимое хранилища. Транзакция работает с копией и подменяет состояние при коммите.
type memState struct {
	products     map[int64]models.Product
	cart         map[int64]models.CartItem
	orders       map[uuid.UUID]models.Order
	items        []models.OrderItem
	outbox       []models.OutboxEvent
	nextItemID   int64
	nextOutboxID int64
}

func (s *memState) clone() *memState {
	c := &memState{
		products:     make(map[int64]models.Product, len(s.products)),
		cart:         make(map[int64]models.CartItem, len(s.cart)),
		orders:       make(map[uuid.UUID]models.Order, len(s.orders)),
		items:        append([]models.OrderItem(nil), s.items...),
		outbox:       append([]models.OutboxEvent(nil), s.outbox...),
		nextItemID:   s.nextItemID,
		nextOutboxID: s.nextOutboxID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// memStore — транзакционное хранилище в памяти.
// Открытая транзакция держит txLock до Commit/Rollback, поэтому транзакции сериализуемы.
type memStore struct {
	txLock sync.Mutex
	state  *memState

	beginErr  error
	commitErr error
	commits   int

	hooks map[string]func(call int) error
	calls map[string]int
	next  int64
}

var _ storage.TxBeginner = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			products: make(map[int64]models.Product),
			cart:     make(map[int64]models.CartItem),
			orders:   make(map[uuid.UUID]models.Order),
		},
		hooks: make(map[string]func(call int) error),
		calls: make(map[string]int),
	}
}

func (s *memStore) addProduct(id int64, name, price string, stock int) {
	s.state.products[id] = models.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func (s *memStore) addCartItem(userID, productID int64, quantity int) int64 {
	s.next++
	s.state.cart[s.next] = models.CartItem{ID: s.next, UserID: userID, ProductID: productID, Quantity: quantity}
	return s.next
}

// failOn заставляет операцию op вернуть err на вызове номер call (с единицы)
func (s *memStore) failOn(op string, call int, err error) {
	s.hooks[op] = func(n int) error {
		if n == call {
			return err
		}
		return nil
	}
}

// hook вызывается изнутри транзакции, txLock уже захвачен
func (s *memStore) hook(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.calls[op]++
	if h, ok := s.hooks[op]; ok {
		return h(s.calls[op])
	}
	return nil
}

// read возвращает копию зафиксированного состояния
func (s *memStore) read() *memState {
	s.txLock.Lock()
	defer s.txLock.Unlock()
	return s.state.clone()
}

func (s *memStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.txLock.Lock()
	return &memTx{store: s, state: s.state.clone()}, nil
}

var errRawSQL = errors.New("memTx: raw SQL is not supported")

type memTx struct {
	store *memStore
	state *memState
	done  bool
}

func (t *memTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errRawSQL
}

func (t *memTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errRawSQL
}

func (t *memTx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.store.txLock.Unlock()
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	t.store.state = t.state
	t.store.commits++
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.txLock.Unlock()
	return nil
}

func txState(q storage.Querier) *memState {
	return q.(*memTx).state
}

// memProducts реализует storage.ProductStorage поверх memStore
type memProducts struct{ s *memStore }

var _ storage.ProductStorage = (*memProducts)(nil)

func (r *memProducts) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	r.s.next++
	p.ID = r.s.next
	r.s.state.products[p.ID] = *p
	return p, nil
}

func (r *memProducts) UpdateProduct(ctx context.Context, p *models.Product) error {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	cur, ok := r.s.state.products[p.ID]
	if !ok {
		return storage.ErrProductNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Price = p.Price
	r.s.state.products[p.ID] = cur
	return nil
}

func (r *memProducts) DeleteProduct(ctx context.Context, id int64) error {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	if _, ok := r.s.state.products[id]; !ok {
		return storage.ErrProductNotFound
	}
	delete(r.s.state.products, id)
	return nil
}

func (r *memProducts) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	p, ok := r.s.state.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProducts) ListProducts(ctx context.Context) ([]*models.Product, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	var out []*models.Product
	for _, p := range r.s.state.products {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memProducts) ListTopSelling(ctx context.Context, limit int) ([]*models.Product, error) {
	all, _ := r.ListProducts(ctx)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Sold > all[j].Sold })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memProducts) ListRecent(ctx context.Context, limit int) ([]*models.Product, error) {
	all, _ := r.ListProducts(ctx)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memProducts) LockProductsByIDs(ctx context.Context, q storage.Querier, ids []int64) (map[int64]*models.Product, error) {
	if err := r.s.hook(ctx, "lock"); err != nil {
		return nil, err
	}
	st := txState(q)
	out := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (r *memProducts) GetProductByIDTx(ctx context.Context, q storage.Querier, id int64) (*models.Product, error) {
	if err := r.s.hook(ctx, "get_product"); err != nil {
		return nil, err
	}
	p, ok := txState(q).products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProducts) DecrementStock(ctx context.Context, q storage.Querier, id int64, quantity int, trackSold bool) (int, error) {
	if err := r.s.hook(ctx, "decrement"); err != nil {
		return 0, err
	}
	st := txState(q)
	p, ok := st.products[id]
	if !ok || p.Stock < quantity {
		return 0, storage.ErrStockNotDecremented
	}
	p.Stock -= quantity
	if trackSold {
		p.Sold += quantity
	}
	st.products[id] = p
	return p.Stock, nil
}

func (r *memProducts) IncrementStock(ctx context.Context, q storage.Querier, id int64, quantity int) (int, error) {
	if err := r.s.hook(ctx, "increment"); err != nil {
		return 0, err
	}
	st := txState(q)
	p, ok := st.products[id]
	if !ok {
		return 0, storage.ErrProductNotFound
	}
	p.Stock += quantity
	st.products[id] = p
	return p.Stock, nil
}

// memCart реализует storage.CartStorage
type memCart struct{ s *memStore }

var _ storage.CartStorage = (*memCart)(nil)

func cartOf(st *memState, userID int64) []*models.CartItem {
	var items []*models.CartItem
	for _, item := range st.cart {
		if item.UserID == userID {
			item := item
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (r *memCart) GetCartItemsByUserID(ctx context.Context, q storage.Querier, userID int64) ([]*models.CartItem, error) {
	if err := r.s.hook(ctx, "cart"); err != nil {
		return nil, err
	}
	return cartOf(txState(q), userID), nil
}

func (r *memCart) ListCartWithProducts(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	items := cartOf(r.s.state, userID)
	for _, item := range items {
		if p, ok := r.s.state.products[item.ProductID]; ok {
			item.Product = &p
		}
	}
	return items, nil
}

func (r *memCart) AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	for id, existing := range r.s.state.cart {
		if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
			existing.Quantity += item.Quantity
			r.s.state.cart[id] = existing
			return &existing, nil
		}
	}
	r.s.next++
	item.ID = r.s.next
	r.s.state.cart[item.ID] = *item
	return item, nil
}

func (r *memCart) DeleteItem(ctx context.Context, userID, itemID int64) error {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	item, ok := r.s.state.cart[itemID]
	if !ok || item.UserID != userID {
		return storage.ErrCartItemNotFound
	}
	delete(r.s.state.cart, itemID)
	return nil
}

func (r *memCart) DeleteItemTx(ctx context.Context, q storage.Querier, itemID int64) error {
	if err := r.s.hook(ctx, "delete_cart"); err != nil {
		return err
	}
	st := txState(q)
	if _, ok := st.cart[itemID]; !ok {
		return storage.ErrCartItemNotFound
	}
	delete(st.cart, itemID)
	return nil
}

// memOrders реализует storage.OrderStorage
type memOrders struct{ s *memStore }

var _ storage.OrderStorage = (*memOrders)(nil)

func (r *memOrders) CreateOrder(ctx context.Context, q storage.Querier, order *models.Order) error {
	if err := r.s.hook(ctx, "create_order"); err != nil {
		return err
	}
	order.CreatedAt = time.Now()
	o := *order
	o.Items = nil
	txState(q).orders[o.ID] = o
	return nil
}

func (r *memOrders) CreateOrderItem(ctx context.Context, q storage.Querier, item *models.OrderItem) error {
	if err := r.s.hook(ctx, "create_item"); err != nil {
		return err
	}
	st := txState(q)
	st.nextItemID++
	item.ID = st.nextItemID
	stored := *item
	stored.ProductName = nil
	st.items = append(st.items, stored)
	return nil
}

func assembleOrder(st *memState, o models.Order) *models.Order {
	for _, item := range st.items {
		if item.OrderID == o.ID {
			if p, ok := st.products[item.ProductID]; ok {
				name := p.Name
				item.ProductName = &name
			}
			o.Items = append(o.Items, item)
		}
	}
	return &o
}

func (r *memOrders) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	var out []*models.Order
	for _, o := range r.s.state.orders {
		if o.UserID == userID {
			out = append(out, assembleOrder(r.s.state, o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrders) GetOrderByID(ctx context.Context, userID int64, orderID uuid.UUID) (*models.Order, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	o, ok := r.s.state.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, storage.ErrOrderNotFound
	}
	return assembleOrder(r.s.state, o), nil
}

// memOutbox реализует storage.OutboxStorage
type memOutbox struct{ s *memStore }

var _ storage.OutboxStorage = (*memOutbox)(nil)

func (r *memOutbox) Insert(ctx context.Context, q storage.Querier, event *models.OutboxEvent) error {
	if err := r.s.hook(ctx, "outbox"); err != nil {
		return err
	}
	st := txState(q)
	st.nextOutboxID++
	event.ID = st.nextOutboxID
	st.outbox = append(st.outbox, *event)
	return nil
}

func (r *memOutbox) FetchPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	var out []*models.OutboxEvent
	for _, e := range r.s.state.outbox {
		if e.SentAt == nil && len(out) < limit {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *memOutbox) MarkSent(ctx context.Context, id int64) error {
	r.s.txLock.Lock()
	defer r.s.txLock.Unlock()
	now := time.Now()
	for i := range r.s.state.outbox {
		if r.s.state.outbox[i].ID == id {
			r.s.state.outbox[i].SentAt = &now
		}
	}
	return nil
}
