package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

// MemoryStore holds all data in memory. It is meant for tests and local runs
// (USE_MEMORY_STORE=true), not production.
type MemoryStore struct {
	messages map[string]*models.InboundMessage
	sessions map[string]*models.ChatSession
	items    map[string]*models.StockItem
	phones   map[string]string

	// mu guards the maps; txMu serializes transactions
	mu   sync.RWMutex
	txMu sync.Mutex

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*models.InboundMessage),
		sessions: make(map[string]*models.ChatSession),
		items:    make(map[string]*models.StockItem),
		phones:   make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func cloneMessage(m *models.InboundMessage) *models.InboundMessage {
	c := *m
	return &c
}

func cloneSession(s *models.ChatSession) *models.ChatSession {
	c := *s
	c.Context = make(map[string]string, len(s.Context))
	for k, v := range s.Context {
		c.Context[k] = v
	}
	return &c
}

func cloneItem(i *models.StockItem) *models.StockItem {
	c := *i
	if i.Category != nil {
		cat := *i.Category
		c.Category = &cat
	}
	return &c
}

// Message operations

func (m *MemoryStore) CreateMessage(_ context.Context, msg *models.InboundMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.messages[msg.ID]; exists {
		return false, nil
	}
	m.messages[msg.ID] = cloneMessage(msg)
	return true, nil
}

func (m *MemoryStore) GetMessage(_ context.Context, id string) (*models.InboundMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, exists := m.messages[id]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneMessage(msg), nil
}

func (m *MemoryStore) MarkMessageProcessed(_ context.Context, id, response string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, exists := m.messages[id]
	if !exists || msg.Processed {
		return ErrAlreadyProcessed
	}
	msg.Processed = true
	msg.ProcessedAt = &at
	msg.ResponseText = response
	return nil
}

func (m *MemoryStore) RecordDelivery(_ context.Context, id string, delivered bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, exists := m.messages[id]
	if !exists {
		return ErrNotFound
	}
	msg.Delivered = delivered
	if delivered {
		msg.DeliveredAt = &at
	}
	return nil
}

func (m *MemoryStore) GetUnprocessedMessages(_ context.Context, receivedBefore time.Time, limit int) ([]*models.InboundMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var msgs []*models.InboundMessage
	for _, msg := range m.messages {
		if !msg.Processed && !msg.ReceivedAt.After(receivedBefore) {
			msgs = append(msgs, cloneMessage(msg))
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].ReceivedAt.Equal(msgs[j].ReceivedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// Session operations

func (m *MemoryStore) activeSessions(match func(*models.ChatSession) bool, now time.Time) []*models.ChatSession {
	var out []*models.ChatSession
	for _, s := range m.sessions {
		if s.ActiveAt(now) && match(s) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) GetActiveSession(_ context.Context, userID, sender string, now time.Time) (*models.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.activeSessions(func(s *models.ChatSession) bool {
		return s.UserID == userID && s.Sender == sender
	}, now)
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (m *MemoryStore) GetActiveSessionsForUser(_ context.Context, userID string, now time.Time) ([]*models.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.activeSessions(func(s *models.ChatSession) bool { return s.UserID == userID }, now), nil
}

func (m *MemoryStore) ReplaceSession(_ context.Context, session *models.ChatSession, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == session.UserID && (s.Sender == session.Sender || !s.ActiveAt(now)) {
			delete(m.sessions, id)
		}
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Context == nil {
		session.Context = map[string]string{}
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = m.now()
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, session *models.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.sessions[session.ID]
	if !exists {
		return ErrNotFound
	}
	updated := cloneSession(session)
	updated.CreatedAt = stored.CreatedAt
	updated.ExpiresAt = stored.ExpiresAt
	m.sessions[session.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if !s.ActiveAt(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Stock operations

func (m *MemoryStore) CreateStockItem(_ context.Context, item *models.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Name = strings.ToUpper(strings.TrimSpace(item.Name))
	item.Unit = strings.ToUpper(strings.TrimSpace(item.Unit))
	now := m.now()
	item.CreatedAt, item.UpdatedAt = now, now
	m.items[item.ID] = cloneItem(item)
	return nil
}

func (m *MemoryStore) GetStockItem(_ context.Context, userID, id string) (*models.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[id]
	if !exists || item.UserID != userID {
		return nil, ErrNotFound
	}
	return cloneItem(item), nil
}

func (m *MemoryStore) ListStockItems(_ context.Context, userID string) ([]*models.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*models.StockItem
	for _, item := range m.items {
		if item.UserID == userID {
			items = append(items, cloneItem(item))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (m *MemoryStore) UpdateStockQuantity(_ context.Context, item *models.StockItem, quantity decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.items[item.ID]
	if !exists || stored.Version != item.Version {
		return ErrStaleItem
	}
	stored.Quantity = quantity
	stored.Version++
	stored.UpdatedAt = m.now()

	item.Quantity = quantity
	item.Version = stored.Version
	return nil
}

func (m *MemoryStore) DeleteStockItem(_ context.Context, item *models.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.items[item.ID]
	if !exists || stored.Version != item.Version {
		return ErrStaleItem
	}
	delete(m.items, item.ID)
	return nil
}

func (m *MemoryStore) SetStockPrice(_ context.Context, itemID string, price decimal.Decimal) error {
	return m.updateItem(itemID, func(item *models.StockItem) {
		item.LastUnitPrice = decimal.NewNullDecimal(price)
	})
}

func (m *MemoryStore) SetStockCategory(_ context.Context, itemID, category string) error {
	return m.updateItem(itemID, func(item *models.StockItem) {
		item.Category = &category
	})
}

func (m *MemoryStore) updateItem(itemID string, apply func(*models.StockItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.items[itemID]
	if !exists {
		return ErrNotFound
	}
	apply(item)
	item.Version++
	item.UpdatedAt = m.now()
	return nil
}

// Phone links

func (m *MemoryStore) LinkPhone(_ context.Context, phone, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phones[phone] = userID
	return nil
}

func (m *MemoryStore) GetUserByPhone(_ context.Context, phone string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, exists := m.phones[phone]
	if !exists {
		return "", ErrNotFound
	}
	return userID, nil
}

// Transaction serializes with other transactions and hands fn a store that
// journals the previous value of every key it writes. When fn fails only
// those keys are reverted, so writes made outside the transaction survive.
func (m *MemoryStore) Transaction(_ context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{MemoryStore: m, touched: make(map[string]bool)}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

var _ Store = (*memoryTx)(nil)

// memoryTx is the transaction-bound view of a MemoryStore. Reads go straight
// to the store; writes record an undo entry first.
type memoryTx struct {
	*MemoryStore
	touched map[string]bool
	undo    []func()
}

// journal remembers the current value of table[key] once per transaction
func journal[V any](tx *memoryTx, table map[string]V, kind, key string, clone func(V) V) {
	if tx.touched[kind+":"+key] {
		return
	}
	tx.touched[kind+":"+key] = true

	tx.mu.RLock()
	prev, existed := table[key]
	if existed {
		prev = clone(prev)
	}
	tx.mu.RUnlock()

	tx.undo = append(tx.undo, func() {
		if existed {
			table[key] = prev
		} else {
			delete(table, key)
		}
	})
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

func (tx *memoryTx) saveMessage(id string) {
	journal(tx, tx.messages, "message", id, cloneMessage)
}

func (tx *memoryTx) saveSession(id string) {
	journal(tx, tx.sessions, "session", id, cloneSession)
}

func (tx *memoryTx) saveItem(id string) {
	journal(tx, tx.items, "item", id, cloneItem)
}

// saveSessionsWhere journals every stored session matching keep
func (tx *memoryTx) saveSessionsWhere(keep func(*models.ChatSession) bool) {
	tx.mu.RLock()
	var ids []string
	for id, s := range tx.sessions {
		if keep(s) {
			ids = append(ids, id)
		}
	}
	tx.mu.RUnlock()

	for _, id := range ids {
		tx.saveSession(id)
	}
}

func (tx *memoryTx) CreateMessage(ctx context.Context, msg *models.InboundMessage) (bool, error) {
	tx.saveMessage(msg.ID)
	return tx.MemoryStore.CreateMessage(ctx, msg)
}

func (tx *memoryTx) MarkMessageProcessed(ctx context.Context, id, response string, at time.Time) error {
	tx.saveMessage(id)
	return tx.MemoryStore.MarkMessageProcessed(ctx, id, response, at)
}

func (tx *memoryTx) RecordDelivery(ctx context.Context, id string, delivered bool, at time.Time) error {
	tx.saveMessage(id)
	return tx.MemoryStore.RecordDelivery(ctx, id, delivered, at)
}

func (tx *memoryTx) ReplaceSession(ctx context.Context, session *models.ChatSession, now time.Time) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	tx.saveSessionsWhere(func(s *models.ChatSession) bool { return s.UserID == session.UserID })
	tx.saveSession(session.ID)
	return tx.MemoryStore.ReplaceSession(ctx, session, now)
}

func (tx *memoryTx) UpdateSession(ctx context.Context, session *models.ChatSession) error {
	tx.saveSession(session.ID)
	return tx.MemoryStore.UpdateSession(ctx, session)
}

func (tx *memoryTx) DeleteSession(ctx context.Context, id string) error {
	tx.saveSession(id)
	return tx.MemoryStore.DeleteSession(ctx, id)
}

func (tx *memoryTx) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tx.saveSessionsWhere(func(s *models.ChatSession) bool { return !s.ActiveAt(now) })
	return tx.MemoryStore.DeleteExpiredSessions(ctx, now)
}

func (tx *memoryTx) CreateStockItem(ctx context.Context, item *models.StockItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	tx.saveItem(item.ID)
	return tx.MemoryStore.CreateStockItem(ctx, item)
}

func (tx *memoryTx) UpdateStockQuantity(ctx context.Context, item *models.StockItem, quantity decimal.Decimal) error {
	tx.saveItem(item.ID)
	return tx.MemoryStore.UpdateStockQuantity(ctx, item, quantity)
}

func (tx *memoryTx) DeleteStockItem(ctx context.Context, item *models.StockItem) error {
	tx.saveItem(item.ID)
	return tx.MemoryStore.DeleteStockItem(ctx, item)
}

func (tx *memoryTx) SetStockPrice(ctx context.Context, itemID string, price decimal.Decimal) error {
	tx.saveItem(itemID)
	return tx.MemoryStore.SetStockPrice(ctx, itemID, price)
}

func (tx *memoryTx) SetStockCategory(ctx context.Context, itemID, category string) error {
	tx.saveItem(itemID)
	return tx.MemoryStore.SetStockCategory(ctx, itemID, category)
}

func (tx *memoryTx) LinkPhone(ctx context.Context, phone, userID string) error {
	journal(tx, tx.phones, "phone", phone, func(v string) string { return v })
	return tx.MemoryStore.LinkPhone(ctx, phone, userID)
}

// Transaction inside a transaction joins the outer one
func (tx *memoryTx) Transaction(_ context.Context, fn func(Store) error) error {
	return fn(tx)
}
