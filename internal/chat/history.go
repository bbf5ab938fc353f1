// Package chat holds the per-user conversation state and the
// orchestrator that drives one assistant turn against the
// chat-completion backend.
package chat

import (
	"sync"

	"finapp-server/internal/cache"
	"finapp-server/internal/model"
)

// MaxMessages bounds each user's stored history. Insertion beyond the
// bound evicts the oldest message first, one eviction per insert.
const MaxMessages = 50

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is one user's conversation state: a FIFO-bounded message
// window plus the category snapshot embedded into the system prompt.
// The snapshot is wholesale-replaced, never merged, and carries an
// explicit loaded flag so "needs reload" does not have to be inferred
// from an empty history.
type History struct {
	mu               sync.Mutex
	messages         []Message
	categories       []model.Category
	categoriesLoaded bool
}

// Append stores messages in order, evicting from the front as each
// insert passes the bound.
func (h *History) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range msgs {
		if len(h.messages) >= MaxMessages {
			h.messages = h.messages[1:]
		}
		h.messages = append(h.messages, m)
	}
}

// Messages returns a snapshot of the stored window, oldest first.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// ClearMessages drops the conversation but keeps the category snapshot.
func (h *History) ClearMessages() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// SetCategories replaces the snapshot wholesale and marks it loaded.
func (h *History) SetCategories(categories []model.Category) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.categories = append([]model.Category(nil), categories...)
	h.categoriesLoaded = true
}

// Categories returns the snapshot and whether it has ever been loaded.
func (h *History) Categories() ([]model.Category, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Category, len(h.categories))
	copy(out, h.categories)
	return out, h.categoriesLoaded
}

// MarkCategoriesDirty forces a reload before the next turn. Used by the
// category-refresh tool and by category CRUD.
func (h *History) MarkCategoriesDirty() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.categoriesLoaded = false
}

// HistoryCache is the per-user, in-memory store of History entries,
// keyed by user id and created lazily on first access.
type HistoryCache struct {
	store *cache.Store[uint64, *History]
}

func NewHistoryCache() *HistoryCache {
	return &HistoryCache{store: cache.New[uint64, *History]()}
}

// GetOrCreate returns the user's history entry, creating an empty one
// on first access.
func (c *HistoryCache) GetOrCreate(userID uint64) *History {
	return c.store.GetOrCreate(userID, func() *History { return &History{} })
}

// Clear empties the user's conversation while keeping the entry (and
// its category snapshot) cached.
func (c *HistoryCache) Clear(userID uint64) {
	if h, ok := c.store.Get(userID); ok {
		h.ClearMessages()
	}
}

// MarkCategoriesDirty flags the user's snapshot for reload, if cached.
func (c *HistoryCache) MarkCategoriesDirty(userID uint64) {
	if h, ok := c.store.Get(userID); ok {
		h.MarkCategoriesDirty()
	}
}

// Delete removes the user's entry entirely.
func (c *HistoryCache) Delete(userID uint64) {
	c.store.Delete(userID)
}
