package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/models"
)

// MemoryDB keeps everything in process. It backs tests and DB_TYPE=memory
// development runs; nothing survives a restart.
type MemoryDB struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*models.User
	connections   map[uuid.UUID]*models.Connection
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID]*models.Message
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[uuid.UUID]*models.User),
		connections:   make(map[uuid.UUID]*models.Connection),
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID]*models.Message),
	}
}

// AddUser seeds the directory.
func (db *MemoryDB) AddUser(u *models.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	db.users[cp.ID] = &cp
}

func (db *MemoryDB) Ping(ctx context.Context) error { return ctx.Err() }

func (db *MemoryDB) Close() error { return nil }

func (db *MemoryDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (db *MemoryDB) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[uuid.UUID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (db *MemoryDB) SearchUsers(ctx context.Context, query string, excludeID uuid.UUID, limit, offset int) ([]*models.User, int, error) {
	limit, offset = clampPage(limit, offset)
	q := strings.ToLower(strings.TrimSpace(query))

	db.mu.RLock()
	var matches []*models.User
	for _, u := range db.users {
		if u.ID == excludeID || u.Role == "admin" {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			cp := *u
			matches = append(matches, &cp)
		}
	}
	db.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})
	return page(matches, limit, offset), len(matches), nil
}

func (db *MemoryDB) CreateConnection(ctx context.Context, c *models.Connection) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := models.PairKey(c.RequesterID, c.RecipientID)
	for _, existing := range db.connections {
		if models.PairKey(existing.RequesterID, existing.RecipientID) == key {
			return ErrConnectionExists
		}
	}
	db.connections[c.ID] = cloneConnection(c)
	return nil
}

func (db *MemoryDB) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.connections[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return cloneConnection(c), nil
}

func (db *MemoryDB) FindConnectionBetween(ctx context.Context, a, b uuid.UUID) (*models.Connection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	key := models.PairKey(a, b)
	for _, c := range db.connections {
		if models.PairKey(c.RequesterID, c.RecipientID) == key {
			return cloneConnection(c), nil
		}
	}
	return nil, ErrConnectionNotFound
}

func (db *MemoryDB) UpdateConnection(ctx context.Context, c *models.Connection) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	existing, ok := db.connections[c.ID]
	if !ok {
		return ErrConnectionNotFound
	}
	existing.Status = c.Status
	existing.BlockedBy = c.BlockedBy
	existing.RespondedAt = c.RespondedAt
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

func (db *MemoryDB) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.connections[id]; !ok {
		return ErrConnectionNotFound
	}
	delete(db.connections, id)
	return nil
}

func (db *MemoryDB) ListConnections(ctx context.Context, f ConnectionFilter) ([]*models.Connection, int, error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	db.mu.RLock()
	var matches []*models.Connection
	for _, c := range db.connections {
		switch f.Role {
		case RoleRequester:
			if c.RequesterID != f.UserID {
				continue
			}
		case RoleRecipient:
			if c.RecipientID != f.UserID {
				continue
			}
		default:
			if !c.Involves(f.UserID) {
				continue
			}
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		matches = append(matches, cloneConnection(c))
	}
	db.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return page(matches, limit, offset), len(matches), nil
}

func (db *MemoryDB) CreateConversation(ctx context.Context, c *models.Conversation) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.conversations {
		if existing.Participants == c.Participants {
			return ErrConversationExists
		}
	}
	db.conversations[c.ID] = cloneConversation(c)
	return nil
}

func (db *MemoryDB) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return cloneConversation(c), nil
}

func (db *MemoryDB) FindConversationByPair(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	pair := models.SortedPair(a, b)
	for _, c := range db.conversations {
		if c.Participants == pair {
			return cloneConversation(c), nil
		}
	}
	return nil, ErrConversationNotFound
}

func (db *MemoryDB) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	limit, offset = clampPage(limit, offset)

	db.mu.RLock()
	var matches []*models.Conversation
	for _, c := range db.conversations {
		if c.HasParticipant(userID) && !c.IsArchivedFor(userID) {
			matches = append(matches, cloneConversation(c))
		}
	}
	db.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastMessage.Timestamp.After(matches[j].LastMessage.Timestamp)
	})
	return page(matches, limit, offset), len(matches), nil
}

func (db *MemoryDB) UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, last models.LastMessage) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	c.LastMessage = last
	c.Archived = make(map[uuid.UUID]bool)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (db *MemoryDB) SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if c.Archived == nil {
		c.Archived = make(map[uuid.UUID]bool)
	}
	if archived {
		c.Archived[userID] = true
	} else {
		delete(c.Archived, userID)
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (db *MemoryDB) SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.conversations[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	if c.LastReadBy == nil {
		c.LastReadBy = make(map[uuid.UUID]time.Time)
	}
	c.LastReadBy[userID] = at
	return nil
}

func (db *MemoryDB) CreateMessage(ctx context.Context, m *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.conversations[m.ConversationID]; !ok {
		return ErrConversationNotFound
	}
	if m.ClientID != "" && db.findByClientID(m.SenderID, m.ClientID) != nil {
		return ErrMessageExists
	}
	db.messages[m.ID] = cloneMessage(m)
	return nil
}

func (db *MemoryDB) FindMessageByClientID(ctx context.Context, senderID uuid.UUID, clientID string) (*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m := db.findByClientID(senderID, clientID)
	if m == nil {
		return nil, ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

// findByClientID expects db.mu to be held.
func (db *MemoryDB) findByClientID(senderID uuid.UUID, clientID string) *models.Message {
	if clientID == "" {
		return nil
	}
	for _, m := range db.messages {
		if m.SenderID == senderID && m.ClientID == clientID {
			return m
		}
	}
	return nil
}

func (db *MemoryDB) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

func (db *MemoryDB) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*models.Message, int, error) {
	limit, offset = clampPage(limit, offset)

	db.mu.RLock()
	var matches []*models.Message
	for _, m := range db.messages {
		if m.ConversationID == conversationID && !m.Deleted {
			matches = append(matches, cloneMessage(m))
		}
	}
	db.mu.RUnlock()

	sortNewestFirst(matches)
	return page(matches, limit, offset), len(matches), nil
}

func (db *MemoryDB) AddReadReceipt(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.messages[messageID]
	if !ok {
		return false, ErrMessageNotFound
	}
	if m.IsReadBy(userID) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: at})
	return true, nil
}

func (db *MemoryDB) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	added := 0
	for _, m := range db.messages {
		if m.ConversationID != conversationID || m.Deleted || m.SenderID == readerID || m.IsReadBy(readerID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: readerID, ReadAt: at})
		added++
	}
	return added, nil
}

func (db *MemoryDB) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, m := range db.messages {
		if m.ConversationID == conversationID && !m.Deleted && m.SenderID != userID && !m.IsReadBy(userID) {
			n++
		}
	}
	return n, nil
}

func (db *MemoryDB) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	m.Deleted = true
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (db *MemoryDB) SearchMessages(ctx context.Context, userID uuid.UUID, query string, limit, offset int) ([]*models.Message, int, error) {
	limit, offset = clampPage(limit, offset)
	q := strings.ToLower(strings.TrimSpace(query))

	db.mu.RLock()
	var matches []*models.Message
	for _, m := range db.messages {
		if m.Deleted {
			continue
		}
		conv, ok := db.conversations[m.ConversationID]
		if !ok || !conv.HasParticipant(userID) {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), q) {
			matches = append(matches, cloneMessage(m))
		}
	}
	db.mu.RUnlock()

	sortNewestFirst(matches)
	return page(matches, limit, offset), len(matches), nil
}

func sortNewestFirst(msgs []*models.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() > msgs[j].ID.String()
	})
}

// page slices an already sorted result. limit 0 returns everything from offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneConnection(c *models.Connection) *models.Connection {
	cp := *c
	if c.RequestMessage != nil {
		msg := *c.RequestMessage
		cp.RequestMessage = &msg
	}
	if c.BlockedBy != nil {
		by := *c.BlockedBy
		cp.BlockedBy = &by
	}
	if c.RespondedAt != nil {
		at := *c.RespondedAt
		cp.RespondedAt = &at
	}
	return &cp
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	if c.LastMessage.SenderID != nil {
		sender := *c.LastMessage.SenderID
		cp.LastMessage.SenderID = &sender
	}
	cp.Archived = make(map[uuid.UUID]bool, len(c.Archived))
	for k, v := range c.Archived {
		cp.Archived[k] = v
	}
	cp.LastReadBy = make(map[uuid.UUID]time.Time, len(c.LastReadBy))
	for k, v := range c.LastReadBy {
		cp.LastReadBy[k] = v
	}
	return &cp
}

func cloneMessage(m *models.Message) *models.Message {
	cp := *m
	cp.ReadBy = append([]models.ReadReceipt(nil), m.ReadBy...)
	cp.Sender = nil
	return &cp
}
