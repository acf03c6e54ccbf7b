package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type typingKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

type typingEntry struct {
	sessionID string
	timer     *time.Timer
}

// TypingTracker remembers who is typing where and calls onExpire when a
// typing:start is not refreshed within ttl.
type TypingTracker struct {
	ttl      time.Duration
	onExpire func(conversationID, userID uuid.UUID)

	mu     sync.Mutex
	active map[typingKey]*typingEntry
}

func NewTypingTracker(ttl time.Duration, onExpire func(conversationID, userID uuid.UUID)) *TypingTracker {
	return &TypingTracker{
		ttl:      ttl,
		onExpire: onExpire,
		active:   make(map[typingKey]*typingEntry),
	}
}

// Start records or refreshes a typing indicator. It reports whether the
// user was not already typing in the conversation.
func (t *TypingTracker) Start(sessionID string, conversationID, userID uuid.UUID) bool {
	key := typingKey{conversationID, userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.active[key]; ok {
		e.timer.Stop()
		delete(t.active, key)
		t.arm(key, sessionID)
		return false
	}
	t.arm(key, sessionID)
	return true
}

func (t *TypingTracker) arm(key typingKey, sessionID string) {
	e := &typingEntry{sessionID: sessionID}
	e.timer = time.AfterFunc(t.ttl, func() { t.expire(key, e) })
	t.active[key] = e
}

func (t *TypingTracker) expire(key typingKey, e *typingEntry) {
	t.mu.Lock()
	if t.active[key] != e {
		// Refreshed or stopped after the timer fired.
		t.mu.Unlock()
		return
	}
	delete(t.active, key)
	t.mu.Unlock()

	t.onExpire(key.conversationID, key.userID)
}

// Stop clears an indicator and reports whether one was active.
func (t *TypingTracker) Stop(conversationID, userID uuid.UUID) bool {
	key := typingKey{conversationID, userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.active[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.active, key)
	return true
}

// StopSession clears every indicator started by sessionID and returns
// the conversations that were affected.
func (t *TypingTracker) StopSession(sessionID string) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stopped []uuid.UUID
	for key, e := range t.active {
		if e.sessionID != sessionID {
			continue
		}
		e.timer.Stop()
		delete(t.active, key)
		stopped = append(stopped, key.conversationID)
	}
	return stopped
}

// IsTyping reports whether userID has a live indicator in the conversation.
func (t *TypingTracker) IsTyping(conversationID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[typingKey{conversationID, userID}]
	return ok
}
