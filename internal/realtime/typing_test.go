package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu      sync.Mutex
	expired []typingKey
}

func (r *expiryRecorder) record(conversationID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, typingKey{conversationID, userID})
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

func TestTypingExpiresWithoutRefresh(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(50*time.Millisecond, rec.record)
	conv, user := uuid.New(), uuid.New()

	assert.True(t, tracker.Start("s1", conv, user))
	assert.True(t, tracker.IsTyping(conv, user))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.False(t, tracker.IsTyping(conv, user))
	assert.Equal(t, typingKey{conv, user}, rec.expired[0])
}

func TestTypingRefreshExtends(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(80*time.Millisecond, rec.record)
	conv, user := uuid.New(), uuid.New()

	assert.True(t, tracker.Start("s1", conv, user))
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		assert.False(t, tracker.Start("s1", conv, user), "refresh is not a new start")
	}
	assert.Zero(t, rec.count())

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestTypingStopCancelsExpiry(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := NewTypingTracker(30*time.Millisecond, rec.record)
	conv, user := uuid.New(), uuid.New()

	tracker.Start("s1", conv, user)
	assert.True(t, tracker.Stop(conv, user))
	assert.False(t, tracker.Stop(conv, user))

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestTypingStopSession(t *testing.T) {
	tracker := NewTypingTracker(time.Minute, func(uuid.UUID, uuid.UUID) {})
	user := uuid.New()
	c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()

	tracker.Start("laptop", c1, user)
	tracker.Start("laptop", c2, user)
	tracker.Start("phone", c3, user)

	assert.ElementsMatch(t, []uuid.UUID{c1, c2}, tracker.StopSession("laptop"))
	assert.True(t, tracker.IsTyping(c3, user))
	assert.False(t, tracker.IsTyping(c1, user))
}
