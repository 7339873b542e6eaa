package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/snowflake"
)

func newTestStore(t *testing.T) *MemoryConversationStore {
	t.Helper()
	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewMemoryConversationStore(ids)
}

func TestMemoryStore_FindIsOrderIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &model.Conversation{PartyA: 1, PartyB: 2}
	require.NoError(t, store.Create(ctx, conv))
	require.NotZero(t, conv.ID)

	got, err := store.Find(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	got, err = store.Find(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = store.Find(ctx, 1, 3)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrConversationNotFound))
}

func TestMemoryStore_CreateConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.Conversation{PartyA: 1, PartyB: 2}))
	err := store.Create(ctx, &model.Conversation{PartyA: 2, PartyB: 1})
	assert.True(t, chatErrors.Is(err, chatErrors.ErrConflict))

	err = store.Create(ctx, &model.Conversation{PartyA: 5, PartyB: 5})
	assert.True(t, chatErrors.Is(err, chatErrors.ErrCannotChatSelf))
}

func TestMemoryStore_FindOrCreateConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	ids := make(map[int64]struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := int64(1), int64(2)
			if i%2 == 0 {
				a, b = b, a
			}
			conv, ok, err := store.FindOrCreate(ctx, &model.Conversation{PartyA: a, PartyB: b},
				&model.Message{FromParty: a, ToParty: b, Body: "first"})
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[conv.ID] = struct{}{}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	conv, err := store.Find(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1)
}

func TestMemoryStore_AppendMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &model.Conversation{PartyA: 1, PartyB: 2}
	require.NoError(t, store.Create(ctx, conv))

	_, err := store.AppendMessage(ctx, 999, &model.Message{FromParty: 1, ToParty: 2, Body: "x"}, nil)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrConversationNotFound))

	_, err = store.AppendMessage(ctx, conv.ID, &model.Message{FromParty: 3, ToParty: 2, Body: "x"}, nil)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrForbidden))

	mutated := false
	got, err := store.AppendMessage(ctx, conv.ID, &model.Message{FromParty: 1, ToParty: 2, Body: "hi"},
		func(c *model.Conversation) { mutated = true })
	require.NoError(t, err)
	assert.True(t, mutated)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Body)
	assert.Equal(t, conv.ID, got.Messages[0].ConversationID)
	assert.Equal(t, got.Messages[0].SentAt, got.LastActivityAt)
}

func TestMemoryStore_SentAtIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &model.Conversation{PartyA: 1, PartyB: 2}
	require.NoError(t, store.Create(ctx, conv))

	future := time.Now().Add(time.Hour)
	_, err := store.AppendMessage(ctx, conv.ID, &model.Message{FromParty: 1, ToParty: 2, Body: "a", SentAt: future}, nil)
	require.NoError(t, err)

	got, err := store.AppendMessage(ctx, conv.ID, &model.Message{FromParty: 2, ToParty: 1, Body: "b"}, nil)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.False(t, got.Messages[1].SentAt.Before(got.Messages[0].SentAt))
}

func TestMemoryStore_ConcurrentOppositeAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &model.Conversation{PartyA: 1, PartyB: 2}
	require.NoError(t, store.Create(ctx, conv))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.AppendMessage(ctx, conv.ID, &model.Message{FromParty: 1, ToParty: 2, Body: "a"}, nil)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := store.AppendMessage(ctx, conv.ID, &model.Message{FromParty: 2, ToParty: 1, Body: "b"}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 100)
}

func TestMemoryStore_UpdateSkipsUnchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &model.Conversation{PartyA: 1, PartyB: 2, PartyBUnread: true}
	require.NoError(t, store.Create(ctx, conv))
	before, _ := store.Get(ctx, conv.ID)

	got, err := store.Update(ctx, conv.ID, func(c *model.Conversation) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, before.LastActivityAt, got.LastActivityAt)
	assert.True(t, got.PartyBUnread)

	got, err = store.Update(ctx, conv.ID, func(c *model.Conversation) bool {
		c.PartyBUnread = false
		return true
	})
	require.NoError(t, err)
	assert.False(t, got.PartyBUnread)
}

func TestMemoryStore_ListByPartyOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	c1 := &model.Conversation{PartyA: 1, PartyB: 2}
	c2 := &model.Conversation{PartyA: 3, PartyB: 1}
	c3 := &model.Conversation{PartyA: 4, PartyB: 5}
	require.NoError(t, store.Create(ctx, c1))
	require.NoError(t, store.Create(ctx, c2))
	require.NoError(t, store.Create(ctx, c3))

	// c1 最近有新消息，应排在最前
	_, err := store.AppendMessage(ctx, c1.ID, &model.Message{FromParty: 2, ToParty: 1, Body: "new"}, nil)
	require.NoError(t, err)

	list, err := store.ListByParty(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c1.ID, list[0].ID)
	assert.Equal(t, c2.ID, list[1].ID)
	assert.Nil(t, list[0].Messages)
}

func TestMemoryStore_DeleteTwice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &model.Conversation{PartyA: 1, PartyB: 2}
	require.NoError(t, store.Create(ctx, conv))

	require.NoError(t, store.Delete(ctx, conv.ID))
	err := store.Delete(ctx, conv.ID)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrConversationNotFound))

	// 删除后可以重新创建
	require.NoError(t, store.Create(ctx, &model.Conversation{PartyA: 2, PartyB: 1}))
}

func TestMemoryStore_ExpiredContextIsTransient(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := store.Find(ctx, 1, 2)
	assert.True(t, chatErrors.IsRetryable(err))
}

func TestMemoryUserStore_Balance(t *testing.T) {
	users := NewMemoryUserStore(model.User{ID: 1, Balance: 1})
	ctx := context.Background()

	balance, ok, err := users.DecrementBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), balance)

	balance, ok, err = users.DecrementBalance(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), balance)

	_, _, err = users.DecrementBalance(ctx, 2)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrUserNotFound))

	balance, err = users.CreditBalance(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	_, err = users.CreditBalance(ctx, 1, 0)
	assert.True(t, chatErrors.Is(err, chatErrors.ErrInvalidParams))
}
