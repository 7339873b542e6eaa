package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/proto"
	"sudooom.date.chat/internal/repository"
	"sudooom.date.chat/internal/snowflake"
)

const systemID = int64(1)

var testRetrier = Retrier{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

type recordingPublisher struct {
	mu      sync.Mutex
	updates map[int64][]*proto.ConversationUpdate
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{updates: make(map[int64][]*proto.ConversationUpdate)}
}

func (p *recordingPublisher) PublishConversationUpdate(ctx context.Context, userID int64, update *proto.ConversationUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates[userID] = append(p.updates[userID], update)
	return nil
}

func (p *recordingPublisher) reasons(userID int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []string
	for _, u := range p.updates[userID] {
		result = append(result, u.Reason)
	}
	return result
}

type fakeOnline struct {
	mu     sync.Mutex
	online map[int64]bool
}

func newFakeOnline() *fakeOnline {
	return &fakeOnline{online: make(map[int64]bool)}
}

func (f *fakeOnline) MarkOnline(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = true
	return nil
}

func (f *fakeOnline) MarkOffline(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.online, userID)
	return nil
}

func (f *fakeOnline) OnlineStatus(ctx context.Context, userIDs ...int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		result[id] = f.online[id]
	}
	return result, nil
}

// flakyConversationStore 前 failures 次 Get 返回瞬时错误
type flakyConversationStore struct {
	*repository.MemoryConversationStore
	mu       sync.Mutex
	failures int
	gets     int
}

func (s *flakyConversationStore) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	s.mu.Lock()
	s.gets++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return nil, chatErrors.ErrTransientStore
	}
	return s.MemoryConversationStore.Get(ctx, id)
}

// brokenChargeUserStore 扣费总是失败
type brokenChargeUserStore struct {
	*repository.MemoryUserStore
}

func (s *brokenChargeUserStore) DecrementBalance(ctx context.Context, id int64) (int64, bool, error) {
	return 0, false, chatErrors.ErrTransientStore
}

type testEnv struct {
	convs     *repository.MemoryConversationStore
	users     *repository.MemoryUserStore
	online    *fakeOnline
	publisher *recordingPublisher
	presence  *PresenceNotifier
	svc       *ConversationService
}

func newTestEnv(t *testing.T, users ...model.User) *testEnv {
	t.Helper()

	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)

	env := &testEnv{
		convs:     repository.NewMemoryConversationStore(ids),
		users:     repository.NewMemoryUserStore(users...),
		online:    newFakeOnline(),
		publisher: newRecordingPublisher(),
	}
	env.presence = NewPresenceNotifier(env.convs, env.users, env.online, testRetrier, PresenceConfig{
		SystemAccountID: systemID,
		WelcomeMessage:  "welcome",
		Timeout:         time.Second,
	})
	env.svc = NewConversationService(env.convs, env.users, NewBalanceMeter(env.users), env.presence, env.publisher, testRetrier)
	return env
}

func defaultUsers() []model.User {
	return []model.User{
		{ID: systemID, Nickname: "system", Balance: 0},
		{ID: 10, Nickname: "u", Balance: model.DefaultBalance},
		{ID: 20, Nickname: "v", Balance: model.DefaultBalance},
		{ID: 30, Nickname: "w", Balance: model.DefaultBalance},
	}
}
