package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/snowflake"
)

type pairKey struct {
	low, high int64
}

func keyOf(x, y int64) pairKey {
	low, high := model.PairKey(x, y)
	return pairKey{low: low, high: high}
}

// MemoryConversationStore 内存会话存储（本地开发和测试使用）
type MemoryConversationStore struct {
	mu     sync.Mutex
	ids    *snowflake.Node
	byID   map[int64]*model.Conversation
	byPair map[pairKey]int64
	now    func() time.Time
}

var _ ConversationStore = (*MemoryConversationStore)(nil)

// NewMemoryConversationStore 创建内存会话存储
func NewMemoryConversationStore(ids *snowflake.Node) *MemoryConversationStore {
	return &MemoryConversationStore{
		ids:    ids,
		byID:   make(map[int64]*model.Conversation),
		byPair: make(map[pairKey]int64),
		now:    time.Now,
	}
}

// Find 按用户对查找会话
func (s *MemoryConversationStore) Find(ctx context.Context, x, y int64) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[keyOf(x, y)]
	if !ok {
		return nil, chatErrors.ErrConversationNotFound
	}
	return s.byID[id].Clone(), nil
}

// Get 按 ID 获取会话
func (s *MemoryConversationStore) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, chatErrors.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// Create 创建会话
func (s *MemoryConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}
	if conv.PartyA == conv.PartyB {
		return chatErrors.ErrCannotChatSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPair[keyOf(conv.PartyA, conv.PartyB)]; ok {
		return chatErrors.ErrConflict
	}
	s.insertLocked(conv)
	return nil
}

// FindOrCreate 原子查找或创建会话
func (s *MemoryConversationStore) FindOrCreate(ctx context.Context, conv *model.Conversation, first *model.Message) (*model.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, contextError(err)
	}
	if conv.PartyA == conv.PartyB {
		return nil, false, chatErrors.ErrCannotChatSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[keyOf(conv.PartyA, conv.PartyB)]; ok {
		return s.byID[id].Clone(), false, nil
	}

	s.insertLocked(conv)
	stored := s.byID[conv.ID]
	if first != nil {
		if err := s.appendLocked(stored, first); err != nil {
			return nil, false, err
		}
	}
	return stored.Clone(), true, nil
}

// AppendMessage 追加消息
func (s *MemoryConversationStore) AppendMessage(ctx context.Context, id int64, msg *model.Message, mutate func(conv *model.Conversation)) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, chatErrors.ErrConversationNotFound
	}
	if err := s.appendLocked(conv, msg); err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(conv)
	}
	return conv.Clone(), nil
}

// Update 修改会话已读状态
func (s *MemoryConversationStore) Update(ctx context.Context, id int64, mutate Mutation) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, chatErrors.ErrConversationNotFound
	}

	work := conv.Clone()
	if mutate(work) {
		conv.PartyAUnread = work.PartyAUnread
		conv.PartyBUnread = work.PartyBUnread
		conv.LastActivityAt = laterOf(s.now(), conv.LastActivityAt)
	}
	return conv.Clone(), nil
}

// ListByParty 用户的会话列表
func (s *MemoryConversationStore) ListByParty(ctx context.Context, userID int64) ([]model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.Conversation, 0)
	for _, conv := range s.byID {
		if !conv.HasParty(userID) {
			continue
		}
		header := *conv
		header.Messages = nil
		result = append(result, header)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LastActivityAt.Equal(result[j].LastActivityAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})
	return result, nil
}

// Delete 删除会话
func (s *MemoryConversationStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return chatErrors.ErrConversationNotFound
	}
	delete(s.byPair, keyOf(conv.PartyA, conv.PartyB))
	delete(s.byID, id)
	return nil
}

func (s *MemoryConversationStore) insertLocked(conv *model.Conversation) {
	now := s.now()
	conv.ID = s.ids.Generate()
	conv.CreatedAt = now
	conv.LastActivityAt = now
	conv.Messages = nil

	s.byID[conv.ID] = conv.Clone()
	s.byPair[keyOf(conv.PartyA, conv.PartyB)] = conv.ID
}

func (s *MemoryConversationStore) appendLocked(conv *model.Conversation, msg *model.Message) error {
	if !conv.HasParty(msg.FromParty) || conv.Peer(msg.FromParty) != msg.ToParty {
		return chatErrors.ErrForbidden
	}

	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	// 同一会话内消息时间单调不减
	sentAt = laterOf(sentAt, conv.LastActivityAt)

	msg.ID = s.ids.Generate()
	msg.ConversationID = conv.ID
	msg.SentAt = sentAt

	conv.Messages = append(conv.Messages, *msg)
	conv.LastActivityAt = sentAt
	return nil
}

// MemoryUserStore 内存用户存储
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

var _ UserStore = (*MemoryUserStore)(nil)

// NewMemoryUserStore 创建内存用户存储
func NewMemoryUserStore(users ...model.User) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[int64]*model.User)}
	for _, u := range users {
		s.Put(u)
	}
	return s
}

// Put 写入或覆盖用户
func (s *MemoryUserStore) Put(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.Balance < 0 {
		user.Balance = 0
	}
	s.users[user.ID] = &user
}

// FindByID 根据 ID 查找用户
func (s *MemoryUserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, chatErrors.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// DecrementBalance 扣减一条消息额度
func (s *MemoryUserStore) DecrementBalance(ctx context.Context, id int64) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, contextError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return 0, false, chatErrors.ErrUserNotFound
	}
	if user.Balance <= 0 {
		return 0, false, nil
	}
	user.Balance--
	return user.Balance, true, nil
}

// CreditBalance 增加消息额度
func (s *MemoryUserStore) CreditBalance(ctx context.Context, id int64, amount int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, contextError(err)
	}
	if amount <= 0 {
		return 0, chatErrors.ErrInvalidParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return 0, chatErrors.ErrUserNotFound
	}
	user.Balance += amount
	return user.Balance, nil
}

func laterOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}
