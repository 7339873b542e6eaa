package repository

import (
	"context"

	"sudooom.date.chat/internal/model"
)

// Mutation 在存储锁内修改会话，返回是否有变化（无变化时不写回）
type Mutation func(conv *model.Conversation) bool

// ConversationStore 会话存储
//
// 用户对按无序 key 唯一；追加消息在存储层串行化，调用方不需要自己加锁。
type ConversationStore interface {
	// Find 按用户对查找，(x, y) 与 (y, x) 等价；不存在返回 ErrConversationNotFound
	Find(ctx context.Context, x, y int64) (*model.Conversation, error)
	// Get 按 ID 获取会话（包含消息）
	Get(ctx context.Context, id int64) (*model.Conversation, error)
	// Create 创建会话，用户对已存在返回 ErrConflict
	Create(ctx context.Context, conv *model.Conversation) error
	// FindOrCreate 原子查找或创建；创建时 first（可为 nil）在同一事务内写入
	FindOrCreate(ctx context.Context, conv *model.Conversation, first *model.Message) (*model.Conversation, bool, error)
	// AppendMessage 原子追加消息并在同一锁内应用 mutate
	AppendMessage(ctx context.Context, id int64, msg *model.Message, mutate func(conv *model.Conversation)) (*model.Conversation, error)
	// Update 读-改-写会话的已读状态
	Update(ctx context.Context, id int64, mutate Mutation) (*model.Conversation, error)
	// ListByParty 用户参与的全部会话，按最后活跃时间倒序，不包含消息
	ListByParty(ctx context.Context, userID int64) ([]model.Conversation, error)
	// Delete 删除会话及其全部消息
	Delete(ctx context.Context, id int64) error
}

// UserStore 用户及余额存储
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// DecrementBalance 余额大于 0 时减 1，返回剩余余额以及是否扣减成功
	DecrementBalance(ctx context.Context, id int64) (int64, bool, error)
	// CreditBalance 增加余额，返回新余额
	CreditBalance(ctx context.Context, id int64, amount int64) (int64, error)
}
