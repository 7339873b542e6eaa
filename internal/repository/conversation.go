package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/snowflake"
)

// DBTX 连接池和事务共用的查询接口
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const conversationColumns = `id, party_a, party_b, party_a_unread, party_b_unread, last_activity_at, created_at`

// ConversationRepository PostgreSQL 会话仓库
type ConversationRepository struct {
	db      *pgxpool.Pool
	ids     *snowflake.Node
	timeout time.Duration
}

var _ ConversationStore = (*ConversationRepository)(nil)

// NewConversationRepository 创建会话仓库，timeout 为单次存储操作的上限
func NewConversationRepository(db *pgxpool.Pool, ids *snowflake.Node, timeout time.Duration) *ConversationRepository {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ConversationRepository{db: db, ids: ids, timeout: timeout}
}

// Find 按无序用户对查找会话
func (r *ConversationRepository) Find(ctx context.Context, x, y int64) (*model.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	low, high := model.PairKey(x, y)
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE pair_low = $1 AND pair_high = $2`

	conv, err := scanConversation(r.db.QueryRow(ctx, query, low, high))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chatErrors.ErrConversationNotFound
	}
	if err != nil {
		return nil, classify("find conversation", err)
	}
	return conv, nil
}

// Get 按 ID 获取会话和全部消息
func (r *ConversationRepository) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conv, err := r.getByID(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	if conv.Messages, err = r.listMessages(ctx, r.db, id); err != nil {
		return nil, err
	}
	return conv, nil
}

// Create 创建会话，用户对唯一约束冲突时返回 ErrConflict
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	if conv.PartyA == conv.PartyB {
		return chatErrors.ErrCannotChatSelf
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.prepare(conv)
	return classify("create conversation", r.insert(ctx, r.db, conv))
}

// FindOrCreate 原子查找或创建会话
//
// 依赖 (pair_low, pair_high) 唯一约束：并发首次联系时只有一个事务能插入成功，
// 其余事务 ON CONFLICT DO NOTHING 后读取已存在的会话。
func (r *ConversationRepository) FindOrCreate(ctx context.Context, conv *model.Conversation, first *model.Message) (*model.Conversation, bool, error) {
	if conv.PartyA == conv.PartyB {
		return nil, false, chatErrors.ErrCannotChatSelf
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, classify("begin find-or-create", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	r.prepare(conv)
	low, high := model.PairKey(conv.PartyA, conv.PartyB)

	var insertedID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (id, party_a, party_b, pair_low, pair_high, party_a_unread, party_b_unread, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pair_low, pair_high) DO NOTHING
		RETURNING id
	`, conv.ID, conv.PartyA, conv.PartyB, low, high,
		conv.PartyAUnread, conv.PartyBUnread, conv.LastActivityAt, conv.CreatedAt,
	).Scan(&insertedID)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanConversation(tx.QueryRow(ctx,
			`SELECT `+conversationColumns+` FROM conversations WHERE pair_low = $1 AND pair_high = $2`, low, high))
		if err != nil {
			return nil, false, classify("load existing conversation", err)
		}
		if existing.Messages, err = r.listMessages(ctx, tx, existing.ID); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, classify("insert conversation", err)
	}

	if first != nil {
		if !conv.HasParty(first.FromParty) || conv.Peer(first.FromParty) != first.ToParty {
			return nil, false, chatErrors.ErrForbidden
		}
		if first.SentAt.IsZero() {
			first.SentAt = conv.LastActivityAt
		}
		r.prepareMessage(conv, first)
		if err := r.insertMessage(ctx, tx, first); err != nil {
			return nil, false, err
		}
		conv.Messages = []model.Message{*first}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, classify("commit find-or-create", err)
	}
	return conv, true, nil
}

// AppendMessage 在行锁内追加消息并更新已读状态
func (r *ConversationRepository) AppendMessage(ctx context.Context, id int64, msg *model.Message, mutate func(conv *model.Conversation)) (*model.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, classify("begin append", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	conv, err := r.getByID(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if !conv.HasParty(msg.FromParty) || conv.Peer(msg.FromParty) != msg.ToParty {
		return nil, chatErrors.ErrForbidden
	}

	r.prepareMessage(conv, msg)
	if err := r.insertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}

	conv.LastActivityAt = msg.SentAt
	if mutate != nil {
		mutate(conv)
	}
	if err := r.saveState(ctx, tx, conv); err != nil {
		return nil, err
	}

	if conv.Messages, err = r.listMessages(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit append", err)
	}
	return conv, nil
}

// Update 在行锁内修改已读状态
func (r *ConversationRepository) Update(ctx context.Context, id int64, mutate Mutation) (*model.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, classify("begin update", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	conv, err := r.getByID(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	if mutate(conv) {
		if now := time.Now(); now.After(conv.LastActivityAt) {
			conv.LastActivityAt = now
		}
		if err := r.saveState(ctx, tx, conv); err != nil {
			return nil, err
		}
	}

	if conv.Messages, err = r.listMessages(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit update", err)
	}
	return conv, nil
}

// ListByParty 用户参与的会话列表
func (r *ConversationRepository) ListByParty(ctx context.Context, userID int64) ([]model.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE party_a = $1 OR party_b = $1
		ORDER BY last_activity_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, classify("list conversations", err)
	}
	defer rows.Close()

	conversations := make([]model.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, classify("scan conversation", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list conversations", err)
	}

	return conversations, nil
}

// Delete 删除会话，消息通过外键级联删除
func (r *ConversationRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return classify("delete conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return chatErrors.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) prepare(conv *model.Conversation) {
	now := time.Now()
	conv.ID = r.ids.Generate()
	conv.CreatedAt = now
	conv.LastActivityAt = now
	conv.Messages = nil
}

func (r *ConversationRepository) prepareMessage(conv *model.Conversation, msg *model.Message) {
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	// 同一会话内消息时间单调不减
	if sentAt.Before(conv.LastActivityAt) {
		sentAt = conv.LastActivityAt
	}

	msg.ID = r.ids.Generate()
	msg.ConversationID = conv.ID
	msg.SentAt = sentAt
}

func (r *ConversationRepository) insert(ctx context.Context, db DBTX, conv *model.Conversation) error {
	low, high := model.PairKey(conv.PartyA, conv.PartyB)
	_, err := db.Exec(ctx, `
		INSERT INTO conversations (id, party_a, party_b, pair_low, pair_high, party_a_unread, party_b_unread, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, conv.ID, conv.PartyA, conv.PartyB, low, high,
		conv.PartyAUnread, conv.PartyBUnread, conv.LastActivityAt, conv.CreatedAt)
	return err
}

func (r *ConversationRepository) insertMessage(ctx context.Context, db DBTX, msg *model.Message) error {
	_, err := db.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, from_party, to_party, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ConversationID, msg.FromParty, msg.ToParty, msg.Body, msg.SentAt)
	return classify("insert message", err)
}

func (r *ConversationRepository) saveState(ctx context.Context, db DBTX, conv *model.Conversation) error {
	_, err := db.Exec(ctx, `
		UPDATE conversations
		SET party_a_unread = $2, party_b_unread = $3, last_activity_at = $4
		WHERE id = $1
	`, conv.ID, conv.PartyAUnread, conv.PartyBUnread, conv.LastActivityAt)
	return classify("save read state", err)
}

func (r *ConversationRepository) getByID(ctx context.Context, db DBTX, id int64, forUpdate bool) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	conv, err := scanConversation(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chatErrors.ErrConversationNotFound
	}
	if err != nil {
		return nil, classify("get conversation", err)
	}
	return conv, nil
}

func (r *ConversationRepository) listMessages(ctx context.Context, db DBTX, conversationID int64) ([]model.Message, error) {
	rows, err := db.Query(ctx, `
		SELECT id, conversation_id, from_party, to_party, body, sent_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.FromParty,
			&msg.ToParty,
			&msg.Body,
			&msg.SentAt,
		); err != nil {
			return nil, classify("scan message", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list messages", err)
	}

	return messages, nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var conv model.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.PartyA,
		&conv.PartyB,
		&conv.PartyAUnread,
		&conv.PartyBUnread,
		&conv.LastActivityAt,
		&conv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
