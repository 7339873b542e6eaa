package model

import "time"

// Conversation 私聊会话，一对用户（无序）最多一个会话
type Conversation struct {
	ID             int64     `json:"id"`
	PartyA         int64     `json:"partyA"` // 发起方
	PartyB         int64     `json:"partyB"`
	PartyAUnread   bool      `json:"partyAUnread"`
	PartyBUnread   bool      `json:"partyBUnread"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
	Messages       []Message `json:"messages,omitempty"`
}

// HasParty 判断用户是否为会话参与方
func (c *Conversation) HasParty(userID int64) bool {
	return userID != 0 && (c.PartyA == userID || c.PartyB == userID)
}

// Peer 返回会话中的另一方，非参与方返回 0
func (c *Conversation) Peer(userID int64) int64 {
	switch userID {
	case c.PartyA:
		return c.PartyB
	case c.PartyB:
		return c.PartyA
	}
	return 0
}

// Unread 返回指定参与方的未读标记
func (c *Conversation) Unread(userID int64) bool {
	switch userID {
	case c.PartyA:
		return c.PartyAUnread
	case c.PartyB:
		return c.PartyBUnread
	}
	return false
}

// SetUnread 设置指定参与方的未读标记
func (c *Conversation) SetUnread(userID int64, unread bool) {
	switch userID {
	case c.PartyA:
		c.PartyAUnread = unread
	case c.PartyB:
		c.PartyBUnread = unread
	}
}

// LastMessage 最后一条消息，没有消息时返回 nil
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Clone 深拷贝，避免调用方修改存储内的数据
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.Messages != nil {
		cp.Messages = make([]Message, len(c.Messages))
		copy(cp.Messages, c.Messages)
	}
	return &cp
}

// PairKey 无序用户对的规范化 key（小 ID 在前）
func PairKey(x, y int64) (low, high int64) {
	if x < y {
		return x, y
	}
	return y, x
}
