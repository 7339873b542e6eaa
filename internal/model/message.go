package model

import "time"

// Message 会话内的消息，追加后不可修改
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	FromParty      int64     `json:"fromParty"`
	ToParty        int64     `json:"toParty"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
}
