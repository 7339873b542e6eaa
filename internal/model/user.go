package model

import "time"

// DefaultBalance 新用户赠送的消息额度
const DefaultBalance = 3

// User 用户实体（只包含聊天引擎关心的字段）
type User struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"nickname"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}
