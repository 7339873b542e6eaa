package proto

// ============== 上行事件 (Access -> Chat) ==============

// UpstreamMessage 上行事件封装
type UpstreamMessage struct {
	AccessNodeId     string            `json:"AccessNodeId"`
	UserOnline       *UserOnline       `json:"UserOnline,omitempty"`
	UserOffline      *UserOffline      `json:"UserOffline,omitempty"`
	ConversationRead *ConversationRead `json:"ConversationRead,omitempty"`
}

// UserOnline 用户上线事件
type UserOnline struct {
	UserId   int64  `json:"UserId"`
	ConnId   int64  `json:"ConnId"`
	Platform string `json:"Platform"`
}

// UserOffline 用户下线事件
type UserOffline struct {
	UserId int64 `json:"UserId"`
	ConnId int64 `json:"ConnId"`
}

// ConversationRead 用户在实时连接上查看了会话
type ConversationRead struct {
	UserId         int64 `json:"UserId"`
	ConversationId int64 `json:"ConversationId"`
}

// ============== 下行事件 (Chat -> Access) ==============

// 会话变更原因
const (
	UpdateReasonCreated = "created"
	UpdateReasonMessage = "message"
	UpdateReasonRead    = "read"
	UpdateReasonDeleted = "deleted"
)

// DownstreamMessage 下行事件封装
type DownstreamMessage struct {
	ToUserId           int64               `json:"ToUserId"`
	ConversationUpdate *ConversationUpdate `json:"ConversationUpdate,omitempty"`
}

// ConversationUpdate 会话状态变更，推送给会话双方
type ConversationUpdate struct {
	ConversationId int64        `json:"ConversationId"`
	Reason         string       `json:"Reason"`
	PeerId         int64        `json:"PeerId"`
	Unread         bool         `json:"Unread"`
	PeerUnread     bool         `json:"PeerUnread"`
	LastMessage    *MessageView `json:"LastMessage,omitempty"`
	LastActivityAt int64        `json:"LastActivityAt"`
}

// MessageView 推送中携带的最新消息
type MessageView struct {
	MessageId  int64  `json:"MessageId"`
	FromUserId int64  `json:"FromUserId"`
	ToUserId   int64  `json:"ToUserId"`
	Body       string `json:"Body"`
	SentAt     int64  `json:"SentAt"`
}
