package nats

import "strconv"

// NATS Subject 常量定义
const (
	// SubjectChatUpstream Access -> Chat 上行事件
	SubjectChatUpstream = "chat.logic.upstream"

	// SubjectUserDownstreamPrefix Chat -> Access 下行事件前缀
	// 完整格式: chat.user.{user_id}.downstream
	SubjectUserDownstreamPrefix = "chat.user."
	SubjectUserDownstreamSuffix = ".downstream"

	// QueueGroupChat Chat 服务队列组名称
	QueueGroupChat = "chat-group"
)

// BuildUserDownstreamSubject 构建用户下行 Subject
func BuildUserDownstreamSubject(userID int64) string {
	return SubjectUserDownstreamPrefix + strconv.FormatInt(userID, 10) + SubjectUserDownstreamSuffix
}
