// Package readstate 维护会话两端的未读标记。
//
// 每一方只有一个布尔值：是否有来自对方、尚未查看的新动态。
// 这是"最后一条消息未读"指示，不是逐条已读回执。
package readstate

import "sudooom.date.chat/internal/model"

// Initial 新建会话：发起方已读，接收方未读
func Initial(conv *model.Conversation, initiator int64) {
	conv.PartyAUnread = true
	conv.PartyBUnread = true
	conv.SetUnread(initiator, false)
}

// OnAppend 发送方追加消息：发送方置为已读，另一方置为未读，覆盖之前的状态
func OnAppend(conv *model.Conversation, sender int64) {
	conv.SetUnread(sender, false)
	conv.SetUnread(conv.Peer(sender), true)
}

// OnView 查看会话：只清除查看者自己的标记，返回状态是否发生变化
func OnView(conv *model.Conversation, viewer int64) bool {
	if !conv.Unread(viewer) {
		return false
	}
	conv.SetUnread(viewer, false)
	return true
}

// Idle 两端都已读
func Idle(conv *model.Conversation) bool {
	return !conv.PartyAUnread && !conv.PartyBUnread
}
