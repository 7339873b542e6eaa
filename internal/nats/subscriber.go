package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.date.chat/internal/proto"
	"sudooom.date.chat/internal/workerpool"
)

// EventHandler 上行事件处理器
type EventHandler interface {
	HandleUserOnline(ctx context.Context, event *proto.UserOnline, accessNodeId string)
	HandleUserOffline(ctx context.Context, event *proto.UserOffline, accessNodeId string)
	HandleConversationRead(ctx context.Context, event *proto.ConversationRead)
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量
	BufferSize  int // 事件缓冲区大小
}

// EventSubscriber 上行事件订阅器，每个事件作为独立任务交给 Worker Pool
type EventSubscriber struct {
	nc           *nats.Conn
	handler      EventHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	pool         *workerpool.Pool
}

// NewEventSubscriber 创建事件订阅器
func NewEventSubscriber(nc *nats.Conn, handler EventHandler, config SubscriberConfig) *EventSubscriber {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 32
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}

	return &EventSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start 启动订阅
func (s *EventSubscriber) Start() error {
	s.pool = workerpool.New(s.config.WorkerCount, s.config.BufferSize)

	// 使用队列组在多个实例间负载均衡
	sub, err := s.nc.QueueSubscribe(SubjectChatUpstream, QueueGroupChat, func(msg *nats.Msg) {
		data := msg.Data
		if !s.pool.TrySubmit(func(ctx context.Context) {
			s.dispatch(ctx, data)
		}) {
			s.logger.Warn("Event buffer full, dropping event", "bufferSize", s.config.BufferSize)
		}
	})
	if err != nil {
		s.pool.Shutdown(context.Background())
		return err
	}

	s.subscription = sub
	s.logger.Info("NATS subscriber started",
		"subject", SubjectChatUpstream,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

// dispatch 解析并分发上行事件
func (s *EventSubscriber) dispatch(ctx context.Context, data []byte) {
	var message proto.UpstreamMessage
	if err := json.Unmarshal(data, &message); err != nil {
		s.logger.Error("Failed to unmarshal upstream event", "error", err)
		return
	}

	switch {
	case message.UserOnline != nil:
		s.handler.HandleUserOnline(ctx, message.UserOnline, message.AccessNodeId)
	case message.UserOffline != nil:
		s.handler.HandleUserOffline(ctx, message.UserOffline, message.AccessNodeId)
	case message.ConversationRead != nil:
		s.handler.HandleConversationRead(ctx, message.ConversationRead)
	default:
		s.logger.Debug("Ignoring upstream event without payload", "accessNodeId", message.AccessNodeId)
	}
}

// Stop 停止订阅，等待已接收的事件处理完
func (s *EventSubscriber) Stop(ctx context.Context) error {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Shutdown(ctx)
	}

	s.logger.Info("NATS subscriber stopped")
	return nil
}

// BufferUsage 缓冲区使用情况（用于监控）
func (s *EventSubscriber) BufferUsage() (current int, capacity int) {
	if s.pool == nil {
		return 0, 0
	}
	return s.pool.Pending()
}
