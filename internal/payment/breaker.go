package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig 熔断配置
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerProvider 为支付服务加熔断，服务不可用时快速失败
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker[*Charge]
}

var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider 创建带熔断的支付服务
func NewBreakerProvider(next Provider, cfg BreakerConfig) *BreakerProvider {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	logger := slog.Default()

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// 被拒付不算服务故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrChargeDeclined)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*Charge](settings),
	}
}

// Charge 经过熔断器发起扣款
func (p *BreakerProvider) Charge(ctx context.Context, amount int64, customerToken string) (*Charge, error) {
	return p.breaker.Execute(func() (*Charge, error) {
		return p.next.Charge(ctx, amount, customerToken)
	})
}

// State 熔断器状态（用于监控）
func (p *BreakerProvider) State() string {
	return p.breaker.State().String()
}
