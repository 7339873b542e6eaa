package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Probe 单个依赖的探活函数
type Probe func(ctx context.Context) error

// NATSProbe NATS 连接探活
func NATSProbe(nc *nats.Conn) Probe {
	return func(ctx context.Context) error {
		if nc == nil || !nc.IsConnected() {
			return errors.New("nats: not connected")
		}
		return nil
	}
}

// RedisProbe Redis 探活
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// PostgresProbe PostgreSQL 探活
func PostgresProbe(db *pgxpool.Pool) Probe {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}

// Checker 健康检查器；内存存储模式下不注册数据库探活
type Checker struct {
	probes  map[string]Probe
	timeout time.Duration
}

// NewChecker 创建健康检查器
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		probes:  make(map[string]Probe),
		timeout: timeout,
	}
}

// Register 注册依赖探活，需在开始服务前调用
func (h *Checker) Register(name string, probe Probe) *Checker {
	h.probes[name] = probe
	return h
}

// Check 并发执行全部探活
func (h *Checker) Check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var mu sync.Mutex
	var wg sync.WaitGroup
	status := make(map[string]string, len(h.probes))

	for name, probe := range h.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			result := StatusConnected
			if err := probe(ctx); err != nil {
				result = StatusDisconnected
			}
			mu.Lock()
			status[name] = result
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	return status
}

// IsHealthy 全部依赖可用
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return healthy(h.Check(ctx))
}

// Names 已注册的依赖名称
func (h *Checker) Names() []string {
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func healthy(status map[string]string) bool {
	for _, s := range status {
		if s != StatusConnected {
			return false
		}
	}
	return true
}

// ServeHTTP HTTP 健康检查端点
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if healthy(status) {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// ReadyHandler 就绪探针
func (h *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))
	}
}

// NewServeMux 健康检查路由：/health 与 /ready
func (h *Checker) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", h)
	mux.HandleFunc("/ready", h.ReadyHandler())
	return mux
}
