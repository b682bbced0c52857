package database

import (
	"context"
	"sync"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/limiter"
	"crm-gateway-go/pkg/metrics"
)

// LimitedConnector 在打开会话前先从槽位池中获取一个槽位，会话关闭时归还。
type LimitedConnector struct {
	inner Connector
	pool  *limiter.Pool
}

// NewLimitedConnector 用槽位池包装一个 Connector。
func NewLimitedConnector(inner Connector, pool *limiter.Pool) *LimitedConnector {
	return &LimitedConnector{inner: inner, pool: pool}
}

func (c *LimitedConnector) Connect(ctx context.Context, opts Options) (Session, error) {
	release, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, apperror.Connection("db.acquire", err)
	}
	s, err := c.inner.Connect(ctx, opts)
	if err != nil {
		release()
		return nil, err
	}
	metrics.SessionsInFlight.Inc()
	return &limitedSession{Session: s, release: release}, nil
}

type limitedSession struct {
	Session
	release func()
	once    sync.Once
	err     error
}

// Close 只执行一次：关闭会话、减少计数、归还槽位。
func (s *limitedSession) Close() error {
	s.once.Do(func() {
		s.err = s.Session.Close()
		metrics.SessionsInFlight.Dec()
		s.release()
	})
	return s.err
}
