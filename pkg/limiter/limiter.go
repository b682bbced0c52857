// Package limiter 提供一个有上限的并发槽位池。
package limiter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool 限制同时持有槽位的调用方数量。size <= 0 时不做限制。
type Pool struct {
	name string
	sem  *semaphore.Weighted
}

// New 创建一个槽位池。
func New(name string, size int64) *Pool {
	p := &Pool{name: name}
	if size > 0 {
		p.sem = semaphore.NewWeighted(size)
	}
	return p
}

// Name 返回池名称，用于日志和指标。
func (p *Pool) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Acquire 阻塞直到拿到槽位或 ctx 结束。返回的 release 可以被安全地多次调用。
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	if p == nil || p.sem == nil {
		return func() {}, nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { p.sem.Release(1) })
	}, nil
}
