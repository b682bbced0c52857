package database

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/limiter"
)

type countingSession struct {
	closes *atomic.Int32
}

func (s *countingSession) Query(context.Context, string, ...any) ([]Row, error) { return nil, nil }

func (s *countingSession) FetchBlob(context.Context, any) (io.ReadCloser, int64, error) {
	return nil, 0, nil
}

func (s *countingSession) Close() error {
	s.closes.Add(1)
	return nil
}

type countingConnector struct {
	closes atomic.Int32
	err    error
}

func (c *countingConnector) Connect(context.Context, Options) (Session, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &countingSession{closes: &c.closes}, nil
}

func TestLimitedConnector_ReleasesSlotOnClose(t *testing.T) {
	inner := &countingConnector{}
	c := NewLimitedConnector(inner, limiter.New("sessions", 1))

	s1, err := c.Connect(context.Background(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Connect(ctx, Options{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConnection))

	require.NoError(t, s1.Close())
	require.NoError(t, s1.Close())
	assert.Equal(t, int32(1), inner.closes.Load())

	s2, err := c.Connect(context.Background(), Options{})
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestLimitedConnector_ReleasesSlotOnConnectError(t *testing.T) {
	inner := &countingConnector{err: apperror.Connection("db.connect", assert.AnError)}
	c := NewLimitedConnector(inner, limiter.New("sessions", 1))

	for i := 0; i < 3; i++ {
		_, err := c.Connect(context.Background(), Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
	}
}

func TestLimitedConnector_ConcurrentCloseReleasesOnce(t *testing.T) {
	inner := &countingConnector{}
	pool := limiter.New("sessions", 2)
	c := NewLimitedConnector(inner, pool)

	s1, err := c.Connect(context.Background(), Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s1.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.closes.Load())

	// 池中只归还了一个槽位：两个会话占满后第三个必须等待
	s2, err := c.Connect(context.Background(), Options{})
	require.NoError(t, err)
	s3, err := c.Connect(context.Background(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Connect(ctx, Options{})
	assert.Error(t, err)

	require.NoError(t, s2.Close())
	require.NoError(t, s3.Close())
}
