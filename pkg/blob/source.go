// Package blob 把驱动返回的二进制对象统一成一个字节流。
//
// 驱动可能把 BLOB 一次性读进内存（[]byte / string），也可能以分块流的形式返回（io.Reader）。
// 调用方只面对 Source，不关心具体表现形式。
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupported 表示列值不是可识别的二进制表现形式。
var ErrUnsupported = errors.New("blob: unsupported value type")

// Source 是一个二进制对象来源。
type Source interface {
	// Open 打开一个新的字节流，调用方负责 Close。
	Open(ctx context.Context) (io.ReadCloser, error)
	// Size 返回字节数，未知时为 -1。
	Size() int64
}

// Bytes 是已经物化在内存中的二进制对象。
type Bytes []byte

func (b Bytes) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (b Bytes) Size() int64 { return int64(len(b)) }

// Stream 是按需读取的分块流，只能被打开一次。
type Stream struct {
	r      io.Reader
	size   int64
	opened bool
}

// NewStream 包装一个分块流，size 未知时传 -1。
func NewStream(r io.Reader, size int64) *Stream {
	return &Stream{r: r, size: size}
}

func (s *Stream) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.opened {
		return nil, errors.New("blob: stream already consumed")
	}
	s.opened = true
	rc, ok := s.r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(s.r)
	}
	return &ctxReader{ctx: ctx, rc: rc}, nil
}

func (s *Stream) Size() int64 { return s.size }

// FromValue 根据驱动返回的列值构造 Source。nil 视为空对象。
func FromValue(v any) (Source, error) {
	switch val := v.(type) {
	case nil:
		return Bytes(nil), nil
	case Source:
		return val, nil
	case []byte:
		return Bytes(val), nil
	case string:
		return Bytes(val), nil
	case *strings.Reader:
		return NewStream(val, val.Size()), nil
	case *bytes.Reader:
		return NewStream(val, val.Size()), nil
	case io.Reader:
		return NewStream(val, -1), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// ctxReader 在每次 Read 前检查上下文，客户端断开后停止读取分块流。
type ctxReader struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.rc.Read(p)
}

func (r *ctxReader) Close() error {
	return r.rc.Close()
}
