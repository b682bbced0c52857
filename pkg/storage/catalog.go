// Package storage 提供目录模式 (CATALOG) 下文件体的只读访问。
// 文件体可以在本地文件系统上，也可以在 MinIO 存储桶中，由服务配置决定。
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist 表示目录中不存在该文件或文件不可读。
var ErrNotExist = errors.New("catalog: file does not exist")

// Object 是从目录中打开的文件。
type Object struct {
	Body io.ReadCloser
	Size int64 // 未知时为 -1
}

// Catalog 是目录存储的只读接口，网关从不写入或删除目录中的文件。
type Catalog interface {
	Open(ctx context.Context, path string) (*Object, error)
}
