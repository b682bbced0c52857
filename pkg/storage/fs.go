package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// FSCatalog 从文件系统读取目录文件，路径原样使用。
type FSCatalog struct {
	fs afero.Fs
}

// NewFSCatalog 创建基于本地文件系统的目录。
func NewFSCatalog() *FSCatalog {
	return &FSCatalog{fs: afero.NewReadOnlyFs(afero.NewOsFs())}
}

// NewFSCatalogWith 使用指定的 afero 文件系统，测试中传入内存文件系统。
func NewFSCatalogWith(fsys afero.Fs) *FSCatalog {
	return &FSCatalog{fs: fsys}
}

func (c *FSCatalog) Open(_ context.Context, path string) (*Object, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotExist, path)
	}

	return &Object{Body: f, Size: info.Size()}, nil
}

var _ Catalog = (*FSCatalog)(nil)
