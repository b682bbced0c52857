package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"crm-gateway-go/pkg/blob"
	"crm-gateway-go/pkg/database"
)

// fakeDB 模拟一个客户库：PARAM 行、FILES 行，并统计会话的打开与关闭次数。
type fakeDB struct {
	params   []database.Row
	files    map[string]database.Row
	rows     []database.Row
	lastOpts database.Options

	connectErr error
	paramErr   error
	fileErr    error
	blobErr    error

	opened      atomic.Int32
	closed      atomic.Int32
	doubleClose atomic.Int32
}

func (d *fakeDB) Connect(_ context.Context, opts database.Options) (database.Session, error) {
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.lastOpts = opts
	d.opened.Add(1)
	return &fakeSession{db: d}, nil
}

func (d *fakeDB) balanced() bool {
	return d.opened.Load() == d.closed.Load() && d.doubleClose.Load() == 0
}

type fakeSession struct {
	db     *fakeDB
	closed bool
}

func (s *fakeSession) Query(_ context.Context, query string, args ...any) ([]database.Row, error) {
	switch {
	case strings.Contains(query, "FROM PARAM"):
		if s.db.paramErr != nil {
			return nil, s.db.paramErr
		}
		return s.db.params, nil
	case strings.Contains(query, "FROM FILES"):
		if s.db.fileErr != nil {
			return nil, s.db.fileErr
		}
		row, ok := s.db.files[fmt.Sprint(args[0])]
		if !ok {
			return []database.Row{}, nil
		}
		return []database.Row{row}, nil
	default:
		return s.db.rows, nil
	}
}

func (s *fakeSession) FetchBlob(ctx context.Context, value any) (io.ReadCloser, int64, error) {
	if s.db.blobErr != nil {
		return nil, 0, s.db.blobErr
	}
	src, err := blob.FromValue(value)
	if err != nil {
		return nil, 0, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rc, src.Size(), nil
}

func (s *fakeSession) Close() error {
	if s.closed {
		s.db.doubleClose.Add(1)
		return nil
	}
	s.closed = true
	s.db.closed.Add(1)
	return nil
}

func storageParams(location, root string) []database.Row {
	return []database.Row{
		{"param_key": "STORAGE_LOCATION", "param_value": location},
		{"param_key": "STORAGE_CATALOG_ROOT", "param_value": root},
	}
}
