// Package database 管理网关使用的全部数据库连接：
// 按请求打开的客户 Firebird 会话、访问日志用的 MySQL 和限流用的 Redis。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/nakagami/firebirdsql"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/blob"
)

// FirebirdDriver 是 nakagami/firebirdsql 注册的驱动名。
const FirebirdDriver = "firebirdsql"

// Options 是一次性客户库连接的全部参数：调用方提交的 host/port/path 加上服务端固定的账号和默认值。
type Options struct {
	Host     string
	Port     int
	Path     string
	User     string
	Password string
	Role     string
	Charset  string
	PageSize int

	// LowercaseKeys 为 true 时结果集的列名转换为小写
	LowercaseKeys bool
	// BlobAsText 为 true 时 []byte 列值以字符串返回
	BlobAsText bool

	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// DSN 生成 firebirdsql 驱动使用的连接串：user:password@host:port/path?params
func (o Options) DSN() string {
	q := url.Values{}
	if o.Role != "" {
		q.Set("role", o.Role)
	}
	if o.Charset != "" {
		q.Set("charset", o.Charset)
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	dsn := fmt.Sprintf("%s@%s:%d%s", url.UserPassword(o.User, o.Password).String(), o.Host, o.Port, dsnPath(o.Path))
	if len(q) > 0 {
		dsn += "?" + q.Encode()
	}
	return dsn
}

// dsnPath 拼接 host:port 之后的库路径。
// 驱动会去掉第一个 /，但路径中还有其他 / 时保留原样，所以多级绝对路径只用一个 /，
// 相对路径和 Windows 盘符路径前面补一个 /。单级根路径（/crm.fdb）只能以 //crm.fdb 送达。
func dsnPath(path string) string {
	if strings.HasPrefix(path, "/") && strings.Contains(path[1:], "/") {
		return path
	}
	return "/" + path
}

// Locator 返回 Firebird 风格的数据库定位串 host/port:path，外部文档生成程序使用它连接客户库。
func (o Options) Locator() string {
	if o.Host == "" || o.Path == "" {
		return ""
	}
	if o.Port > 0 {
		return fmt.Sprintf("%s/%d:%s", o.Host, o.Port, o.Path)
	}
	return fmt.Sprintf("%s:%s", o.Host, o.Path)
}

// Row 是结果集中的一行，键为列名。
type Row map[string]any

// Get 按列名不区分大小写地取值。
func (r Row) Get(name string) (any, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// String 把列值转换为去掉首尾空白的字符串，CHAR 列的填充空格会被去掉。
func (r Row) String(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Session 是一次性的数据库会话：连接、查询、读取 BLOB、关闭。
// 调用方必须保证在所有退出路径上调用 Close。
type Session interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	// FetchBlob 把查询得到的 BLOB 列值打开为字节流，size 未知时为 -1。
	FetchBlob(ctx context.Context, value any) (rc io.ReadCloser, size int64, err error)
	Close() error
}

// Connector 根据连接选项打开会话。
type Connector interface {
	Connect(ctx context.Context, opts Options) (Session, error)
}

// FirebirdConnector 通过 database/sql 打开 Firebird 会话，不做连接池复用。
type FirebirdConnector struct {
	driver string
}

// NewFirebirdConnector 创建一个新的 FirebirdConnector 实例。
func NewFirebirdConnector() *FirebirdConnector {
	return &FirebirdConnector{driver: FirebirdDriver}
}

// Connect 打开一条物理连接并确认服务端可达。
func (c *FirebirdConnector) Connect(ctx context.Context, opts Options) (Session, error) {
	db, err := sql.Open(c.driver, opts.DSN())
	if err != nil {
		return nil, apperror.Connection("db.connect", err)
	}
	return OpenSession(ctx, db, opts)
}

// OpenSession 在已有的 *sql.DB 上占用一条连接作为会话。会话关闭时同时关闭 db。
func OpenSession(ctx context.Context, db *sql.DB, opts Options) (Session, error) {
	db.SetMaxOpenConns(1)

	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, apperror.Connection("db.connect", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, apperror.Connection("db.connect", err)
	}
	return &sqlSession{db: db, conn: conn, opts: opts}, nil
}

type sqlSession struct {
	db     *sql.DB
	conn   *sql.Conn
	opts   Options

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (s *sqlSession) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if s.closed.Load() {
		return nil, apperror.Query("db.query", sql.ErrConnDone)
	}
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Query("db.query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperror.Query("db.query", err)
	}
	keys := make([]string, len(cols))
	for i, col := range cols {
		keys[i] = strings.TrimSpace(col)
		if s.opts.LowercaseKeys {
			keys[i] = strings.ToLower(keys[i])
		}
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperror.Query("db.query", err)
		}
		row := make(Row, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok && s.opts.BlobAsText {
				v = string(b)
			}
			row[keys[i]] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Query("db.query", err)
	}
	return result, nil
}

func (s *sqlSession) FetchBlob(ctx context.Context, value any) (io.ReadCloser, int64, error) {
	src, err := blob.FromValue(value)
	if err != nil {
		return nil, 0, apperror.Storage("db.fetch_blob", "unreadable binary object", err)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, apperror.Storage("db.fetch_blob", "unreadable binary object", err)
	}
	return rc, src.Size(), nil
}

// Close 关闭连接，可以被多个 goroutine 重复调用，只有第一次真正关闭。
func (s *sqlSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		connErr := s.conn.Close()
		dbErr := s.db.Close()
		if connErr != nil {
			s.closeErr = connErr
			return
		}
		s.closeErr = dbErr
	})
	return s.closeErr
}
