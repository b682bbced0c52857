package service

import (
	"context"
	"strings"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/database"
)

// QueryService 把任意 SQL 与参数原样转发到客户库。
type QueryService interface {
	Execute(ctx context.Context, opts database.Options, sql string, params []any) ([]database.Row, error)
}

type queryService struct {
	connector database.Connector
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(connector database.Connector) QueryService {
	return &queryService{connector: connector}
}

func (s *queryService) Execute(ctx context.Context, opts database.Options, sql string, params []any) ([]database.Row, error) {
	const op = "query.execute"

	if strings.TrimSpace(sql) == "" {
		return nil, apperror.Validation(op, "sql is required")
	}

	// 透传接口把 BLOB 以文本返回
	opts.BlobAsText = true

	session, err := openSession(ctx, s.connector, opts, op)
	if err != nil {
		return nil, err
	}
	defer closeSession(session, op)

	rows, err := session.Query(ctx, sql, params...)
	if err != nil {
		return nil, queryError(op, err)
	}
	return rows, nil
}
