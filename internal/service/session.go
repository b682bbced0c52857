// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/database"
	"crm-gateway-go/pkg/log"
)

// openSession 打开一次性会话，未分类的错误统一归为连接错误。
func openSession(ctx context.Context, connector database.Connector, opts database.Options, op string) (database.Session, error) {
	session, err := connector.Connect(ctx, opts)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Connection(op, err)
	}
	return session, nil
}

// closeSession 关闭会话，关闭失败只记录日志，不影响已经得到的结果。
func closeSession(session database.Session, op string) {
	if err := session.Close(); err != nil {
		log.Warnw("关闭数据库会话失败", "op", op, "error", err)
	}
}

// queryError 把仓储返回的未分类错误归为查询错误。
func queryError(op string, err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Query(op, err)
}
