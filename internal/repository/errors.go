// Package repository 定义了与数据库进行数据交换的接口和实现。
//
// 客户库的仓储不持有连接，每个方法都在调用方传入的一次性会话上执行；
// 访问日志仓储使用 GORM 连接网关自己的 MySQL。
package repository

import "errors"

// ErrRecordNotFound 表示查询没有返回任何行。
var ErrRecordNotFound = errors.New("record not found")
