// Package model 定义了请求载荷、领域对象以及与数据库表对应的 Go 结构体。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"crm-gateway-go/internal/config"
	"crm-gateway-go/pkg/database"
)

// FlexString 可以从 JSON 字符串或数字解析，客户端对端口和记录 ID 两种写法都有。
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// ConnectionDescriptor 是调用方随每个请求提交的客户库连接描述。
// type 和 token 字段被接受但不做校验。
type ConnectionDescriptor struct {
	Type  string     `json:"type"`
	Token string     `json:"token"`
	Host  string     `json:"client__db_host"`
	Port  FlexString `json:"client__db_port"`
	Path  string     `json:"client__db_path"`
}

// Options 把连接描述与服务端固定参数合并成一次性的连接选项。
func (d ConnectionDescriptor) Options(cfg config.FirebirdConfig) (database.Options, error) {
	port := cfg.DefaultPort
	if p := strings.TrimSpace(d.Port.String()); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return database.Options{}, fmt.Errorf("invalid client__db_port %q", p)
		}
		port = n
	}
	return database.Options{
		Host:           strings.TrimSpace(d.Host),
		Port:           port,
		Path:           strings.TrimSpace(d.Path),
		User:           cfg.User,
		Password:       cfg.Password,
		Role:           cfg.Role,
		Charset:        cfg.Charset,
		PageSize:       cfg.PageSize,
		LowercaseKeys:  cfg.LowercaseKeys,
		ConnectTimeout: cfg.ConnectTimeout,
		QueryTimeout:   cfg.QueryTimeout,
	}, nil
}

// QueryRequest 是 SQL 透传接口的请求体。
type QueryRequest struct {
	ConnectionDescriptor
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// FileFetchRequest 是文件下载接口的请求体。
type FileFetchRequest struct {
	ConnectionDescriptor
	FileID FlexString `json:"fileId"`
}

// GenerateDocumentRequest 是文档生成接口的请求体。
type GenerateDocumentRequest struct {
	ConnectionDescriptor
	ReportName string     `json:"reportName"`
	RecordID   FlexString `json:"recordId"`
}
