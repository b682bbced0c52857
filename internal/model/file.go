package model

import (
	"errors"
	"strings"
)

// FileRecord 是 FILES 表中的一条文件记录。
type FileRecord struct {
	ID         string
	Name       string
	CustomerID string
	// Body 只在 IN_DATABASE 模式下有值，是驱动返回的 BLOB 列原值
	Body any
}

// ErrUnsafePath 表示路径分量会逃出目录根。
var ErrUnsafePath = errors.New("unsafe catalog path component")

// CatalogPath 返回目录模式下文件的物理路径：{root}/FILES/{customerId}/{fileId}_{fileName}
func CatalogPath(root, customerID, fileID, fileName string) (string, error) {
	for _, part := range []string{customerID, fileID, fileName} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, "/\\\x00") {
			return "", ErrUnsafePath
		}
	}
	return strings.TrimRight(root, "/\\") + "/FILES/" + customerID + "/" + fileID + "_" + fileName, nil
}
