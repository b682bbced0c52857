package repository

import (
	"context"

	"crm-gateway-go/internal/model"
	"crm-gateway-go/pkg/database"
)

const (
	fileCatalogEntrySQL = `SELECT FILE_NAME, CUSTNO FROM FILES WHERE FILE_ID = ?`
	fileWithBodySQL     = `SELECT FILE_NAME, FILE_BODY FROM FILES WHERE FILE_ID = ?`
)

// FileRepository 读取客户库 FILES 表。
type FileRepository interface {
	// FindCatalogEntry 查询目录模式所需的文件名和客户编号，不读取文件体。
	FindCatalogEntry(ctx context.Context, session database.Session, fileID string) (*model.FileRecord, error)
	// FindWithBody 查询文件名和 BLOB 文件体。
	FindWithBody(ctx context.Context, session database.Session, fileID string) (*model.FileRecord, error)
}

type fileRepository struct{}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository() FileRepository {
	return &fileRepository{}
}

func (r *fileRepository) FindCatalogEntry(ctx context.Context, session database.Session, fileID string) (*model.FileRecord, error) {
	rows, err := session.Query(ctx, fileCatalogEntrySQL, fileID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrRecordNotFound
	}
	return &model.FileRecord{
		ID:         fileID,
		Name:       rows[0].String("FILE_NAME"),
		CustomerID: rows[0].String("CUSTNO"),
	}, nil
}

func (r *fileRepository) FindWithBody(ctx context.Context, session database.Session, fileID string) (*model.FileRecord, error) {
	rows, err := session.Query(ctx, fileWithBodySQL, fileID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrRecordNotFound
	}
	body, _ := rows[0].Get("FILE_BODY")
	return &model.FileRecord{
		ID:   fileID,
		Name: rows[0].String("FILE_NAME"),
		Body: body,
	}, nil
}
