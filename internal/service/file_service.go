package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/repository"
	"crm-gateway-go/pkg/database"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/storage"
)

// FileDownload 是一次文件下载的结果，调用方读完后必须 Close Body。
type FileDownload struct {
	Name     string
	Size     int64 // 未知时为 -1
	Location model.StorageLocation
	Body     io.ReadCloser
}

// FileService 接口定义了文件下载相关的业务操作。
type FileService interface {
	Retrieve(ctx context.Context, opts database.Options, fileID string) (*FileDownload, error)
}

type fileService struct {
	connector  database.Connector
	storageCfg StorageConfigService
	fileRepo   repository.FileRepository
	catalog    storage.Catalog
}

// NewFileService 创建一个新的 FileService 实例。
func NewFileService(connector database.Connector, storageCfg StorageConfigService, fileRepo repository.FileRepository, catalog storage.Catalog) FileService {
	return &fileService{
		connector:  connector,
		storageCfg: storageCfg,
		fileRepo:   fileRepo,
		catalog:    catalog,
	}
}

// Retrieve 根据客户库的存储配置，从 BLOB 或目录中读取文件。
func (s *fileService) Retrieve(ctx context.Context, opts database.Options, fileID string) (*FileDownload, error) {
	if fileID == "" {
		return nil, apperror.Validation("file.retrieve", "fileId is required")
	}

	// 配置解析失败时直接返回，不猜测存储模式
	cfg, err := s.storageCfg.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	if cfg.Location == model.StorageCatalog {
		return s.fromCatalog(ctx, opts, cfg, fileID)
	}
	return s.fromDatabase(ctx, opts, fileID)
}

func (s *fileService) fromCatalog(ctx context.Context, opts database.Options, cfg model.StorageConfig, fileID string) (*FileDownload, error) {
	const op = "file.catalog"

	record, err := s.lookupCatalogEntry(ctx, opts, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			log.Warnw("文件不在索引中", "fileId", fileID, "mode", "catalog", "cause", apperror.CauseIndex)
			return nil, apperror.NotFound(op, apperror.CauseIndex, "file not found")
		}
		return nil, err
	}

	path, err := model.CatalogPath(cfg.CatalogRoot, record.CustomerID, fileID, record.Name)
	if err != nil {
		log.Warnw("目录路径不安全，按缺失处理", "fileId", fileID, "custNo", record.CustomerID, "fileName", record.Name, "cause", apperror.CauseCatalog)
		return nil, apperror.NotFound(op, apperror.CauseCatalog, "file is missing from catalog")
	}

	obj, err := s.catalog.Open(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			log.Warnw("索引中有记录但目录中没有文件", "fileId", fileID, "path", path, "cause", apperror.CauseCatalog)
			return nil, apperror.NotFound(op, apperror.CauseCatalog, "file is missing from catalog")
		}
		return nil, apperror.Storage(op, "catalog read failed", err)
	}

	return &FileDownload{
		Name:     record.Name,
		Size:     obj.Size,
		Location: model.StorageCatalog,
		Body:     obj.Body,
	}, nil
}

// lookupCatalogEntry 查询索引行，会话在打开文件之前就关闭。
func (s *fileService) lookupCatalogEntry(ctx context.Context, opts database.Options, fileID string) (*model.FileRecord, error) {
	const op = "file.catalog"

	session, err := openSession(ctx, s.connector, opts, op)
	if err != nil {
		return nil, err
	}
	defer closeSession(session, op)

	record, err := s.fileRepo.FindCatalogEntry(ctx, session, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, err
		}
		return nil, queryError(op, err)
	}
	return record, nil
}

func (s *fileService) fromDatabase(ctx context.Context, opts database.Options, fileID string) (*FileDownload, error) {
	const op = "file.blob"

	session, err := openSession(ctx, s.connector, opts, op)
	if err != nil {
		return nil, err
	}

	record, err := s.fileRepo.FindWithBody(ctx, session, fileID)
	if err != nil {
		closeSession(session, op)
		if errors.Is(err, repository.ErrRecordNotFound) {
			log.Warnw("文件不在索引中", "fileId", fileID, "mode", "in_database", "cause", apperror.CauseIndex)
			return nil, apperror.NotFound(op, apperror.CauseIndex, "file not found")
		}
		return nil, queryError(op, err)
	}

	rc, size, err := session.FetchBlob(ctx, record.Body)
	if err != nil {
		closeSession(session, op)
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Storage(op, "binary object fetch failed", err)
	}

	// 会话要等 BLOB 读完（或出错）之后才能关闭
	return &FileDownload{
		Name:     record.Name,
		Size:     size,
		Location: model.StorageInDatabase,
		Body:     &sessionBody{ReadCloser: rc, session: session, op: op},
	}, nil
}

// sessionBody 在关闭字节流时一并关闭数据库会话，只执行一次。
type sessionBody struct {
	io.ReadCloser
	session database.Session
	op      string
	once    sync.Once
	err     error
}

func (b *sessionBody) Close() error {
	b.once.Do(func() {
		b.err = b.ReadCloser.Close()
		closeSession(b.session, b.op)
	})
	return b.err
}
