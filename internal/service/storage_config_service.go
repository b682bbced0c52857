package service

import (
	"context"
	"strconv"
	"strings"

	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/repository"
	"crm-gateway-go/pkg/database"
	"crm-gateway-go/pkg/log"
)

// StorageConfigService 解析客户库的文件存储配置。
type StorageConfigService interface {
	// Resolve 每次调用都重新读取 PARAM 表，配置修改在下一次请求立即生效。
	Resolve(ctx context.Context, opts database.Options) (model.StorageConfig, error)
}

type storageConfigService struct {
	connector database.Connector
	paramRepo repository.ParamRepository
}

// NewStorageConfigService 创建一个新的 StorageConfigService 实例。
func NewStorageConfigService(connector database.Connector, paramRepo repository.ParamRepository) StorageConfigService {
	return &storageConfigService{connector: connector, paramRepo: paramRepo}
}

func (s *storageConfigService) Resolve(ctx context.Context, opts database.Options) (model.StorageConfig, error) {
	session, err := openSession(ctx, s.connector, opts, "storage.resolve")
	if err != nil {
		return model.StorageConfig{}, err
	}
	defer closeSession(session, "storage.resolve")

	params, err := s.paramRepo.FindStorageParams(ctx, session)
	if err != nil {
		return model.StorageConfig{}, queryError("storage.resolve", err)
	}
	return ParseStorageParams(params), nil
}

// ParseStorageParams 把 PARAM 行映射为存储配置。
// 任一键缺失或位置值不是整数时回退到 IN_DATABASE，不返回错误。
func ParseStorageParams(params map[string]string) model.StorageConfig {
	cfg := model.DefaultStorageConfig()

	rawLocation, hasLocation := params[repository.ParamStorageLocation]
	root, hasRoot := params[repository.ParamStorageCatalogRoot]
	if !hasLocation || !hasRoot {
		return cfg
	}

	n, err := strconv.Atoi(strings.TrimSpace(rawLocation))
	if err != nil {
		log.Warnw("存储位置参数不是整数，回退到 IN_DATABASE", "value", rawLocation)
		return cfg
	}
	if model.StorageLocation(n) == model.StorageCatalog {
		cfg.Location = model.StorageCatalog
	}
	cfg.CatalogRoot = strings.TrimSpace(root)
	return cfg
}
