package repository

import (
	"context"
	"strings"

	"crm-gateway-go/pkg/database"
)

// PARAM 表中决定文件存放位置的两个键（比较前做 TRIM + UPPER）。
const (
	ParamStorageLocation    = "STORAGE_LOCATION"
	ParamStorageCatalogRoot = "STORAGE_CATALOG_ROOT"
)

const storageParamsSQL = `SELECT PARAM_KEY, PARAM_VALUE FROM PARAM ` +
	`WHERE UPPER(TRIM(PARAM_KEY)) IN ('` + ParamStorageLocation + `', '` + ParamStorageCatalogRoot + `')`

// ParamRepository 读取客户库 PARAM 表中的参数。
type ParamRepository interface {
	// FindStorageParams 返回存储相关参数，键已规范化为大写。
	FindStorageParams(ctx context.Context, session database.Session) (map[string]string, error)
}

type paramRepository struct{}

// NewParamRepository 创建一个新的 ParamRepository 实例。
func NewParamRepository() ParamRepository {
	return &paramRepository{}
}

func (r *paramRepository) FindStorageParams(ctx context.Context, session database.Session) (map[string]string, error) {
	rows, err := session.Query(ctx, storageParamsSQL)
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(rows))
	for _, row := range rows {
		key := strings.ToUpper(row.String("PARAM_KEY"))
		if _, seen := params[key]; seen {
			// 重复的键只取第一行
			continue
		}
		params[key] = row.String("PARAM_VALUE")
	}
	return params, nil
}
