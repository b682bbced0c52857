package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"crm-gateway-go/internal/config"
	"crm-gateway-go/pkg/log"
)

// MinIOCatalog 从 MinIO 存储桶读取目录文件，目录路径去掉开头的 / 后作为对象名。
type MinIOCatalog struct {
	client *minio.Client
	bucket string
}

// NewMinIOCatalog 初始化 MinIO 客户端并确认存储桶存在。
// 网关对目录只读，所以存储桶不存在时直接返回错误而不是创建它。
func NewMinIOCatalog(ctx context.Context, cfg config.MinIOConfig) (*MinIOCatalog, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("MinIO 存储桶 '%s' 不存在", cfg.BucketName)
	}

	log.Infof("MinIO 目录存储初始化成功，存储桶 '%s'", cfg.BucketName)
	return &MinIOCatalog{client: client, bucket: cfg.BucketName}, nil
}

// ObjectName 把目录路径转换为对象名。
func ObjectName(path string) string {
	return strings.TrimLeft(strings.ReplaceAll(path, "\\", "/"), "/")
}

func (c *MinIOCatalog) Open(ctx context.Context, path string) (*Object, error) {
	objectName := ObjectName(path)

	// GetObject 是惰性的，先 Stat 才能把不存在和其他错误区分开
	info, err := c.client.StatObject(ctx, c.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, objectName)
		}
		return nil, fmt.Errorf("stat object %s: %w", objectName, err)
	}

	obj, err := c.client.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectName, err)
	}
	return &Object{Body: obj, Size: info.Size}, nil
}

var _ Catalog = (*MinIOCatalog)(nil)
