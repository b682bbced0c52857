package model

// StorageLocation 表示文件体的物理存放位置。
type StorageLocation int

const (
	// StorageInDatabase 文件体以 BLOB 形式保存在记录行中
	StorageInDatabase StorageLocation = 1
	// StorageCatalog 文件体保存在目录根下的文件系统中，记录行只有元数据
	StorageCatalog StorageLocation = 2
)

func (l StorageLocation) String() string {
	switch l {
	case StorageCatalog:
		return "catalog"
	default:
		return "in_database"
	}
}

// StorageConfig 是按请求从 PARAM 表解析出的存储配置，从不缓存。
type StorageConfig struct {
	Location    StorageLocation
	CatalogRoot string
}

// DefaultStorageConfig 是 PARAM 表缺少配置时使用的值。
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{Location: StorageInDatabase}
}
