// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"crm-gateway-go/internal/config"
	"crm-gateway-go/internal/handler"
	"crm-gateway-go/internal/middleware"
	"crm-gateway-go/internal/repository"
	"crm-gateway-go/internal/service"
	"crm-gateway-go/pkg/database"
	"crm-gateway-go/pkg/generator"
	"crm-gateway-go/pkg/kafka"
	"crm-gateway-go/pkg/limiter"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/metrics"
	"crm-gateway-go/pkg/storage"
	"crm-gateway-go/pkg/tasks"
)

func main() {
	configPath := pflag.StringP("config", "c", "./configs/config.yaml", "配置文件路径")
	pflag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 客户库连接器：每个请求一次性会话，总数受 limits.max_sessions 限制
	connector := database.NewLimitedConnector(
		database.NewFirebirdConnector(),
		limiter.New("sessions", cfg.Limits.MaxSessions),
	)

	// 4. 目录模式的文件来源
	catalog, err := newCatalog(rootCtx, cfg)
	if err != nil {
		log.Fatal("初始化文件目录失败", err)
	}

	// 5. 外部文档生成程序
	runner := generator.NewExecRunner(generator.Options{
		Path:    cfg.Generator.ExecutablePath,
		WorkDir: cfg.Generator.WorkDir,
		Env:     cfg.Generator.Env,
		Timeout: cfg.Generator.Timeout,
		Pool:    limiter.New("generators", cfg.Limits.MaxGenerators),
	})
	if err := runner.Check(); err != nil {
		// 启动时不强制要求生成程序存在，调用时再返回错误
		log.Warnw("文档生成程序不可用", "path", cfg.Generator.ExecutablePath, "error", err)
	}

	// 6. 访问日志：MySQL 落库、Kafka 异步投递，二者都是可选的
	publisher, closePublisher := newPublisher(rootCtx, cfg)
	defer closePublisher()
	recorder := service.NewAccessRecorder(publisher)

	// 7. 初始化 Service (依赖注入)
	storageCfgService := service.NewStorageConfigService(connector, repository.NewParamRepository())
	fileService := service.NewFileService(connector, storageCfgService, repository.NewFileRepository(), catalog)
	documentService := service.NewDocumentService(runner)
	queryService := service.NewQueryService(connector)

	// 8. 限流使用的 Redis
	var rdb redis.Cmdable
	if cfg.RateLimit.Enabled {
		if err := database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB); err != nil {
			log.Warnw("Redis 不可用，限流已关闭", "error", err)
		} else {
			rdb = database.RDB
			defer database.RDB.Close()
		}
	}

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	// 10. 注册路由
	r.GET("/health", handler.Health)
	r.GET("/test", handler.Health)

	api := r.Group("/api/dbase")
	api.Use(middleware.RateLimit(rdb, cfg.RateLimit.RequestsPerMinute, time.Minute))
	{
		api.POST("/query", handler.NewQueryHandler(queryService, recorder, cfg.Firebird).Query)
		api.POST("/generate-document", handler.NewDocumentHandler(documentService, recorder, cfg.Firebird).Generate)
		api.POST("/files/fetch", handler.NewFileHandler(fileService, recorder, cfg.Firebird).Fetch)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务器关闭失败", err)
	}
	// 等待后台的访问事件发布完成，之后 publisher 才会被关闭
	recorder.Wait()
	// 停止 Kafka 消费者
	cancelRoot()
	log.Info("服务已优雅关闭")
}

func newCatalog(ctx context.Context, cfg config.Config) (storage.Catalog, error) {
	switch cfg.Storage.CatalogBackend {
	case "", "fs":
		return storage.NewFSCatalog(), nil
	case "minio":
		return storage.NewMinIOCatalog(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("未知的 catalog_backend: %q", cfg.Storage.CatalogBackend)
	}
}

// newPublisher 按配置选择访问事件的去向：
// Kafka 开启时事件发到 Kafka，由本进程的消费者写入 MySQL；只开启日志库时直接写库；都关闭时丢弃。
func newPublisher(ctx context.Context, cfg config.Config) (tasks.Publisher, func()) {
	var journal *service.JournalService
	if cfg.Journal.Enabled {
		if err := database.InitMySQL(cfg.Database.MySQL.DSN); err != nil {
			log.Warnw("访问日志库不可用，访问日志已关闭", "error", err)
		} else {
			repo := repository.NewJournalRepository(database.DB)
			if cfg.Journal.AutoMigrate {
				if err := repo.AutoMigrate(); err != nil {
					log.Warnw("access_journal 表迁移失败", "error", err)
				}
			}
			journal = service.NewJournalService(repo)
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		if journal != nil {
			go kafka.StartConsumer(ctx, cfg.Kafka, journal)
		}
		return producer, func() {
			if err := producer.Close(); err != nil {
				log.Warnw("关闭 Kafka 生产者失败", "error", err)
			}
			database.CloseMySQL()
		}
	}
	if journal != nil {
		return journal, database.CloseMySQL
	}
	return tasks.NopPublisher{}, func() {}
}
