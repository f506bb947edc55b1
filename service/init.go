/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移与各治理服务的装配
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"fmt"
	"log"
	"os"
	"time"

	"confighub-service/service/access"
	"confighub-service/service/audit"
	"confighub-service/service/branch"
	"confighub-service/service/database"
	"confighub-service/service/event"
	"confighub-service/service/governance"
	"confighub-service/service/notify"

	"github.com/spf13/cast"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                     *gorm.DB
	GlobalEventService     *event.EventService
	GlobalAuditSink        *audit.Sink
	GlobalNotifier         *notify.Notifier
	GlobalDirectoryService *branch.DirectoryService
	GlobalValidator        *governance.PayloadValidator
	GlobalRegistryService  *governance.RegistryService
	GlobalDraftService     *governance.DraftService
	GlobalWorkflowService  *governance.WorkflowService
	GlobalPublishService   *governance.PublishService
	GlobalResolverService  *governance.ResolverService
	GlobalItemService      *governance.ItemService
	GlobalAccessService    *access.AccessService
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")
}

// initServices 初始化服务
func initServices() {
	// 旁路设施先就绪，治理服务在其上装配
	GlobalEventService = event.NewEventService(DB, true)
	GlobalAuditSink = audit.NewSink(DB)
	GlobalAuditSink.Start()
	GlobalNotifier = notify.NewNotifier()
	GlobalDirectoryService = branch.NewDirectoryService(DB)
	GlobalValidator = governance.NewPayloadValidator()

	cacheTTL := time.Duration(cast.ToInt(getEnvWithDefault("RESOLVER_CACHE_TTL_SECONDS", "60"))) * time.Second
	resolverCache := governance.NewResolverCacheFromEnv()
	GlobalResolverService = governance.NewResolverService(DB, resolverCache, cacheTTL)

	GlobalRegistryService = governance.NewRegistryService(DB, GlobalDirectoryService, GlobalAuditSink)
	GlobalDraftService = governance.NewDraftService(DB, GlobalDirectoryService, GlobalValidator, GlobalAuditSink)
	GlobalWorkflowService = governance.NewWorkflowService(DB, GlobalValidator, GlobalResolverService, GlobalNotifier, GlobalAuditSink)
	GlobalPublishService = governance.NewPublishService(DB, GlobalResolverService, GlobalNotifier, GlobalAuditSink)
	GlobalItemService = governance.NewItemService(DB, GlobalDirectoryService, GlobalAuditSink)
	GlobalAccessService = access.NewAccessService(DB)

	// 版本表变更经数据库通知转为SSE治理事件
	if err := GlobalEventService.RegisterDBEventProcessor(event.NewVersionChangeProcessor(GlobalEventService)); err != nil {
		log.Printf("注册版本变更处理器失败: %v", err)
	}

	log.Println("服务初始化完成")
}
