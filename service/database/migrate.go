/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新数据库表结构与关键索引
 * @architecture 数据访问层 - 迁移管理
 * @documentReference dev_docs/model.md
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 版本号唯一索引与未完结版本部分唯一索引是并发正确性的底线，迁移失败应阻止启动
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/requirements.md
 */

package database

import (
	"log"

	"confighub-service/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 治理文档相关表
	err := db.AutoMigrate(
		&models.Document{},
		&models.DocumentVersion{},
		&models.VersionBranch{},
		&models.VersionItem{},
	)
	if err != nil {
		return err
	}

	// 分支机构与主数据相关表
	err = db.AutoMigrate(
		&models.Branch{},
		&models.OrderableItem{},
	)
	if err != nil {
		return err
	}

	// 接入管理相关表
	err = db.AutoMigrate(
		&models.AccessClient{},
		&models.AccessKey{},
	)
	if err != nil {
		return err
	}

	// 审计与事件相关表
	err = db.AutoMigrate(
		&models.AuditRecord{},
		&models.SSEEvent{},
		&models.SSEConnection{},
	)
	if err != nil {
		return err
	}

	if err := createPartialIndexes(db); err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// createPartialIndexes 创建部分唯一索引
// 同一文档最多一个未完结版本（草稿/审核中/已批准），postgres与sqlite均支持该语法
func createPartialIndexes(db *gorm.DB) error {
	openVersionIndexSQL := `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_document_versions_open
		ON document_versions (document_id)
		WHERE status IN ('DRAFT', 'IN_REVIEW', 'APPROVED')
	`
	return db.Exec(openVersionIndexSQL).Error
}

// InitializeData 初始化基础数据
func InitializeData(db *gorm.DB) error {
	log.Println("开始初始化基础数据...")

	// 默认总部分支，便于空库环境下的联调
	var count int64
	if err := db.Model(&models.Branch{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		headquarters := &models.Branch{
			Code:     "HQ",
			Name:     "总院",
			IsActive: true,
		}
		if err := db.Create(headquarters).Error; err != nil {
			log.Printf("初始化默认分支失败: %v", err)
			return err
		}
	}

	log.Println("基础数据初始化完成")
	return nil
}
