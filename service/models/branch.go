/*
 * @module service/models/branch
 * @description 分支机构目录模型定义，治理文档发布范围与覆盖解析的协作方
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 分支机构由上游主数据系统维护，本服务只读校验
 * @rules 停用分支不可作为新发布范围，但历史版本关联保留
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Branch 分支机构模型（院区/分院）
type Branch struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code      string    `json:"code" gorm:"not null;unique;size:64"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	City      string    `json:"city" gorm:"size:100"`
	// 不设列默认值：带default标签的布尔字段在GORM插入时会丢弃零值false
	IsActive  bool      `json:"is_active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// OrderableItem 可开立条目模型（药品/服务项主数据），条目编辑器引用校验的依据
// orderable_scope 为空表示全院可用，否则仅限指定分支
type OrderableItem struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code           string    `json:"code" gorm:"not null;unique;size:64"`
	Name           string    `json:"name" gorm:"not null;size:255"`
	ItemType       string    `json:"item_type" gorm:"not null;size:32"` // DRUG, SERVICE, LAB, IMAGING
	OrderableScope string    `json:"orderable_scope" gorm:"size:36;default:''"`
	IsActive       bool      `json:"is_active" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (b *Branch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

func (o *OrderableItem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}
