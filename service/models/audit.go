/*
 * @module service/models/audit
 * @description 审计记录模型定义，治理操作的不可变流水
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 本地落库 -> Kafka投递 -> 投递确认，失败记录由定时任务重投
 * @rules 审计记录只增不改，delivered 标记仅由投递流程更新
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/model.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRecord 审计记录模型，每次治理操作一条
type AuditRecord struct {
	ID         string    `gorm:"type:uuid;primary_key" json:"id"`
	Action     string    `gorm:"not null;size:64;index" json:"action"` // document_created, draft_opened, version_published等
	DocumentID string    `gorm:"size:36;index" json:"document_id"`
	VersionID  string    `gorm:"size:36;index" json:"version_id"`
	Actor      string    `gorm:"not null;size:100" json:"actor"`
	Detail     JSONB     `gorm:"type:jsonb" json:"detail"`
	OccurredAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"occurred_at"`

	// Kafka投递状态
	Delivered    bool       `gorm:"not null;default:false;index" json:"delivered"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	DeliverTries int        `gorm:"not null;default:0" json:"deliver_tries"`
	LastError    string     `gorm:"size:500" json:"last_error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// BeforeCreate 创建前钩子
func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
