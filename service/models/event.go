/*
 * @module service/models/event
 * @description 事件管理相关模型定义，包括SSE事件、治理事件监听等
 * @architecture 事件驱动架构 - 数据模型层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 事件生产 -> 事件分发 -> 事件消费
 * @rules 确保事件的可靠传递和处理
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/model.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 治理事件类型
const (
	EventTypeVersionSubmitted = "version_submitted"
	EventTypeVersionApproved  = "version_approved"
	EventTypeVersionRejected  = "version_rejected"
	EventTypeVersionPublished = "version_published"
	EventTypeVersionRetired   = "version_retired"
)

// SSEEvent SSE事件模型，推送给管理端的治理动态
type SSEEvent struct {
	ID        string                 `gorm:"type:uuid;primary_key" json:"id"`
	EventType string                 `gorm:"not null" json:"event_type"` // version_submitted, version_published等
	UserName  string                 `gorm:"not null;index" json:"user_name"`
	Data      map[string]interface{} `gorm:"type:jsonb;not null" json:"data"`
	CreatedAt time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy string                 `gorm:"not null;default:'system'" json:"created_by"`
	Sent      bool                   `gorm:"not null;default:false" json:"sent"`
	SentAt    *time.Time             `json:"sent_at"`
	Read      bool                   `gorm:"not null;default:false" json:"read"`
	ReadAt    *time.Time             `json:"read_at"`
}

// BeforeCreate 创建前钩子
func (s *SSEEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedBy == "" {
		s.CreatedBy = "system"
	}
	return nil
}

// DBEventProcessor 数据库变更事件处理器接口
// 监听指定表的变更通知，由事件服务通过 pg NOTIFY 回调
type DBEventProcessor interface {
	ProcessDBChangeEvent(changeData map[string]interface{}) error
	TableName() string
}

// EventListener 事件监听注册接口
type EventListener interface {
	RegisterDBEventProcessor(processor DBEventProcessor) error
}

// SSEConnection SSE连接管理模型
type SSEConnection struct {
	ID           string    `gorm:"type:uuid;primary_key" json:"id"`
	UserName     string    `gorm:"not null;index" json:"user_name"`
	ConnectionID string    `gorm:"not null;unique" json:"connection_id"`
	ClientIP     string    `gorm:"not null" json:"client_ip"`
	UserAgent    string    `json:"user_agent"`
	ConnectedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"connected_at"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LastPingAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"last_ping_at"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
}

// BeforeCreate 创建前钩子
func (s *SSEConnection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
