/*
 * @module service/models/access
 * @description 解析接口接入方模型定义，包括接入客户端与访问密钥
 * @architecture 分层架构 - 数据模型层
 * @documentReference dev_docs/model.md
 * @stateFlow 密钥签发 -> 使用 -> 过期/吊销
 * @rules 密钥仅存储Hash值，明文只在签发时返回一次
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessClient 接入客户端模型，调用生效解析接口的下游系统（HIS、收费、药房等）
type AccessClient struct {
	ID            string    `gorm:"type:uuid;primary_key" json:"id"`
	Name          string    `gorm:"not null;unique" json:"name"`
	BranchID      string    `gorm:"size:36;default:''" json:"branch_id"` // 客户端归属分支，空表示平台级
	ContactPerson string    `gorm:"not null" json:"contact_person"`
	ContactPhone  string    `gorm:"not null" json:"contact_phone"`
	Status        string    `gorm:"not null;default:'active'" json:"status"` // active/inactive
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy     string    `gorm:"not null;default:'system';size:100" json:"created_by"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy     string    `gorm:"not null;default:'system';size:100" json:"updated_by"`

	// 关联关系
	AccessKeys []AccessKey `gorm:"foreignKey:ClientID" json:"access_keys,omitempty"`
}

// BeforeCreate 创建前钩子
func (c *AccessClient) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedBy == "" {
		c.CreatedBy = "system"
	}
	if c.UpdatedBy == "" {
		c.UpdatedBy = "system"
	}
	return nil
}

// BeforeUpdate 更新前钩子
func (c *AccessClient) BeforeUpdate(tx *gorm.DB) error {
	if c.UpdatedBy == "" {
		c.UpdatedBy = "system"
	}
	return nil
}

// AccessKey 访问密钥模型
type AccessKey struct {
	ID           string     `gorm:"type:uuid;primary_key" json:"id"`
	ClientID     string     `gorm:"not null;type:varchar(36);index" json:"client_id"`
	Name         string     `gorm:"not null" json:"name"`
	KeyPrefix    string     `gorm:"not null;size:8" json:"key_prefix"` // 密钥前缀，用于快速定位
	KeyValueHash string     `gorm:"not null;unique" json:"-"`          // bcrypt Hash后的密钥值
	Status       string     `gorm:"not null;default:'active'" json:"status"` // active, inactive, revoked
	ExpiresAt    *time.Time `json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	UsageCount   int64      `gorm:"default:0" json:"usage_count"`
	CreatedBy    string     `gorm:"size:100" json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联关系
	Client *AccessClient `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

// BeforeCreate 创建前钩子
func (k *AccessKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedBy == "" {
		k.CreatedBy = "system"
	}
	return nil
}

// IsUsable 判断密钥当前是否可用
func (k *AccessKey) IsUsable(now time.Time) bool {
	if k.Status != "active" {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}
