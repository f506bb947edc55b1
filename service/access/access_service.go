/*
 * @module service/access/access_service
 * @description 解析接口接入管理服务，管理下游系统的接入客户端与访问密钥
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 客户端注册 -> 密钥签发（明文仅返回一次）-> 调用时校验 -> 过期/吊销
 * @rules 密钥仅存bcrypt哈希；校验按前缀缩小候选再逐一比对
 * @dependencies confighub-service/service/models, gorm.io/gorm, golang.org/x/crypto/bcrypt
 * @refs dev_docs/model.md
 */

package access

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"confighub-service/service/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccessService 接入管理服务
type AccessService struct {
	db *gorm.DB
}

// NewAccessService 创建接入管理服务实例
func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// === 接入客户端管理 ===

// CreateClient 注册接入客户端
func (s *AccessService) CreateClient(client *models.AccessClient) error {
	if client.BranchID != "" {
		var branch models.Branch
		if err := s.db.First(&branch, "id = ?", client.BranchID).Error; err != nil {
			return errors.New("归属分支不存在")
		}
	}

	var count int64
	if err := s.db.Model(&models.AccessClient{}).Where("name = ?", client.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("客户端名称已存在")
	}
	return s.db.Create(client).Error
}

// GetClients 获取接入客户端列表
func (s *AccessService) GetClients(page, pageSize int) ([]models.AccessClient, int64, error) {
	var clients []models.AccessClient
	var total int64

	query := s.db.Model(&models.AccessClient{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// === 访问密钥管理 ===

// CreateAccessKey 为客户端签发新密钥，返回的明文仅此一次
func (s *AccessService) CreateAccessKey(clientID, name string, expiresAt *time.Time) (*models.AccessKey, string, error) {
	var client models.AccessClient
	if err := s.db.First(&client, "id = ?", clientID).Error; err != nil {
		return nil, "", errors.New("接入客户端不存在")
	}
	if client.Status != "active" {
		return nil, "", errors.New("接入客户端已停用")
	}

	fullKey, err := generateRandomString(64)
	if err != nil {
		return nil, "", err
	}
	keyPrefix := fullKey[:8]

	hashedKey, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	key := &models.AccessKey{
		ClientID:     clientID,
		Name:         name,
		KeyPrefix:    keyPrefix,
		KeyValueHash: string(hashedKey),
		Status:       "active",
		ExpiresAt:    expiresAt,
	}
	if err := s.db.Create(key).Error; err != nil {
		return nil, "", err
	}
	return key, fullKey, nil
}

// VerifyAccessKey 校验密钥并返回归属客户端
// 按前缀缩小候选范围后逐一bcrypt比对
func (s *AccessService) VerifyAccessKey(keyValue string) (*models.AccessKey, error) {
	if len(keyValue) < 8 {
		return nil, errors.New("无效的访问密钥")
	}

	var keys []models.AccessKey
	if err := s.db.Preload("Client").
		Where("key_prefix = ? AND status = ?", keyValue[:8], "active").
		Find(&keys).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range keys {
		key := &keys[i]
		if err := bcrypt.CompareHashAndPassword([]byte(key.KeyValueHash), []byte(keyValue)); err == nil {
			if !key.IsUsable(now) {
				return nil, errors.New("访问密钥已过期或被吊销")
			}
			s.db.Model(key).Updates(map[string]interface{}{
				"last_used_at": now,
				"usage_count":  key.UsageCount + 1,
			})
			return key, nil
		}
	}
	return nil, errors.New("无效的访问密钥")
}

// RevokeAccessKey 吊销密钥
func (s *AccessService) RevokeAccessKey(keyID string) error {
	result := s.db.Model(&models.AccessKey{}).
		Where("id = ? AND status != ?", keyID, "revoked").
		Update("status", "revoked")
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("密钥不存在或已吊销")
	}
	return nil
}

// ListAccessKeys 获取客户端的密钥列表
func (s *AccessService) ListAccessKeys(clientID string) ([]models.AccessKey, error) {
	var keys []models.AccessKey
	if err := s.db.Where("client_id = ?", clientID).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// generateRandomString 生成指定长度的hex随机串
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
