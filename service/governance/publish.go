/*
 * @module service/governance/publish
 * @description 发布引擎，在单事务内完成版本号分配、条目快照冻结与前序版本停用
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow APPROVED -> 事务内分配版本号(max+1) -> 冻结快照 -> 停用同范围前序版本 -> PUBLISHED
 * @rules 版本号冲突由 (document_id, version_number) 唯一索引裁决，冲突方收到可重试错误；已发布版本内容不再变更
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package governance

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"confighub-service/service/audit"
	"confighub-service/service/models"
	"confighub-service/service/notify"

	"gorm.io/gorm"
)

// PublishService 发布引擎
type PublishService struct {
	db       *gorm.DB
	resolver *ResolverService
	notifier *notify.Notifier
	audit    *audit.Sink
}

// NewPublishService 创建发布引擎实例
func NewPublishService(db *gorm.DB, resolver *ResolverService, notifier *notify.Notifier, auditSink *audit.Sink) *PublishService {
	return &PublishService{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		audit:    auditSink,
	}
}

// PublishRequest 发布请求
type PublishRequest struct {
	EffectiveFrom *time.Time `json:"effective_from"` // 为空表示立即生效，允许指定未来时点
	Actor         string     `json:"-"`
}

// Publish 发布已批准版本
// 单事务完成：版本号分配、条目快照冻结、同范围前序版本停用；
// 并发发布以版本号唯一索引裁决，失败方收到 ConcurrentPublishError
func (s *PublishService) Publish(versionID string, req *PublishRequest) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.Preload("Document").Preload("Branches").First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if version.Status != models.VersionStatusApproved {
		publishTotal.WithLabelValues("error").Inc()
		return nil, &InvalidTransitionError{VersionID: versionID, From: version.Status, To: models.VersionStatusPublished}
	}

	now := time.Now()
	effectiveFrom := now
	if req.EffectiveFrom != nil {
		if req.EffectiveFrom.Before(now.Add(-time.Minute)) {
			publishTotal.WithLabelValues("error").Inc()
			return nil, &ValidationError{Field: "effective_from", Reason: "生效时点不能早于当前时间"}
		}
		effectiveFrom = *req.EffectiveFrom
	}

	if models.HasItems(version.Document.Kind) {
		var itemCount int64
		if err := s.db.Model(&models.VersionItem{}).
			Where("version_id = ? AND is_active = ?", versionID, true).
			Count(&itemCount).Error; err != nil {
			return nil, err
		}
		if itemCount == 0 {
			publishTotal.WithLabelValues("error").Inc()
			return nil, &ValidationError{Field: "items", Reason: "套餐/目录类文档发布前须至少包含一个启用条目"}
		}
	}

	payload, err := s.freezeSnapshot(&version)
	if err != nil {
		publishTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	checksum, err := snapshotChecksum(payload)
	if err != nil {
		publishTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var assigned int
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// 事务内重读当前最大版本号，配合唯一索引裁决并发
		var maxNumber int
		if err := tx.Model(&models.DocumentVersion{}).
			Where("document_id = ?", version.DocumentID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}
		assigned = maxNumber + 1

		result := tx.Model(&models.DocumentVersion{}).
			Where("id = ? AND status = ?", versionID, models.VersionStatusApproved).
			Updates(map[string]interface{}{
				"status":         models.VersionStatusPublished,
				"version_number": assigned,
				"payload":        payload,
				"checksum":       checksum,
				"effective_from": effectiveFrom,
				"published_by":   req.Actor,
				"published_at":   now,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &InvalidTransitionError{VersionID: versionID, From: version.Status, To: models.VersionStatusPublished}
		}

		return s.retirePredecessors(tx, &version, effectiveFrom, req.Actor, now)
	})
	if txErr != nil {
		if isUniqueViolation(txErr) {
			publishTotal.WithLabelValues("conflict").Inc()
			return nil, &ConcurrentPublishError{DocumentID: version.DocumentID, VersionNumber: assigned}
		}
		var transitionErr *InvalidTransitionError
		if errors.As(txErr, &transitionErr) {
			publishTotal.WithLabelValues("error").Inc()
			return nil, transitionErr
		}
		publishTotal.WithLabelValues("error").Inc()
		return nil, txErr
	}
	publishTotal.WithLabelValues("success").Inc()

	s.resolver.Invalidate(version.Document.Code)
	s.audit.Record("version_published", version.DocumentID, versionID, req.Actor, map[string]interface{}{
		"code":           version.Document.Code,
		"version_number": assigned,
		"effective_from": effectiveFrom,
		"scope":          version.RolloutScope(),
	})

	branchIDs := make([]string, 0, len(version.Branches))
	for _, vb := range version.Branches {
		branchIDs = append(branchIDs, vb.BranchID)
	}
	s.notifier.PublishLifecycle(&notify.LifecycleMessage{
		Event:         "published",
		DocumentID:    version.DocumentID,
		Code:          version.Document.Code,
		Kind:          version.Document.Kind,
		VersionID:     versionID,
		VersionNumber: assigned,
		Scope:         version.RolloutScope(),
		BranchIDs:     branchIDs,
	})

	var published models.DocumentVersion
	if err := s.db.Preload("Branches").First(&published, "id = ?", versionID).Error; err != nil {
		return nil, err
	}
	return &published, nil
}

// freezeSnapshot 冻结发布快照
// 套餐/目录类文档把启用条目按排序序列化进载荷，发布后条目表的变更不再影响该版本
func (s *PublishService) freezeSnapshot(version *models.DocumentVersion) (models.JSONB, error) {
	payload := make(models.JSONB, len(version.Payload)+1)
	for k, v := range version.Payload {
		payload[k] = v
	}
	if !models.HasItems(version.Document.Kind) {
		return payload, nil
	}

	var items []models.VersionItem
	if err := s.db.Where("version_id = ? AND is_active = ?", version.ID, true).
		Order("sort_order, created_at").
		Find(&items).Error; err != nil {
		return nil, err
	}
	frozen := make([]interface{}, 0, len(items))
	for _, item := range items {
		frozen = append(frozen, map[string]interface{}{
			"item_ref":   item.ItemRef,
			"sort_order": item.SortOrder,
			"quantity":   item.Quantity,
			"overrides":  map[string]interface{}(item.Overrides),
		})
	}
	payload["items"] = frozen
	return payload, nil
}

// retirePredecessors 停用同一发布范围内仍在生效的前序版本
// 前序版本的生效区间在新版本生效时点截断，未来时点发布时前序版本继续服务到该时点
func (s *PublishService) retirePredecessors(tx *gorm.DB, version *models.DocumentVersion, effectiveFrom time.Time, actor string, now time.Time) error {
	predecessors, err := s.findActivePredecessors(tx, version, effectiveFrom)
	if err != nil {
		return err
	}
	for _, p := range predecessors {
		result := tx.Model(&models.DocumentVersion{}).
			Where("id = ? AND status = ?", p.ID, models.VersionStatusPublished).
			Updates(map[string]interface{}{
				"status":       models.VersionStatusRetired,
				"effective_to": effectiveFrom,
				"retired_by":   actor,
				"retired_at":   now,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// findActivePredecessors 找出与新版本发布范围冲突且仍在生效的已发布版本
// 全局发布冲突对象是前序全局版本；覆盖发布冲突对象是分支集合有交集的覆盖版本
func (s *PublishService) findActivePredecessors(tx *gorm.DB, version *models.DocumentVersion, effectiveFrom time.Time) ([]models.DocumentVersion, error) {
	query := tx.Preload("Branches").
		Where("document_id = ? AND status = ? AND id != ?",
			version.DocumentID, models.VersionStatusPublished, version.ID).
		Where("effective_to IS NULL OR effective_to > ?", effectiveFrom)

	var candidates []models.DocumentVersion
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}

	if version.ApplyToAllBranches {
		var matched []models.DocumentVersion
		for _, c := range candidates {
			if c.ApplyToAllBranches {
				matched = append(matched, c)
			}
		}
		return matched, nil
	}

	target := make(map[string]bool, len(version.Branches))
	for _, vb := range version.Branches {
		target[vb.BranchID] = true
	}
	var matched []models.DocumentVersion
	for _, c := range candidates {
		if c.ApplyToAllBranches {
			continue
		}
		for _, vb := range c.Branches {
			if target[vb.BranchID] {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched, nil
}

// snapshotChecksum 计算快照摘要
func snapshotChecksum(payload models.JSONB) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("快照序列化失败: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("%x", sum), nil
}
