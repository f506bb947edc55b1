/*
 * @module service/governance/items
 * @description 条目编辑服务，管理草稿版本的套餐/目录行项目
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 草稿内增改条目 -> 软删除下线 -> 发布时启用条目冻结进快照
 * @rules 仅草稿可编辑条目；条目引用须指向启用的可开立条目，且条目的分支限制须被发布范围满足
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package governance

import (
	"errors"
	"time"

	"confighub-service/service/audit"
	"confighub-service/service/branch"
	"confighub-service/service/models"

	"gorm.io/gorm"
)

// ItemService 条目编辑服务
type ItemService struct {
	db        *gorm.DB
	directory *branch.DirectoryService
	audit     *audit.Sink
}

// NewItemService 创建条目编辑服务实例
func NewItemService(db *gorm.DB, directory *branch.DirectoryService, auditSink *audit.Sink) *ItemService {
	return &ItemService{
		db:        db,
		directory: directory,
		audit:     auditSink,
	}
}

// UpsertItemRequest 条目新增/更新请求
type UpsertItemRequest struct {
	ItemRef   string       `json:"item_ref"`
	SortOrder int          `json:"sort_order"`
	Quantity  int          `json:"quantity"`
	Overrides models.JSONB `json:"overrides"`
	Actor     string       `json:"-"`
}

// UpsertItem 在草稿中新增或更新条目
// 同一条目引用在版本内最多一行，重复提交按更新处理并恢复启用状态
func (s *ItemService) UpsertItem(versionID string, req *UpsertItemRequest) (*models.VersionItem, error) {
	version, err := s.loadDraft(versionID)
	if err != nil {
		return nil, err
	}
	if !models.HasItems(version.Document.Kind) {
		return nil, &ValidationError{Field: "kind", Reason: "政策类文档不支持条目编辑"}
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	if err := s.validateReference(version, req.ItemRef); err != nil {
		return nil, err
	}

	var item models.VersionItem
	err = s.db.Where("version_id = ? AND item_ref = ?", versionID, req.ItemRef).First(&item).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.VersionItem{
			VersionID: versionID,
			ItemRef:   req.ItemRef,
			SortOrder: req.SortOrder,
			Quantity:  req.Quantity,
			Overrides: req.Overrides,
			IsActive:  true,
		}
		if err := s.db.Create(&item).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		updates := map[string]interface{}{
			"sort_order": req.SortOrder,
			"quantity":   req.Quantity,
			"is_active":  true,
			"updated_at": time.Now(),
		}
		if req.Overrides != nil {
			updates["overrides"] = req.Overrides
		}
		if err := s.db.Model(&models.VersionItem{}).Where("id = ?", item.ID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := s.db.First(&item, "id = ?", item.ID).Error; err != nil {
			return nil, err
		}
	}

	s.audit.Record("item_upserted", version.DocumentID, versionID, req.Actor, map[string]interface{}{
		"item_ref":   req.ItemRef,
		"sort_order": req.SortOrder,
	})
	return &item, nil
}

// RemoveItem 软删除草稿中的条目
// 条目行保留但不再进入发布快照，重新upsert可恢复
func (s *ItemService) RemoveItem(versionID, itemRef, actor string) error {
	version, err := s.loadDraft(versionID)
	if err != nil {
		return err
	}

	result := s.db.Model(&models.VersionItem{}).
		Where("version_id = ? AND item_ref = ? AND is_active = ?", versionID, itemRef, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.audit.Record("item_removed", version.DocumentID, versionID, actor, map[string]interface{}{
		"item_ref": itemRef,
	})
	return nil
}

// ListItems 列出版本条目
func (s *ItemService) ListItems(versionID string, includeInactive bool) ([]models.VersionItem, error) {
	var version models.DocumentVersion
	if err := s.db.First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	query := s.db.Where("version_id = ?", versionID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var items []models.VersionItem
	if err := query.Order("sort_order, created_at").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// loadDraft 加载版本并确认处于草稿状态
func (s *ItemService) loadDraft(versionID string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.Preload("Document").Preload("Branches").
		First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if version.Status != models.VersionStatusDraft {
		return nil, &NotDraftError{VersionID: versionID, Status: version.Status}
	}
	return &version, nil
}

// validateReference 校验条目引用：须存在、启用，且条目的分支限制被版本发布范围满足
func (s *ItemService) validateReference(version *models.DocumentVersion, itemRef string) error {
	if itemRef == "" {
		return &InvalidReferenceError{ItemRef: itemRef, Reason: "引用不能为空"}
	}
	orderable, err := s.directory.GetOrderableItem(itemRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &InvalidReferenceError{ItemRef: itemRef, Reason: "可开立条目不存在"}
		}
		return err
	}
	if !orderable.IsActive {
		return &InvalidReferenceError{ItemRef: itemRef, Reason: "可开立条目已停用"}
	}
	if orderable.OrderableScope == "" {
		return nil
	}
	if version.ApplyToAllBranches {
		return &InvalidReferenceError{ItemRef: itemRef, Reason: "条目仅限部分分支使用，不能进入全局版本"}
	}
	for _, vb := range version.Branches {
		if vb.BranchID != orderable.OrderableScope {
			return &InvalidReferenceError{ItemRef: itemRef, Reason: "条目不在版本发布范围内可用"}
		}
	}
	return nil
}
