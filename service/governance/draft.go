/*
 * @module service/governance/draft
 * @description 草稿服务，管理文档草稿的开启与编辑，维护同一文档最多一个未完结版本的约束
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 开草稿（载荷取自当前生效快照）-> 编辑载荷/发布范围 -> 提交审核
 * @rules 仅草稿状态可编辑；发布范围变更须通过分支目录校验；唯一未完结版本由部分唯一索引兜底
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

// DraftService 草稿服务
type DraftService struct {
	db        *gorm.DB
	directory *branch.DirectoryService
	validator *PayloadValidator
	audit     *audit.Sink
}

// NewDraftService 创建草稿服务实例
func NewDraftService(db *gorm.DB, directory *branch.DirectoryService, validator *PayloadValidator, auditSink *audit.Sink) *DraftService {
	return &DraftService{
		db:        db,
		directory: directory,
		validator: validator,
		audit:     auditSink,
	}
}

// OpenDraftRequest 开草稿请求
type OpenDraftRequest struct {
	ApplyToAllBranches bool     `json:"apply_to_all_branches"`
	BranchIDs          []string `json:"branch_ids"`
	Notes              string   `json:"notes"`
	Actor              string   `json:"-"`
}

// UpdateDraftRequest 编辑草稿请求，字段为空表示不变更
type UpdateDraftRequest struct {
	Payload            models.JSONB `json:"payload"`
	Notes              *string      `json:"notes"`
	ApplyToAllBranches *bool        `json:"apply_to_all_branches"`
	BranchIDs          []string     `json:"branch_ids"`
	Actor              string       `json:"-"`
}

// OpenDraft 为文档开启新草稿
// 草稿载荷以目标范围当前生效的快照为底稿；已存在未完结版本时返回 DraftAlreadyOpenError
func (s *DraftService) OpenDraft(documentID string, req *OpenDraftRequest) (*models.DocumentVersion, error) {
	var doc models.Document
	if err := s.db.First(&doc, "id = ?", documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.validateRollout(&doc, req.ApplyToAllBranches, req.BranchIDs); err != nil {
		return nil, err
	}

	if existing, err := s.findOpenVersion(documentID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, &DraftAlreadyOpenError{DocumentID: documentID, VersionID: existing.ID, Status: existing.Status}
	}

	payload := s.seedPayload(&doc, req)

	version := &models.DocumentVersion{
		DocumentID:         documentID,
		Status:             models.VersionStatusDraft,
		Payload:            payload,
		Notes:              req.Notes,
		ApplyToAllBranches: req.ApplyToAllBranches,
		CreatedBy:          req.Actor,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(version).Error; err != nil {
			return err
		}
		for _, branchID := range req.BranchIDs {
			vb := &models.VersionBranch{VersionID: version.ID, BranchID: branchID}
			if err := tx.Create(vb).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// 并发开草稿时由部分唯一索引兜底
		if isUniqueViolation(err) {
			if existing, ferr := s.findOpenVersion(documentID); ferr == nil && existing != nil {
				return nil, &DraftAlreadyOpenError{DocumentID: documentID, VersionID: existing.ID, Status: existing.Status}
			}
			return nil, &DraftAlreadyOpenError{DocumentID: documentID, Status: models.VersionStatusDraft}
		}
		return nil, err
	}

	s.audit.Record("draft_opened", documentID, version.ID, req.Actor, map[string]interface{}{
		"apply_to_all_branches": req.ApplyToAllBranches,
		"branch_ids":            req.BranchIDs,
	})
	return version, nil
}

// UpdateDraft 编辑草稿的载荷、备注或发布范围
func (s *DraftService) UpdateDraft(versionID string, req *UpdateDraftRequest) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.Preload("Document").First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if version.Status != models.VersionStatusDraft {
		return nil, &NotDraftError{VersionID: versionID, Status: version.Status}
	}

	applyToAll := version.ApplyToAllBranches
	branchIDs := req.BranchIDs
	rolloutChanged := req.ApplyToAllBranches != nil || len(req.BranchIDs) > 0
	if req.ApplyToAllBranches != nil {
		applyToAll = *req.ApplyToAllBranches
	}
	if rolloutChanged {
		if err := s.validateRollout(version.Document, applyToAll, branchIDs); err != nil {
			return nil, err
		}
	}

	if req.Payload != nil {
		if err := s.validator.Validate(version.Document.Kind, req.Payload); err != nil {
			return nil, err
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"updated_at": time.Now()}
		if req.Payload != nil {
			updates["payload"] = req.Payload
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if rolloutChanged {
			updates["apply_to_all_branches"] = applyToAll
		}
		if err := tx.Model(&models.DocumentVersion{}).Where("id = ?", versionID).
			Updates(updates).Error; err != nil {
			return err
		}
		if rolloutChanged {
			if err := tx.Where("version_id = ?", versionID).
				Delete(&models.VersionBranch{}).Error; err != nil {
				return err
			}
			if !applyToAll {
				for _, branchID := range branchIDs {
					vb := &models.VersionBranch{VersionID: versionID, BranchID: branchID}
					if err := tx.Create(vb).Error; err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record("draft_updated", version.DocumentID, versionID, req.Actor, map[string]interface{}{
		"payload_changed": req.Payload != nil,
		"rollout_changed": rolloutChanged,
	})

	var updated models.DocumentVersion
	if err := s.db.Preload("Branches").First(&updated, "id = ?", versionID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// validateRollout 校验发布范围与文档范围的一致性
func (s *DraftService) validateRollout(doc *models.Document, applyToAll bool, branchIDs []string) error {
	if applyToAll {
		if doc.ScopeBranchID != "" {
			return &RolloutValidationError{Reason: "分支范围文档不能作为全局基线发布"}
		}
		if len(branchIDs) > 0 {
			return &RolloutValidationError{BranchIDs: branchIDs, Reason: "全局基线不能附带分支列表"}
		}
		return nil
	}
	if len(branchIDs) == 0 {
		return &RolloutValidationError{Reason: "覆盖版本的分支列表不能为空"}
	}
	seen := make(map[string]bool, len(branchIDs))
	for _, id := range branchIDs {
		if seen[id] {
			return &RolloutValidationError{BranchIDs: branchIDs, Reason: "分支列表存在重复项"}
		}
		seen[id] = true
	}
	if doc.ScopeBranchID != "" {
		for _, id := range branchIDs {
			if id != doc.ScopeBranchID {
				return &RolloutValidationError{BranchIDs: branchIDs, Reason: "分支范围文档只能面向其归属分支发布"}
			}
		}
	}
	invalid, err := s.directory.ValidateActiveBranches(branchIDs)
	if err != nil {
		return err
	}
	if len(invalid) > 0 {
		return &RolloutValidationError{BranchIDs: invalid, Reason: "分支不存在或已停用"}
	}
	return nil
}

// findOpenVersion 查找文档当前未完结的版本
func (s *DraftService) findOpenVersion(documentID string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	err := s.db.Where("document_id = ? AND status IN ?", documentID, []string{
		models.VersionStatusDraft, models.VersionStatusInReview, models.VersionStatusApproved,
	}).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// seedPayload 以目标范围当前生效的快照作为草稿底稿
func (s *DraftService) seedPayload(doc *models.Document, req *OpenDraftRequest) models.JSONB {
	branchID := doc.ScopeBranchID
	if !req.ApplyToAllBranches && len(req.BranchIDs) > 0 {
		branchID = req.BranchIDs[0]
	}
	effective, err := findEffectiveVersion(s.db, doc.ID, branchID, time.Now())
	if err != nil || effective == nil {
		return models.JSONB{}
	}
	seeded := make(models.JSONB, len(effective.Payload))
	for k, v := range effective.Payload {
		seeded[k] = v
	}
	return seeded
}
