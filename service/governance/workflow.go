/*
 * @module service/governance/workflow
 * @description 版本工作流服务，管理提交、审批、驳回、停用的状态流转
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow DRAFT -> IN_REVIEW -> APPROVED -> PUBLISHED -> RETIRED；IN_REVIEW -> REJECTED（终态）
 * @rules 状态只进不退；审批/驳回执行人不能是版本创建人；每次流转在版本行上留痕
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package governance

import (
	"errors"
	"time"

	"confighub-service/service/audit"
	"confighub-service/service/models"
	"confighub-service/service/notify"

	"gorm.io/gorm"
)

// WorkflowService 版本工作流服务
type WorkflowService struct {
	db        *gorm.DB
	validator *PayloadValidator
	resolver  *ResolverService
	notifier  *notify.Notifier
	audit     *audit.Sink
}

// NewWorkflowService 创建工作流服务实例
func NewWorkflowService(db *gorm.DB, validator *PayloadValidator, resolver *ResolverService, notifier *notify.Notifier, auditSink *audit.Sink) *WorkflowService {
	return &WorkflowService{
		db:        db,
		validator: validator,
		resolver:  resolver,
		notifier:  notifier,
		audit:     auditSink,
	}
}

// Submit 提交草稿进入审核
func (s *WorkflowService) Submit(versionID, actor string) (*models.DocumentVersion, error) {
	version, err := s.loadVersion(versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusDraft {
		return nil, &InvalidTransitionError{VersionID: versionID, From: version.Status, To: models.VersionStatusInReview}
	}

	// 提交前校验载荷，避免审核明显不合法的内容
	if err := s.validator.Validate(version.Document.Kind, version.Payload); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.VersionStatusInReview,
		"submitted_by": actor,
		"submitted_at": now,
		"updated_at":   now,
	}
	if err := s.transition(version, models.VersionStatusDraft, updates); err != nil {
		return nil, err
	}
	transitionTotal.WithLabelValues(models.VersionStatusInReview).Inc()

	s.audit.Record("version_submitted", version.DocumentID, versionID, actor, map[string]interface{}{
		"code": version.Document.Code,
	})
	return s.loadVersion(versionID)
}

// Approve 审批通过，进入待发布状态
// 审批人不能是版本创建人（四眼原则）
func (s *WorkflowService) Approve(versionID, actor, note string) (*models.DocumentVersion, error) {
	version, err := s.loadVersion(versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusInReview {
		return nil, &InvalidTransitionError{VersionID: versionID, From: version.Status, To: models.VersionStatusApproved}
	}
	if actor != "" && actor == version.CreatedBy {
		return nil, &ValidationError{Field: "actor", Reason: "审批人不能是版本创建人"}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        models.VersionStatusApproved,
		"approved_by":   actor,
		"approved_at":   now,
		"approval_note": note,
		"updated_at":    now,
	}
	if err := s.transition(version, models.VersionStatusInReview, updates); err != nil {
		return nil, err
	}
	transitionTotal.WithLabelValues(models.VersionStatusApproved).Inc()

	s.audit.Record("version_approved", version.DocumentID, versionID, actor, map[string]interface{}{
		"code": version.Document.Code,
		"note": note,
	})
	return s.loadVersion(versionID)
}

// Reject 审批驳回，版本进入终态
// 驳回后文档可以重新开草稿
func (s *WorkflowService) Reject(versionID, actor, reason string) (*models.DocumentVersion, error) {
	version, err := s.loadVersion(versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusInReview {
		return nil, &InvalidTransitionError{VersionID: versionID, From: version.Status, To: models.VersionStatusRejected}
	}
	if actor != "" && actor == version.CreatedBy {
		return nil, &ValidationError{Field: "actor", Reason: "驳回人不能是版本创建人"}
	}
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "驳回原因不能为空"}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":           models.VersionStatusRejected,
		"rejected_by":      actor,
		"rejected_at":      now,
		"rejection_reason": reason,
		"updated_at":       now,
	}
	if err := s.transition(version, models.VersionStatusInReview, updates); err != nil {
		return nil, err
	}
	transitionTotal.WithLabelValues(models.VersionStatusRejected).Inc()

	s.audit.Record("version_rejected", version.DocumentID, versionID, actor, map[string]interface{}{
		"code":   version.Document.Code,
		"reason": reason,
	})
	return s.loadVersion(versionID)
}

// Retire 手工停用已发布版本
// 生效区间在当前时点截断，解析立即切换到其余候选（通常是全局基线）
func (s *WorkflowService) Retire(versionID, actor string) (*models.DocumentVersion, error) {
	version, err := s.loadVersion(versionID)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusPublished {
		return nil, &InvalidTransitionError{VersionID: versionID, From: version.Status, To: models.VersionStatusRetired}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.VersionStatusRetired,
		"retired_by":   actor,
		"retired_at":   now,
		"effective_to": now,
		"updated_at":   now,
	}
	if err := s.transition(version, models.VersionStatusPublished, updates); err != nil {
		return nil, err
	}
	transitionTotal.WithLabelValues(models.VersionStatusRetired).Inc()

	s.resolver.Invalidate(version.Document.Code)
	s.audit.Record("version_retired", version.DocumentID, versionID, actor, map[string]interface{}{
		"code": version.Document.Code,
	})

	versionNumber := 0
	if version.VersionNumber != nil {
		versionNumber = *version.VersionNumber
	}
	branchIDs := make([]string, 0, len(version.Branches))
	for _, vb := range version.Branches {
		branchIDs = append(branchIDs, vb.BranchID)
	}
	s.notifier.PublishLifecycle(&notify.LifecycleMessage{
		Event:         "retired",
		DocumentID:    version.DocumentID,
		Code:          version.Document.Code,
		Kind:          version.Document.Kind,
		VersionID:     versionID,
		VersionNumber: versionNumber,
		Scope:         version.RolloutScope(),
		BranchIDs:     branchIDs,
	})
	return s.loadVersion(versionID)
}

// transition 以乐观条件更新执行流转，状态已被并发修改时报非法流转
func (s *WorkflowService) transition(version *models.DocumentVersion, fromStatus string, updates map[string]interface{}) error {
	result := s.db.Model(&models.DocumentVersion{}).
		Where("id = ? AND status = ?", version.ID, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		current, err := s.loadVersion(version.ID)
		if err != nil {
			return err
		}
		return &InvalidTransitionError{
			VersionID: version.ID,
			From:      current.Status,
			To:        updates["status"].(string),
		}
	}
	return nil
}

func (s *WorkflowService) loadVersion(versionID string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.Preload("Document").Preload("Branches").
		First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &version, nil
}
