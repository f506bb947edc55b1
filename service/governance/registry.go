/*
 * @module service/governance/registry
 * @description 治理文档注册服务，管理文档身份的创建与查询
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 文档创建后身份信息（编码、类型、范围）不再变更，内容变更走版本流程
 * @rules 文档编码在其范围（全局或单一分支）内唯一，读写路径统一走编码规范化
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package governance

import (
	"errors"
	"fmt"

	"confighub-service/service/audit"
	"confighub-service/service/branch"
	"confighub-service/service/models"

	"gorm.io/gorm"
)

// RegistryService 文档注册服务
type RegistryService struct {
	db        *gorm.DB
	directory *branch.DirectoryService
	audit     *audit.Sink
}

// NewRegistryService 创建文档注册服务实例
func NewRegistryService(db *gorm.DB, directory *branch.DirectoryService, auditSink *audit.Sink) *RegistryService {
	return &RegistryService{
		db:        db,
		directory: directory,
		audit:     auditSink,
	}
}

// CreateDocumentRequest 创建文档请求
type CreateDocumentRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	ScopeBranchID string `json:"scope_branch_id"`
	Description   string `json:"description"`
	CreatedBy     string `json:"-"`
}

// CreateDocument 创建治理文档
// 编码先规范化再查重，同范围重复返回 DuplicateCodeError
func (s *RegistryService) CreateDocument(req *CreateDocumentRequest) (*models.Document, error) {
	code, err := CanonicalizeCode(req.Code)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "不能为空"}
	}
	if !models.IsValidDocumentKind(req.Kind) {
		return nil, &ValidationError{Field: "kind", Reason: fmt.Sprintf("不支持的文档类型 %s", req.Kind)}
	}

	if req.ScopeBranchID != "" {
		invalid, err := s.directory.ValidateActiveBranches([]string{req.ScopeBranchID})
		if err != nil {
			return nil, err
		}
		if len(invalid) > 0 {
			return nil, &ValidationError{Field: "scope_branch_id", Reason: "分支不存在或已停用"}
		}
	}

	var count int64
	if err := s.db.Model(&models.Document{}).
		Where("code = ? AND scope_branch_id = ?", code, req.ScopeBranchID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &DuplicateCodeError{Code: code, ScopeBranchID: req.ScopeBranchID}
	}

	doc := &models.Document{
		Code:          code,
		Name:          req.Name,
		Kind:          req.Kind,
		ScopeBranchID: req.ScopeBranchID,
		Description:   req.Description,
		CreatedBy:     req.CreatedBy,
	}
	if err := s.db.Create(doc).Error; err != nil {
		// 并发创建时预检查可能漏网，由唯一索引兜底
		if isUniqueViolation(err) {
			return nil, &DuplicateCodeError{Code: code, ScopeBranchID: req.ScopeBranchID}
		}
		return nil, err
	}

	s.audit.Record("document_created", doc.ID, "", req.CreatedBy, map[string]interface{}{
		"code": doc.Code,
		"kind": doc.Kind,
	})
	return doc, nil
}

// GetDocumentByCode 根据规范化编码与范围获取文档
func (s *RegistryService) GetDocumentByCode(code, scopeBranchID string) (*models.Document, error) {
	canonical, err := CanonicalizeCode(code)
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := s.db.Where("code = ? AND scope_branch_id = ?", canonical, scopeBranchID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocument 根据ID获取文档
func (s *RegistryService) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocuments 获取文档列表
func (s *RegistryService) ListDocuments(page, pageSize int, kind, keyword string) ([]models.Document, int64, error) {
	var docs []models.Document
	var total int64

	query := s.db.Model(&models.Document{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if keyword != "" {
		query = query.Where("code LIKE ? OR name LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// ListVersions 获取文档的版本历史
func (s *RegistryService) ListVersions(documentID string) ([]models.DocumentVersion, error) {
	if _, err := s.GetDocument(documentID); err != nil {
		return nil, err
	}
	var versions []models.DocumentVersion
	if err := s.db.Where("document_id = ?", documentID).
		Preload("Branches").
		// 未定号的草稿排最前，其余按版本号倒序
		Order("version_number IS NULL DESC, version_number DESC, created_at DESC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// GetVersion 根据ID获取版本
func (s *RegistryService) GetVersion(id string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.Preload("Branches").Preload("Items").First(&version, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &version, nil
}
