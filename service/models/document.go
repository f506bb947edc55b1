/*
 * @module service/models/document
 * @description 配置治理相关模型定义，包括治理文档、文档版本、发布范围、条目等
 * @architecture DDD领域驱动设计 - 实体模型
 * @documentReference dev_docs/model.md
 * @stateFlow 文档版本生命周期管理：草稿 -> 审核 -> 批准 -> 发布 -> 停用
 * @rules 已发布版本不可变更，版本号仅在发布时分配且单调递增
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs dev_docs/requirements.md
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 文档类型
const (
	DocumentKindPolicy           = "POLICY"            // 管理政策
	DocumentKindOrderSet         = "ORDER_SET"         // 医嘱套餐
	DocumentKindServiceCatalogue = "SERVICE_CATALOGUE" // 服务目录
)

// 版本状态
const (
	VersionStatusDraft     = "DRAFT"     // 草稿，唯一可编辑状态
	VersionStatusInReview  = "IN_REVIEW" // 待审核
	VersionStatusApproved  = "APPROVED"  // 已批准，待发布
	VersionStatusPublished = "PUBLISHED" // 已发布，内容冻结
	VersionStatusRetired   = "RETIRED"   // 已停用
	VersionStatusRejected  = "REJECTED"  // 已驳回（终态，允许重新开草稿）
)

// 发布范围
const (
	RolloutScopeGlobal         = "GLOBAL"          // 全局基线
	RolloutScopeBranchOverride = "BRANCH_OVERRIDE" // 分支覆盖
)

// DocumentKinds 所有合法文档类型
var DocumentKinds = []string{
	DocumentKindPolicy,
	DocumentKindOrderSet,
	DocumentKindServiceCatalogue,
}

// VersionStatuses 所有合法版本状态
var VersionStatuses = []string{
	VersionStatusDraft,
	VersionStatusInReview,
	VersionStatusApproved,
	VersionStatusPublished,
	VersionStatusRetired,
	VersionStatusRejected,
}

// Document 治理文档模型，承载文档身份（编码、名称、类型、归属范围），与版本内容无关
// scope_branch_id 为空字符串表示全局范围文档
type Document struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code          string    `json:"code" gorm:"not null;size:64;uniqueIndex:idx_documents_code_scope"`
	Name          string    `json:"name" gorm:"not null;size:255"`
	Kind          string    `json:"kind" gorm:"not null;size:32;index"` // POLICY, ORDER_SET, SERVICE_CATALOGUE
	ScopeBranchID string    `json:"scope_branch_id" gorm:"size:36;default:'';uniqueIndex:idx_documents_code_scope"`
	Description   string    `json:"description" gorm:"size:1000"`
	CreatedBy     string    `json:"created_by" gorm:"size:100"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// 关联关系
	Versions []DocumentVersion `json:"versions,omitempty" gorm:"foreignKey:DocumentID"`
}

// DocumentVersion 文档版本模型，文档内容的一次生命周期实例
// version_number 仅在发布时分配，草稿与审核中版本共享"待定"版本号（NULL）
type DocumentVersion struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DocumentID    string `json:"document_id" gorm:"not null;type:varchar(36);index;uniqueIndex:idx_document_versions_number"`
	VersionNumber *int   `json:"version_number" gorm:"uniqueIndex:idx_document_versions_number"`
	Status        string `json:"status" gorm:"not null;default:'DRAFT';size:20;index"`
	Payload       JSONB  `json:"payload" gorm:"type:jsonb"`
	Checksum      string `json:"checksum" gorm:"size:128"` // 发布时计算的快照摘要，用于校验不可变性
	Notes         string `json:"notes" gorm:"size:1000"`

	// 发布范围：apply_to_all_branches 为 true 时是全局基线，否则通过 VersionBranch 指定覆盖分支。
	// 不设列默认值：带default标签的布尔字段在GORM插入时会丢弃零值false
	ApplyToAllBranches bool `json:"apply_to_all_branches" gorm:"not null"`

	// 生效区间 [effective_from, effective_to)，effective_to 为空表示仍然生效
	EffectiveFrom *time.Time `json:"effective_from" gorm:"index"`
	EffectiveTo   *time.Time `json:"effective_to"`

	// 各环节操作元数据
	CreatedBy       string     `json:"created_by" gorm:"size:100"`
	SubmittedBy     string     `json:"submitted_by" gorm:"size:100"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ApprovedBy      string     `json:"approved_by" gorm:"size:100"`
	ApprovedAt      *time.Time `json:"approved_at"`
	ApprovalNote    string     `json:"approval_note" gorm:"size:1000"`
	PublishedBy     string     `json:"published_by" gorm:"size:100"`
	PublishedAt     *time.Time `json:"published_at"`
	RetiredBy       string     `json:"retired_by" gorm:"size:100"`
	RetiredAt       *time.Time `json:"retired_at"`
	RejectedBy      string     `json:"rejected_by" gorm:"size:100"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason" gorm:"size:1000"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	// 关联关系
	Document *Document       `json:"document,omitempty" gorm:"foreignKey:DocumentID"`
	Branches []VersionBranch `json:"branches,omitempty" gorm:"foreignKey:VersionID"`
	Items    []VersionItem   `json:"items,omitempty" gorm:"foreignKey:VersionID"`
}

// VersionBranch 版本发布范围关联，记录覆盖版本所针对的分支集合
type VersionBranch struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	VersionID string    `json:"version_id" gorm:"not null;type:varchar(36);uniqueIndex:idx_version_branches_unique"`
	BranchID  string    `json:"branch_id" gorm:"not null;type:varchar(36);index;uniqueIndex:idx_version_branches_unique"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// VersionItem 草稿条目模型，医嘱套餐/服务目录的有序行项目
// 仅对草稿版本可编辑；发布时按 sort_order 序列化进版本快照，与快照互不影响
type VersionItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	VersionID string    `json:"version_id" gorm:"not null;type:varchar(36);index"`
	ItemRef   string    `json:"item_ref" gorm:"not null;type:varchar(36);index"` // 外部可开立条目（药品/服务项）的引用
	SortOrder int       `json:"sort_order" gorm:"not null;default:0"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1"`
	IsActive  bool      `json:"is_active" gorm:"not null"`
	Overrides JSONB     `json:"overrides" gorm:"type:jsonb"` // 条目级覆盖字段（价格、可见性等，由调用方解释）
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate GORM钩子，创建前生成UUID
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

func (v *DocumentVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

func (vb *VersionBranch) BeforeCreate(tx *gorm.DB) error {
	if vb.ID == "" {
		vb.ID = uuid.New().String()
	}
	return nil
}

func (vi *VersionItem) BeforeCreate(tx *gorm.DB) error {
	if vi.ID == "" {
		vi.ID = uuid.New().String()
	}
	return nil
}

// IsValidDocumentKind 检查文档类型是否合法
func IsValidDocumentKind(kind string) bool {
	for _, k := range DocumentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsOpenStatus 判断版本状态是否处于未完结的编辑/审批链路中
// 同一文档同时最多存在一个处于该集合状态的版本
func IsOpenStatus(status string) bool {
	switch status {
	case VersionStatusDraft, VersionStatusInReview, VersionStatusApproved:
		return true
	}
	return false
}

// RolloutScope 返回版本的发布范围类型
func (v *DocumentVersion) RolloutScope() string {
	if v.ApplyToAllBranches {
		return RolloutScopeGlobal
	}
	return RolloutScopeBranchOverride
}

// HasItems 判断文档类型是否携带条目（套餐/目录需要，政策自包含）
func HasItems(kind string) bool {
	return kind == DocumentKindOrderSet || kind == DocumentKindServiceCatalogue
}
