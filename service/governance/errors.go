/*
 * @module service/governance/errors
 * @description 治理域错误定义，区分重复编码、非法流转、并发发布等业务错误
 * @architecture 分层架构 - 领域服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 服务层产生业务错误，控制器层通过 errors.As/Is 映射为HTTP响应
 * @rules 错误信息面向管理端用户，附带定位所需的编码/状态信息
 * @dependencies errors, fmt
 * @refs dev_docs/model.md
 */

package governance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostgreSQL唯一约束冲突的SQLSTATE
const uniqueViolationCode = "23505"

// isUniqueViolation 判断数据库错误是否为唯一约束冲突
// 兼容 postgres（lib/pq / pgx）与测试用 sqlite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, uniqueViolationCode) ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// ErrNotFound 目标文档或版本不存在
var ErrNotFound = errors.New("目标不存在")

// DuplicateCodeError 同一范围内文档编码重复
type DuplicateCodeError struct {
	Code          string
	ScopeBranchID string
}

func (e *DuplicateCodeError) Error() string {
	if e.ScopeBranchID == "" {
		return fmt.Sprintf("文档编码 %s 在全局范围内已存在", e.Code)
	}
	return fmt.Sprintf("文档编码 %s 在分支 %s 范围内已存在", e.Code, e.ScopeBranchID)
}

// DraftAlreadyOpenError 同一文档已存在未完结版本（草稿/审核中/已批准）
type DraftAlreadyOpenError struct {
	DocumentID string
	VersionID  string
	Status     string
}

func (e *DraftAlreadyOpenError) Error() string {
	return fmt.Sprintf("文档 %s 已存在未完结版本 %s（状态 %s），不能再开草稿", e.DocumentID, e.VersionID, e.Status)
}

// NotDraftError 对非草稿状态版本执行编辑操作
type NotDraftError struct {
	VersionID string
	Status    string
}

func (e *NotDraftError) Error() string {
	return fmt.Sprintf("版本 %s 当前状态为 %s，仅草稿状态可编辑", e.VersionID, e.Status)
}

// InvalidTransitionError 非法的工作流状态流转
type InvalidTransitionError struct {
	VersionID string
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("版本 %s 不允许从 %s 流转到 %s", e.VersionID, e.From, e.To)
}

// InvalidReferenceError 条目引用的外部可开立条目不存在或不在分支范围内
type InvalidReferenceError struct {
	ItemRef string
	Reason  string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("条目引用 %s 无效: %s", e.ItemRef, e.Reason)
}

// ConcurrentPublishError 并发发布导致版本号冲突，调用方可重试一次
type ConcurrentPublishError struct {
	DocumentID    string
	VersionNumber int
}

func (e *ConcurrentPublishError) Error() string {
	return fmt.Sprintf("文档 %s 版本号 %d 已被并发发布占用，请重试", e.DocumentID, e.VersionNumber)
}

// RolloutValidationError 发布范围不合法（分支不存在、已停用或范围为空）
type RolloutValidationError struct {
	BranchIDs []string
	Reason    string
}

func (e *RolloutValidationError) Error() string {
	return fmt.Sprintf("发布范围不合法: %s", e.Reason)
}

// ValidationError 载荷或参数校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("参数校验失败: %s", e.Reason)
	}
	return fmt.Sprintf("参数校验失败: %s %s", e.Field, e.Reason)
}
