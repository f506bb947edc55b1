/*
 * @module service/branch/directory
 * @description 分支机构目录服务，提供分支存在性/可用性校验与列表查询
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 分支主数据由上游系统写入，本服务承担读取与校验
 * @rules 发布范围校验只认可启用状态的分支
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package branch

import (
	"confighub-service/service/models"

	"gorm.io/gorm"
)

// DirectoryService 分支机构目录服务
type DirectoryService struct {
	db *gorm.DB
}

// NewDirectoryService 创建分支目录服务实例
func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{db: db}
}

// GetBranch 根据ID获取分支
func (s *DirectoryService) GetBranch(id string) (*models.Branch, error) {
	var b models.Branch
	if err := s.db.First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBranches 获取分支列表
func (s *DirectoryService) ListBranches(activeOnly bool) ([]models.Branch, error) {
	var branches []models.Branch
	query := s.db.Model(&models.Branch{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("code").Find(&branches).Error; err != nil {
		return nil, err
	}
	return branches, nil
}

// ValidateActiveBranches 校验一组分支ID全部存在且处于启用状态
// 返回缺失或停用的分支ID列表
func (s *DirectoryService) ValidateActiveBranches(branchIDs []string) ([]string, error) {
	if len(branchIDs) == 0 {
		return nil, nil
	}
	var found []models.Branch
	if err := s.db.Where("id IN ? AND is_active = ?", branchIDs, true).Find(&found).Error; err != nil {
		return nil, err
	}
	valid := make(map[string]bool, len(found))
	for _, b := range found {
		valid[b.ID] = true
	}
	var invalid []string
	for _, id := range branchIDs {
		if !valid[id] {
			invalid = append(invalid, id)
		}
	}
	return invalid, nil
}

// GetOrderableItem 根据ID获取可开立条目
func (s *DirectoryService) GetOrderableItem(id string) (*models.OrderableItem, error) {
	var item models.OrderableItem
	if err := s.db.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
