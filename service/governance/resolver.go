/*
 * @module service/governance/resolver
 * @description 生效解析服务，按（编码, 分支, 时点）解析当前应执行的版本快照
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 缓存查询 -> 候选版本筛选（生效区间命中）-> 覆盖优先裁决 -> 缓存回填
 * @rules 分支覆盖优先于全局基线；同类候选取 effective_from 最新者，再取版本号更高者；未配置返回空结果
 * @dependencies confighub-service/service/models, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package governance

import (
	"encoding/json"
	"log"
	"time"

	"confighub-service/service/models"

	"gorm.io/gorm"
)

// ResolverService 生效解析服务
type ResolverService struct {
	db    *gorm.DB
	cache ResolverCache
	ttl   time.Duration
}

// NewResolverService 创建生效解析服务实例
func NewResolverService(db *gorm.DB, cache ResolverCache, ttl time.Duration) *ResolverService {
	return &ResolverService{
		db:    db,
		cache: cache,
		ttl:   ttl,
	}
}

// EffectiveResult 解析结果
type EffectiveResult struct {
	DocumentID    string       `json:"document_id"`
	Code          string       `json:"code"`
	Kind          string       `json:"kind"`
	VersionID     string       `json:"version_id"`
	VersionNumber int          `json:"version_number"`
	Source        string       `json:"source"` // override / global
	Payload       models.JSONB `json:"payload"`
	EffectiveFrom *time.Time   `json:"effective_from"`
	EffectiveTo   *time.Time   `json:"effective_to"`
}

// ResolveEffective 解析指定编码在指定分支、指定时点的生效版本
// asOf 为空表示当前时点（走缓存）；未配置时返回 nil, nil
func (s *ResolverService) ResolveEffective(code, branchID string, asOf *time.Time) (*EffectiveResult, error) {
	canonical, err := CanonicalizeCode(code)
	if err != nil {
		return nil, err
	}

	useCache := asOf == nil
	if useCache {
		if cached, ok := s.cache.Get(canonical, branchID); ok {
			resolverCacheTotal.WithLabelValues("hit").Inc()
			if len(cached) == 0 {
				resolveTotal.WithLabelValues("none").Inc()
				return nil, nil
			}
			var result EffectiveResult
			if err := json.Unmarshal(cached, &result); err == nil {
				resolveTotal.WithLabelValues(result.Source).Inc()
				return &result, nil
			}
			log.Printf("解析缓存反序列化失败 code=%s: 忽略缓存", canonical)
		}
		resolverCacheTotal.WithLabelValues("miss").Inc()
	}

	at := time.Now()
	if asOf != nil {
		at = *asOf
	}

	result, err := s.resolve(canonical, branchID, at)
	if err != nil {
		return nil, err
	}

	if useCache {
		if result == nil {
			// 负结果同样缓存，避免穿透
			s.cache.Set(canonical, branchID, []byte{}, s.ttl)
		} else if encoded, merr := json.Marshal(result); merr == nil {
			s.cache.Set(canonical, branchID, encoded, s.ttl)
		}
	}

	if result == nil {
		resolveTotal.WithLabelValues("none").Inc()
	} else {
		resolveTotal.WithLabelValues(result.Source).Inc()
	}
	return result, nil
}

// ListBranchEffective 列出某分支当前全部生效文档的解析结果
func (s *ResolverService) ListBranchEffective(branchID string, kind string) ([]EffectiveResult, error) {
	var docs []models.Document
	query := s.db.Where("scope_branch_id IN ?", []string{"", branchID})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	// 非空范围排前，保证同编码下分支范围文档先于全局文档被采纳
	if err := query.Order("code, scope_branch_id DESC").Find(&docs).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	results := make([]EffectiveResult, 0, len(docs))
	seen := make(map[string]bool)
	for i := range docs {
		doc := &docs[i]
		// 同一编码下分支范围文档优先于全局文档
		if seen[doc.Code] {
			continue
		}
		result, err := s.resolveDocument(doc, branchID, now)
		if err != nil {
			return nil, err
		}
		if result != nil {
			results = append(results, *result)
			seen[doc.Code] = true
		}
	}
	return results, nil
}

// Invalidate 按编码清除解析缓存，发布/停用后调用
func (s *ResolverService) Invalidate(code string) {
	canonical, err := CanonicalizeCode(code)
	if err != nil {
		return
	}
	s.cache.Invalidate(canonical)
}

// resolve 解析编码：分支范围文档优先，其次全局文档
func (s *ResolverService) resolve(code, branchID string, at time.Time) (*EffectiveResult, error) {
	var docs []models.Document
	scopes := []string{""}
	if branchID != "" {
		scopes = append(scopes, branchID)
	}
	if err := s.db.Where("code = ? AND scope_branch_id IN ?", code, scopes).
		Order("scope_branch_id DESC"). // 非空范围排前，分支文档优先
		Find(&docs).Error; err != nil {
		return nil, err
	}
	for i := range docs {
		result, err := s.resolveDocument(&docs[i], branchID, at)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

func (s *ResolverService) resolveDocument(doc *models.Document, branchID string, at time.Time) (*EffectiveResult, error) {
	version, err := findEffectiveVersion(s.db, doc.ID, branchID, at)
	if err != nil || version == nil {
		return nil, err
	}
	source := "global"
	if !version.ApplyToAllBranches {
		source = "override"
	}
	versionNumber := 0
	if version.VersionNumber != nil {
		versionNumber = *version.VersionNumber
	}
	return &EffectiveResult{
		DocumentID:    doc.ID,
		Code:          doc.Code,
		Kind:          doc.Kind,
		VersionID:     version.ID,
		VersionNumber: versionNumber,
		Source:        source,
		Payload:       version.Payload,
		EffectiveFrom: version.EffectiveFrom,
		EffectiveTo:   version.EffectiveTo,
	}, nil
}

// findEffectiveVersion 在单个文档内解析指定时点的生效版本
// 候选为生效区间 [effective_from, effective_to) 命中 at 的已发布（含已停用）版本；
// 覆盖候选（分支集合包含 branchID）优先于全局候选；同类取 effective_from 最新者，再取版本号更高者
func findEffectiveVersion(db *gorm.DB, documentID, branchID string, at time.Time) (*models.DocumentVersion, error) {
	var candidates []models.DocumentVersion
	if err := db.Preload("Branches").
		Where("document_id = ? AND status IN ? AND version_number IS NOT NULL", documentID,
			[]string{models.VersionStatusPublished, models.VersionStatusRetired}).
		Where("effective_from IS NOT NULL AND effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to > ?", at).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	var bestOverride, bestGlobal *models.DocumentVersion
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ApplyToAllBranches {
			bestGlobal = betterCandidate(bestGlobal, candidate)
			continue
		}
		if branchID == "" {
			continue
		}
		for _, vb := range candidate.Branches {
			if vb.BranchID == branchID {
				bestOverride = betterCandidate(bestOverride, candidate)
				break
			}
		}
	}
	if bestOverride != nil {
		return bestOverride, nil
	}
	return bestGlobal, nil
}

// betterCandidate 裁决两个同类候选：effective_from 更晚者胜，持平取版本号更高者
func betterCandidate(current, challenger *models.DocumentVersion) *models.DocumentVersion {
	if current == nil {
		return challenger
	}
	cf, nf := *current.EffectiveFrom, *challenger.EffectiveFrom
	if nf.After(cf) {
		return challenger
	}
	if nf.Equal(cf) && challenger.VersionNumber != nil && current.VersionNumber != nil &&
		*challenger.VersionNumber > *current.VersionNumber {
		return challenger
	}
	return current
}
