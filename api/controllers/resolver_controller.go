/*
 * @module api/controllers/resolver_controller
 * @description 生效解析控制器，面向下游系统提供当前应执行配置的查询接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 未配置的查询返回200与空结果，由调用方决定兜底行为
 * @dependencies confighub-service/service, github.com/go-chi/chi/v5
 * @refs dev_docs/model.md
 */

package controllers

import (
	"net/http"
	"time"

	"confighub-service/service/governance"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ResolverController 生效解析控制器
type ResolverController struct {
	resolver *governance.ResolverService
}

// NewResolverController 创建生效解析控制器实例
func NewResolverController(resolver *governance.ResolverService) *ResolverController {
	return &ResolverController{resolver: resolver}
}

// ResolveEffective 解析生效配置
// @Summary 解析生效配置
// @Description 按编码与分支解析当前（或指定时点）应执行的版本快照，未配置返回空结果
// @Tags 生效解析
// @Produce json
// @Param code query string true "文档编码"
// @Param branch_id query string false "分支ID"
// @Param as_of query string false "解析时点(RFC3339)，默认当前"
// @Success 200 {object} APIResponse{data=governance.EffectiveResult} "解析成功"
// @Failure 400 {object} APIResponse "参数错误"
// @Router /resolve [get]
func (c *ResolverController) ResolveEffective(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "code 参数不能为空",
		})
		return
	}

	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			render.JSON(w, r, APIResponse{
				Status: http.StatusBadRequest,
				Msg:    "as_of 须为RFC3339格式",
			})
			return
		}
		asOf = &parsed
	}

	result, err := c.resolver.ResolveEffective(code, r.URL.Query().Get("branch_id"), asOf)
	if err != nil {
		renderGovernanceError(w, r, err, "解析失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "解析成功",
		Data:   result,
	})
}

// GetBranchEffective 获取分支生效清单
// @Summary 获取分支生效清单
// @Description 列出某分支当前全部生效文档的解析结果
// @Tags 生效解析
// @Produce json
// @Param id path string true "分支ID"
// @Param kind query string false "文档类型过滤"
// @Success 200 {object} APIResponse{data=[]governance.EffectiveResult} "获取成功"
// @Router /branches/{id}/effective [get]
func (c *ResolverController) GetBranchEffective(w http.ResponseWriter, r *http.Request) {
	results, err := c.resolver.ListBranchEffective(chi.URLParam(r, "id"), r.URL.Query().Get("kind"))
	if err != nil {
		renderGovernanceError(w, r, err, "获取生效清单失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取生效清单成功",
		Data:   results,
	})
}
