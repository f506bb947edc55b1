/*
 * @module api/controllers/audit_controller
 * @description 审计查询控制器，提供治理动作审计记录的查询API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 审计记录只读，不提供修改与删除接口
 * @dependencies confighub-service/service/audit, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package controllers

import (
	"net/http"

	"confighub-service/service/audit"

	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// AuditController 审计查询控制器
type AuditController struct {
	sink *audit.Sink
}

// NewAuditController 创建审计查询控制器实例
func NewAuditController(sink *audit.Sink) *AuditController {
	return &AuditController{sink: sink}
}

// GetAuditRecords 获取审计记录列表
// @Summary 获取审计记录列表
// @Description 分页获取治理动作审计记录，支持按文档与动作过滤
// @Tags 审计
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Param document_id query string false "文档ID过滤"
// @Param action query string false "动作类型过滤"
// @Success 200 {object} PaginatedResponse{data=[]models.AuditRecord} "获取成功"
// @Router /audit [get]
func (c *AuditController) GetAuditRecords(w http.ResponseWriter, r *http.Request) {
	page := cast.ToInt(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size := cast.ToInt(r.URL.Query().Get("size"))
	if size <= 0 || size > 100 {
		size = 10
	}

	records, total, err := c.sink.ListRecords(page, size,
		r.URL.Query().Get("document_id"), r.URL.Query().Get("action"))
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取审计记录失败",
		})
		return
	}
	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取审计记录成功",
		Data:   records,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}
