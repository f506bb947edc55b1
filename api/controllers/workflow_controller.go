/*
 * @module api/controllers/workflow_controller
 * @description 版本工作流控制器，提供提交、审批、驳回、发布、停用的API接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 发布遇并发冲突在控制器层重试一次，再次冲突原样返回409
 * @dependencies confighub-service/service, github.com/go-chi/chi/v5
 * @refs dev_docs/model.md
 */

package controllers

import (
	"errors"
	"net/http"

	"confighub-service/api/middleware"
	"confighub-service/service/governance"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// WorkflowController 版本工作流控制器
type WorkflowController struct {
	workflow *governance.WorkflowService
	publish  *governance.PublishService
}

// NewWorkflowController 创建工作流控制器实例
func NewWorkflowController(workflow *governance.WorkflowService, publish *governance.PublishService) *WorkflowController {
	return &WorkflowController{
		workflow: workflow,
		publish:  publish,
	}
}

// reviewRequest 审批/驳回请求体
type reviewRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

// Submit 提交审核
// @Summary 提交审核
// @Description 将草稿提交进入审核
// @Tags 工作流
// @Produce json
// @Param id path string true "版本ID"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "提交成功"
// @Failure 409 {object} APIResponse "非法流转"
// @Router /versions/{id}/submit [post]
func (c *WorkflowController) Submit(w http.ResponseWriter, r *http.Request) {
	version, err := c.workflow.Submit(chi.URLParam(r, "id"), middleware.GetPrincipal(r))
	if err != nil {
		renderGovernanceError(w, r, err, "提交审核失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "提交审核成功",
		Data:   version,
	})
}

// Approve 审批通过
// @Summary 审批通过
// @Description 审核通过，进入待发布状态；审批人不能是版本创建人
// @Tags 工作流
// @Accept json
// @Produce json
// @Param id path string true "版本ID"
// @Param review body reviewRequest false "审批意见"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "审批成功"
// @Failure 409 {object} APIResponse "非法流转"
// @Router /versions/{id}/approve [post]
func (c *WorkflowController) Approve(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	_ = render.DecodeJSON(r.Body, &req)

	version, err := c.workflow.Approve(chi.URLParam(r, "id"), middleware.GetPrincipal(r), req.Note)
	if err != nil {
		renderGovernanceError(w, r, err, "审批失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "审批成功",
		Data:   version,
	})
}

// Reject 审批驳回
// @Summary 审批驳回
// @Description 驳回审核中的版本，版本进入终态，文档可重新开草稿
// @Tags 工作流
// @Accept json
// @Produce json
// @Param id path string true "版本ID"
// @Param review body reviewRequest true "驳回原因"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "驳回成功"
// @Failure 409 {object} APIResponse "非法流转"
// @Router /versions/{id}/reject [post]
func (c *WorkflowController) Reject(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	_ = render.DecodeJSON(r.Body, &req)

	version, err := c.workflow.Reject(chi.URLParam(r, "id"), middleware.GetPrincipal(r), req.Reason)
	if err != nil {
		renderGovernanceError(w, r, err, "驳回失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "驳回成功",
		Data:   version,
	})
}

// Publish 发布版本
// @Summary 发布版本
// @Description 发布已批准版本，分配版本号并冻结快照；支持指定未来生效时点
// @Tags 工作流
// @Accept json
// @Produce json
// @Param id path string true "版本ID"
// @Param publish body governance.PublishRequest false "发布参数"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "发布成功"
// @Failure 409 {object} APIResponse "并发发布冲突"
// @Router /versions/{id}/publish [post]
func (c *WorkflowController) Publish(w http.ResponseWriter, r *http.Request) {
	var req governance.PublishRequest
	_ = render.DecodeJSON(r.Body, &req)
	req.Actor = middleware.GetPrincipal(r)
	versionID := chi.URLParam(r, "id")

	version, err := c.publish.Publish(versionID, &req)
	if err != nil {
		// 版本号被并发占用时重试一次，仍冲突则交给调用方
		var concurrentErr *governance.ConcurrentPublishError
		if errors.As(err, &concurrentErr) {
			version, err = c.publish.Publish(versionID, &req)
		}
	}
	if err != nil {
		renderGovernanceError(w, r, err, "发布失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "发布成功",
		Data:   version,
	})
}

// Retire 停用版本
// @Summary 停用版本
// @Description 手工停用已发布版本，解析立即切换到其余候选
// @Tags 工作流
// @Produce json
// @Param id path string true "版本ID"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "停用成功"
// @Failure 409 {object} APIResponse "非法流转"
// @Router /versions/{id}/retire [post]
func (c *WorkflowController) Retire(w http.ResponseWriter, r *http.Request) {
	version, err := c.workflow.Retire(chi.URLParam(r, "id"), middleware.GetPrincipal(r))
	if err != nil {
		renderGovernanceError(w, r, err, "停用失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "停用成功",
		Data:   version,
	})
}
