/*
 * @module api/controllers/meta_controller
 * @description 元数据控制器，提供枚举值、分支目录与校验规则注册接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 枚举值与模型常量保持一致，管理端下拉框以此为准
 * @dependencies confighub-service/service, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package controllers

import (
	"net/http"

	"confighub-service/service/branch"
	"confighub-service/service/governance"
	"confighub-service/service/models"

	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// MetaController 元数据控制器
type MetaController struct {
	directory *branch.DirectoryService
	validator *governance.PayloadValidator
}

// NewMetaController 创建元数据控制器实例
func NewMetaController(directory *branch.DirectoryService, validator *governance.PayloadValidator) *MetaController {
	return &MetaController{
		directory: directory,
		validator: validator,
	}
}

// @Summary 获取治理枚举值
// @Description 获取文档类型、版本状态、发布范围的枚举值
// @Tags 元数据
// @Produce json
// @Success 200 {object} APIResponse{data=map[string]interface{}}
// @Router /meta/enums [get]
func (c *MetaController) GetEnums(w http.ResponseWriter, r *http.Request) {
	enums := map[string]interface{}{
		"document_kinds":   models.DocumentKinds,
		"version_statuses": models.VersionStatuses,
		"rollout_scopes":   []string{models.RolloutScopeGlobal, models.RolloutScopeBranchOverride},
	}
	render.JSON(w, r, SuccessResponse("获取治理枚举值成功", enums))
}

// @Summary 获取分支目录
// @Description 获取分支机构列表
// @Tags 元数据
// @Produce json
// @Param active_only query bool false "仅启用分支" default(true)
// @Success 200 {object} APIResponse{data=[]models.Branch}
// @Failure 500 {object} APIResponse
// @Router /meta/branches [get]
func (c *MetaController) GetBranches(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		activeOnly = cast.ToBool(raw)
	}
	branches, err := c.directory.ListBranches(activeOnly)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取分支目录失败",
		})
		return
	}
	render.JSON(w, r, SuccessResponse("获取分支目录成功", branches))
}

// registerValidatorRequest 校验规则注册请求
type registerValidatorRequest struct {
	Kind   string `json:"kind"`
	Script string `json:"script"`
}

// @Summary 注册载荷校验规则
// @Description 为指定文档类型注册Go脚本形式的扩展校验规则，注册时即编译
// @Tags 元数据
// @Accept json
// @Produce json
// @Param rule body registerValidatorRequest true "校验规则"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse "脚本编译失败"
// @Router /meta/validators [post]
func (c *MetaController) RegisterValidator(w http.ResponseWriter, r *http.Request) {
	var req registerValidatorRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if err := c.validator.RegisterScript(req.Kind, req.Script); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}
	render.JSON(w, r, SuccessResponse("校验规则注册成功", nil))
}
