/*
 * @module api/controllers/document_controller
 * @description 治理文档控制器，提供文档注册、版本历史、草稿编辑与条目编辑的API接口
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式；操作人身份取自请求上下文
 * @dependencies confighub-service/service, github.com/go-chi/chi/v5
 * @refs dev_docs/model.md
 */

package controllers

import (
	"net/http"

	"confighub-service/api/middleware"
	"confighub-service/service/governance"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// DocumentController 治理文档控制器
type DocumentController struct {
	registry *governance.RegistryService
	drafts   *governance.DraftService
	items    *governance.ItemService
}

// NewDocumentController 创建治理文档控制器实例
func NewDocumentController(registry *governance.RegistryService, drafts *governance.DraftService, items *governance.ItemService) *DocumentController {
	return &DocumentController{
		registry: registry,
		drafts:   drafts,
		items:    items,
	}
}

// === 文档注册 ===

// CreateDocument 创建治理文档
// @Summary 创建治理文档
// @Description 注册新的治理文档，编码在其范围内唯一
// @Tags 治理文档
// @Accept json
// @Produce json
// @Param document body governance.CreateDocumentRequest true "文档信息"
// @Success 201 {object} APIResponse{data=models.Document} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 409 {object} APIResponse "编码重复"
// @Router /documents [post]
func (c *DocumentController) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req governance.CreateDocumentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	req.CreatedBy = middleware.GetPrincipal(r)

	doc, err := c.registry.CreateDocument(&req)
	if err != nil {
		renderGovernanceError(w, r, err, "创建治理文档失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建治理文档成功",
		Data:   doc,
	})
}

// GetDocuments 获取文档列表
// @Summary 获取文档列表
// @Description 分页获取治理文档列表
// @Tags 治理文档
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Param kind query string false "文档类型"
// @Param keyword query string false "编码或名称关键字"
// @Success 200 {object} PaginatedResponse{data=[]models.Document} "获取成功"
// @Router /documents [get]
func (c *DocumentController) GetDocuments(w http.ResponseWriter, r *http.Request) {
	page := cast.ToInt(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size := cast.ToInt(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	docs, total, err := c.registry.ListDocuments(page, size, r.URL.Query().Get("kind"), r.URL.Query().Get("keyword"))
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取文档列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取文档列表成功",
		Data:   docs,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetDocument 获取文档详情
// @Summary 获取文档详情
// @Description 根据ID获取治理文档
// @Tags 治理文档
// @Produce json
// @Param id path string true "文档ID"
// @Success 200 {object} APIResponse{data=models.Document} "获取成功"
// @Failure 404 {object} APIResponse "文档不存在"
// @Router /documents/{id} [get]
func (c *DocumentController) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := c.registry.GetDocument(chi.URLParam(r, "id"))
	if err != nil {
		renderGovernanceError(w, r, err, "获取文档失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取文档成功",
		Data:   doc,
	})
}

// GetDocumentByCode 根据编码获取文档
// @Summary 根据编码获取文档
// @Description 按规范化编码与范围查找文档
// @Tags 治理文档
// @Produce json
// @Param code path string true "文档编码"
// @Param scope_branch_id query string false "范围分支ID，空表示全局"
// @Success 200 {object} APIResponse{data=models.Document} "获取成功"
// @Failure 404 {object} APIResponse "文档不存在"
// @Router /documents/by-code/{code} [get]
func (c *DocumentController) GetDocumentByCode(w http.ResponseWriter, r *http.Request) {
	doc, err := c.registry.GetDocumentByCode(chi.URLParam(r, "code"), r.URL.Query().Get("scope_branch_id"))
	if err != nil {
		renderGovernanceError(w, r, err, "获取文档失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取文档成功",
		Data:   doc,
	})
}

// GetVersions 获取文档版本历史
// @Summary 获取文档版本历史
// @Description 按创建时间倒序返回文档全部版本
// @Tags 治理文档
// @Produce json
// @Param id path string true "文档ID"
// @Success 200 {object} APIResponse{data=[]models.DocumentVersion} "获取成功"
// @Failure 404 {object} APIResponse "文档不存在"
// @Router /documents/{id}/versions [get]
func (c *DocumentController) GetVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := c.registry.ListVersions(chi.URLParam(r, "id"))
	if err != nil {
		renderGovernanceError(w, r, err, "获取版本历史失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取版本历史成功",
		Data:   versions,
	})
}

// GetVersion 获取版本详情
// @Summary 获取版本详情
// @Description 根据版本ID获取版本，含发布范围与条目
// @Tags 治理文档
// @Produce json
// @Param id path string true "版本ID"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "获取成功"
// @Failure 404 {object} APIResponse "版本不存在"
// @Router /versions/{id} [get]
func (c *DocumentController) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := c.registry.GetVersion(chi.URLParam(r, "id"))
	if err != nil {
		renderGovernanceError(w, r, err, "获取版本失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取版本成功",
		Data:   version,
	})
}

// === 草稿管理 ===

// OpenDraft 开启草稿
// @Summary 开启草稿
// @Description 为文档开启新草稿，载荷以当前生效快照为底稿
// @Tags 草稿
// @Accept json
// @Produce json
// @Param id path string true "文档ID"
// @Param draft body governance.OpenDraftRequest true "草稿信息"
// @Success 201 {object} APIResponse{data=models.DocumentVersion} "开启成功"
// @Failure 409 {object} APIResponse "已存在未完结版本"
// @Router /documents/{id}/drafts [post]
func (c *DocumentController) OpenDraft(w http.ResponseWriter, r *http.Request) {
	var req governance.OpenDraftRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	req.Actor = middleware.GetPrincipal(r)

	version, err := c.drafts.OpenDraft(chi.URLParam(r, "id"), &req)
	if err != nil {
		renderGovernanceError(w, r, err, "开启草稿失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "开启草稿成功",
		Data:   version,
	})
}

// UpdateDraft 编辑草稿
// @Summary 编辑草稿
// @Description 更新草稿的载荷、备注或发布范围
// @Tags 草稿
// @Accept json
// @Produce json
// @Param id path string true "版本ID"
// @Param draft body governance.UpdateDraftRequest true "草稿变更"
// @Success 200 {object} APIResponse{data=models.DocumentVersion} "更新成功"
// @Failure 409 {object} APIResponse "非草稿状态"
// @Router /versions/{id} [put]
func (c *DocumentController) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req governance.UpdateDraftRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	req.Actor = middleware.GetPrincipal(r)

	version, err := c.drafts.UpdateDraft(chi.URLParam(r, "id"), &req)
	if err != nil {
		renderGovernanceError(w, r, err, "编辑草稿失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "编辑草稿成功",
		Data:   version,
	})
}

// === 条目编辑 ===

// UpsertItem 新增或更新条目
// @Summary 新增或更新条目
// @Description 在草稿中按条目引用upsert一行条目
// @Tags 条目
// @Accept json
// @Produce json
// @Param id path string true "版本ID"
// @Param item body governance.UpsertItemRequest true "条目信息"
// @Success 200 {object} APIResponse{data=models.VersionItem} "操作成功"
// @Failure 400 {object} APIResponse "条目引用无效"
// @Failure 409 {object} APIResponse "非草稿状态"
// @Router /versions/{id}/items [post]
func (c *DocumentController) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var req governance.UpsertItemRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	req.Actor = middleware.GetPrincipal(r)

	item, err := c.items.UpsertItem(chi.URLParam(r, "id"), &req)
	if err != nil {
		renderGovernanceError(w, r, err, "条目操作失败")
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "条目操作成功",
		Data:   item,
	})
}

// RemoveItem 移除条目
// @Summary 移除条目
// @Description 软删除草稿中的条目，发布快照不再包含该条目
// @Tags 条目
// @Produce json
// @Param id path string true "版本ID"
// @Param item_ref path string true "条目引用"
// @Success 200 {object} APIResponse "移除成功"
// @Failure 404 {object} APIResponse "条目不存在"
// @Router /versions/{id}/items/{item_ref} [delete]
func (c *DocumentController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	err := c.items.RemoveItem(chi.URLParam(r, "id"), chi.URLParam(r, "item_ref"), middleware.GetPrincipal(r))
	if err != nil {
		renderGovernanceError(w, r, err, "移除条目失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "移除条目成功",
	})
}

// GetItems 获取版本条目列表
// @Summary 获取版本条目列表
// @Description 按排序返回版本条目
// @Tags 条目
// @Produce json
// @Param id path string true "版本ID"
// @Param include_inactive query bool false "包含已下线条目"
// @Success 200 {object} APIResponse{data=[]models.VersionItem} "获取成功"
// @Router /versions/{id}/items [get]
func (c *DocumentController) GetItems(w http.ResponseWriter, r *http.Request) {
	includeInactive := cast.ToBool(r.URL.Query().Get("include_inactive"))
	items, err := c.items.ListItems(chi.URLParam(r, "id"), includeInactive)
	if err != nil {
		renderGovernanceError(w, r, err, "获取条目列表失败")
		return
	}
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取条目列表成功",
		Data:   items,
	})
}
