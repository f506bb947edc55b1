/*
 * @module api/controllers/access_controller
 * @description 接入管理控制器，提供下游客户端注册与访问密钥签发API
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求 -> 业务逻辑处理 -> 响应返回
 * @rules 密钥明文仅在签发响应中出现一次，后续任何接口不再返回
 * @dependencies confighub-service/service/access, github.com/go-chi/chi/v5
 * @refs dev_docs/model.md
 */

package controllers

import (
	"net/http"
	"time"

	"confighub-service/service/access"
	"confighub-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// AccessController 接入管理控制器
type AccessController struct {
	accessService *access.AccessService
}

// NewAccessController 创建接入管理控制器实例
func NewAccessController(accessService *access.AccessService) *AccessController {
	return &AccessController{accessService: accessService}
}

// createClientRequest 客户端注册请求
type createClientRequest struct {
	Name          string `json:"name"`
	BranchID      string `json:"branch_id"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
}

// CreateClient 注册接入客户端
// @Summary 注册接入客户端
// @Description 注册调用解析接口的下游系统客户端
// @Tags 接入管理
// @Accept json
// @Produce json
// @Param client body createClientRequest true "客户端信息"
// @Success 200 {object} APIResponse{data=models.AccessClient} "注册成功"
// @Failure 400 {object} APIResponse "参数错误"
// @Router /access/clients [post]
func (c *AccessController) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if req.Name == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "客户端名称不能为空",
		})
		return
	}

	client := &models.AccessClient{
		Name:          req.Name,
		BranchID:      req.BranchID,
		ContactPerson: req.ContactPerson,
		ContactPhone:  req.ContactPhone,
	}
	if err := c.accessService.CreateClient(client); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}
	render.JSON(w, r, SuccessResponse("接入客户端注册成功", client))
}

// GetClients 获取接入客户端列表
// @Summary 获取接入客户端列表
// @Description 分页获取接入客户端列表
// @Tags 接入管理
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页大小" default(10)
// @Success 200 {object} PaginatedResponse{data=[]models.AccessClient} "获取成功"
// @Router /access/clients [get]
func (c *AccessController) GetClients(w http.ResponseWriter, r *http.Request) {
	page := cast.ToInt(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size := cast.ToInt(r.URL.Query().Get("size"))
	if size <= 0 || size > 100 {
		size = 10
	}

	clients, total, err := c.accessService.GetClients(page, size)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取接入客户端列表失败",
		})
		return
	}
	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取接入客户端列表成功",
		Data:   clients,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// createAccessKeyRequest 密钥签发请求
type createAccessKeyRequest struct {
	Name      string `json:"name"`
	ExpiresAt string `json:"expires_at"`
}

// accessKeyIssueResponse 密钥签发响应，明文仅此一次
type accessKeyIssueResponse struct {
	Key      *models.AccessKey `json:"key"`
	KeyValue string            `json:"key_value"`
}

// CreateAccessKey 签发访问密钥
// @Summary 签发访问密钥
// @Description 为客户端签发新的访问密钥，明文仅在本次响应返回
// @Tags 接入管理
// @Accept json
// @Produce json
// @Param id path string true "客户端ID"
// @Param key body createAccessKeyRequest true "密钥信息"
// @Success 200 {object} APIResponse{data=accessKeyIssueResponse} "签发成功"
// @Failure 400 {object} APIResponse "参数错误"
// @Router /access/clients/{id}/keys [post]
func (c *AccessController) CreateAccessKey(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	var req createAccessKeyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			render.JSON(w, r, APIResponse{
				Status: http.StatusBadRequest,
				Msg:    "expires_at 须为RFC3339格式",
			})
			return
		}
		expiresAt = &parsed
	}

	key, keyValue, err := c.accessService.CreateAccessKey(clientID, req.Name, expiresAt)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}
	render.JSON(w, r, SuccessResponse("访问密钥签发成功，请妥善保存明文", accessKeyIssueResponse{
		Key:      key,
		KeyValue: keyValue,
	}))
}

// ListAccessKeys 获取客户端密钥列表
// @Summary 获取客户端密钥列表
// @Description 获取客户端全部密钥（不含明文与哈希）
// @Tags 接入管理
// @Produce json
// @Param id path string true "客户端ID"
// @Success 200 {object} APIResponse{data=[]models.AccessKey} "获取成功"
// @Router /access/clients/{id}/keys [get]
func (c *AccessController) ListAccessKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := c.accessService.ListAccessKeys(chi.URLParam(r, "id"))
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取密钥列表失败",
		})
		return
	}
	render.JSON(w, r, SuccessResponse("获取密钥列表成功", keys))
}

// RevokeAccessKey 吊销访问密钥
// @Summary 吊销访问密钥
// @Description 吊销指定密钥，吊销后立即失效
// @Tags 接入管理
// @Produce json
// @Param key_id path string true "密钥ID"
// @Success 200 {object} APIResponse "吊销成功"
// @Failure 400 {object} APIResponse "密钥不存在或已吊销"
// @Router /access/keys/{key_id} [delete]
func (c *AccessController) RevokeAccessKey(w http.ResponseWriter, r *http.Request) {
	if err := c.accessService.RevokeAccessKey(chi.URLParam(r, "key_id")); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}
	render.JSON(w, r, SuccessResponse("访问密钥已吊销", nil))
}
