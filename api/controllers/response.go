/*
 * @module api/controllers/response
 * @description 统一API响应结构与治理错误到响应的映射
 * @architecture 分层架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 服务层业务错误 -> errors.As分类 -> 统一响应格式
 * @rules 业务错误码承载在响应体Status字段；可重试的并发冲突使用409
 * @dependencies confighub-service/service/governance, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package controllers

import (
	"errors"
	"net/http"

	"confighub-service/service/governance"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// SuccessResponse 构造成功响应
func SuccessResponse(msg string, data interface{}) APIResponse {
	return APIResponse{
		Status: http.StatusOK,
		Msg:    msg,
		Data:   data,
	}
}

// renderGovernanceError 将治理域业务错误映射为统一响应
func renderGovernanceError(w http.ResponseWriter, r *http.Request, err error, fallbackMsg string) {
	var (
		validationErr *governance.ValidationError
		rolloutErr    *governance.RolloutValidationError
		referenceErr  *governance.InvalidReferenceError
		duplicateErr  *governance.DuplicateCodeError
		draftOpenErr  *governance.DraftAlreadyOpenError
		notDraftErr   *governance.NotDraftError
		transitionErr *governance.InvalidTransitionError
		concurrentErr *governance.ConcurrentPublishError
	)

	switch {
	case errors.Is(err, governance.ErrNotFound):
		render.JSON(w, r, APIResponse{Status: http.StatusNotFound, Msg: err.Error()})
	case errors.As(err, &validationErr),
		errors.As(err, &rolloutErr),
		errors.As(err, &referenceErr):
		render.JSON(w, r, APIResponse{Status: http.StatusBadRequest, Msg: err.Error()})
	case errors.As(err, &duplicateErr),
		errors.As(err, &draftOpenErr),
		errors.As(err, &notDraftErr),
		errors.As(err, &transitionErr),
		errors.As(err, &concurrentErr):
		render.JSON(w, r, APIResponse{Status: http.StatusConflict, Msg: err.Error()})
	default:
		render.JSON(w, r, APIResponse{Status: http.StatusInternalServerError, Msg: fallbackMsg})
	}
}
