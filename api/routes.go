/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package api

import (
	"confighub-service/api/controllers"
	apimiddleware "confighub-service/api/middleware"
	"confighub-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(apimiddleware.Principal)

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User-Name", "X-Access-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController(service.DB)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// SSE事件订阅
	eventController := controllers.NewEventController(service.GlobalEventService)
	r.Get("/sse/{user_name}", eventController.HandleSSE)

	// 事件管理
	r.Route("/events", func(r chi.Router) {
		r.Get("/history", eventController.GetEventHistoryList)
		r.Get("/connections", eventController.GetSSEConnectionList)
	})

	// 元数据管理
	r.Route("/meta", func(r chi.Router) {
		metaController := controllers.NewMetaController(service.GlobalDirectoryService, service.GlobalValidator)
		r.Get("/enums", metaController.GetEnums)
		r.Get("/branches", metaController.GetBranches)
		r.Post("/validators", metaController.RegisterValidator)
	})

	// 配置文档管理
	documentController := controllers.NewDocumentController(
		service.GlobalRegistryService, service.GlobalDraftService, service.GlobalItemService)
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", documentController.CreateDocument)
		r.Get("/", documentController.GetDocuments)
		r.Get("/by-code/{code}", documentController.GetDocumentByCode)
		r.Get("/{id}", documentController.GetDocument)
		r.Get("/{id}/versions", documentController.GetVersions)
		r.Post("/{id}/drafts", documentController.OpenDraft)
	})

	// 版本编辑与流转
	workflowController := controllers.NewWorkflowController(
		service.GlobalWorkflowService, service.GlobalPublishService)
	r.Route("/versions", func(r chi.Router) {
		r.Get("/{id}", documentController.GetVersion)
		r.Put("/{id}", documentController.UpdateDraft)

		// 条目子编辑器
		r.Get("/{id}/items", documentController.GetItems)
		r.Post("/{id}/items", documentController.UpsertItem)
		r.Delete("/{id}/items/{item_ref}", documentController.RemoveItem)

		// 审批工作流
		r.Post("/{id}/submit", workflowController.Submit)
		r.Post("/{id}/approve", workflowController.Approve)
		r.Post("/{id}/reject", workflowController.Reject)
		r.Post("/{id}/publish", workflowController.Publish)
		r.Post("/{id}/retire", workflowController.Retire)
	})

	// 生效解析（面向下游系统，可选密钥保护）
	resolverController := controllers.NewResolverController(service.GlobalResolverService)
	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.AccessKeyAuth(service.GlobalAccessService))
		r.Get("/resolve", resolverController.ResolveEffective)
		r.Get("/branches/{id}/effective", resolverController.GetBranchEffective)
	})

	// 接入管理
	r.Route("/access", func(r chi.Router) {
		accessController := controllers.NewAccessController(service.GlobalAccessService)
		r.Post("/clients", accessController.CreateClient)
		r.Get("/clients", accessController.GetClients)
		r.Post("/clients/{id}/keys", accessController.CreateAccessKey)
		r.Get("/clients/{id}/keys", accessController.ListAccessKeys)
		r.Delete("/keys/{key_id}", accessController.RevokeAccessKey)
	})

	// 审计查询
	auditController := controllers.NewAuditController(service.GlobalAuditSink)
	r.Get("/audit", auditController.GetAuditRecords)
}
