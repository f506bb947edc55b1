/*
 * @module api/controllers/health_controller
 * @description 健康与就绪检查控制器，就绪检查探测数据库连通性
 * @architecture MVC架构 - 控制器层
 * @documentReference dev_docs/requirements.md
 * @stateFlow HTTP请求处理流程
 * @rules 健康检查只报告进程存活；就绪检查失败返回503，供容器编排摘除流量
 * @dependencies net/http, gorm.io/gorm
 * @refs dev_docs/model.md
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db        *gorm.DB
	startedAt time.Time
}

// NewHealthController 创建健康检查控制器实例
func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{
		db:        db,
		startedAt: time.Now(),
	}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status        string    `json:"status" example:"ok"`
	Timestamp     time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	UptimeSeconds int64     `json:"uptime_seconds" example:"3600"`
	Service       string    `json:"service" example:"confighub-service"`
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务进程存活
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:        "ok",
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Service:       "confighub-service",
	})
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪，探测数据库连通性
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	if sqlDB, err := c.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = "unavailable"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, HealthResponse{
		Status:        status,
		Timestamp:     time.Now(),
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Service:       "confighub-service",
	})
}
