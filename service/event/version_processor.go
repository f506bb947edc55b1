/*
 * @module service/event/version_processor
 * @description 版本表变更处理器，把数据库通知转换为治理SSE事件
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow document_versions 行变更 -> 状态映射为治理事件类型 -> 广播
 * @rules 仅对进入审核链路之后的状态变化产生事件，草稿编辑不推送
 * @dependencies confighub-service/service/models
 * @refs dev_docs/model.md
 */

package event

import (
	"confighub-service/service/models"
)

// statusEventTypes 版本状态到治理事件类型的映射
var statusEventTypes = map[string]string{
	models.VersionStatusInReview:  models.EventTypeVersionSubmitted,
	models.VersionStatusApproved:  models.EventTypeVersionApproved,
	models.VersionStatusRejected:  models.EventTypeVersionRejected,
	models.VersionStatusPublished: models.EventTypeVersionPublished,
	models.VersionStatusRetired:   models.EventTypeVersionRetired,
}

// VersionChangeProcessor 版本表变更处理器
type VersionChangeProcessor struct {
	events *EventService
}

// NewVersionChangeProcessor 创建版本变更处理器实例
func NewVersionChangeProcessor(events *EventService) *VersionChangeProcessor {
	return &VersionChangeProcessor{events: events}
}

// TableName 监听的表名
func (p *VersionChangeProcessor) TableName() string {
	return "document_versions"
}

// ProcessDBChangeEvent 处理版本行变更通知
func (p *VersionChangeProcessor) ProcessDBChangeEvent(changeData map[string]interface{}) error {
	newData, ok := changeData["new_data"].(map[string]interface{})
	if !ok {
		return nil
	}
	status, _ := newData["status"].(string)
	eventType, ok := statusEventTypes[status]
	if !ok {
		return nil
	}

	event := &models.SSEEvent{
		EventType: eventType,
		UserName:  "system",
		Data: map[string]interface{}{
			"version_id":     newData["id"],
			"document_id":    newData["document_id"],
			"status":         status,
			"version_number": newData["version_number"],
		},
	}
	return p.events.BroadcastEvent(event)
}
