/*
 * @module service/audit/sink
 * @description 审计落盘与投递服务，治理操作先写本地流水，再异步投递到Kafka审计总线
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 记录 -> 本地落库 -> Kafka投递 -> 标记已投递；失败记录由定时任务重投
 * @rules 审计记录写库失败只记日志不阻断业务操作；未配置Kafka时降级为仅本地落库
 * @dependencies confighub-service/service/models, github.com/segmentio/kafka-go, github.com/robfig/cron/v3
 * @refs dev_docs/model.md
 */

package audit

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"confighub-service/service/models"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

const maxDeliverTries = 5

// Sink 审计记录服务
type Sink struct {
	db     *gorm.DB
	writer *kafka.Writer
	topic  string
	cron   *cron.Cron
}

// NewSink 创建审计服务实例
// KAFKA_BROKERS 未配置时不创建生产者，仅本地落库
func NewSink(db *gorm.DB) *Sink {
	s := &Sink{
		db:    db,
		topic: getEnv("AUDIT_TOPIC", "confighub.audit"),
		cron:  cron.New(),
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers != "" {
		s.writer = &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        s.topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 100 * time.Millisecond,
		}
	} else {
		log.Println("审计服务未配置KAFKA_BROKERS，审计记录仅本地落库")
	}
	return s
}

// Start 启动失败记录重投定时任务
func (s *Sink) Start() {
	if s.writer == nil {
		return
	}
	if _, err := s.cron.AddFunc("@every 1m", s.flushPending); err != nil {
		log.Printf("审计重投任务注册失败: %v", err)
		return
	}
	s.cron.Start()
}

// Stop 停止定时任务并关闭生产者
func (s *Sink) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			log.Printf("关闭审计Kafka生产者失败: %v", err)
		}
	}
}

// Record 记录一次治理操作
// 落库失败只记日志，不影响调用方的业务结果
func (s *Sink) Record(action, documentID, versionID, actor string, detail map[string]interface{}) {
	record := &models.AuditRecord{
		Action:     action,
		DocumentID: documentID,
		VersionID:  versionID,
		Actor:      actor,
		Detail:     models.JSONB(detail),
		OccurredAt: time.Now(),
	}
	if err := s.db.Create(record).Error; err != nil {
		log.Printf("审计记录落库失败 action=%s document=%s: %v", action, documentID, err)
		return
	}
	if s.writer == nil {
		return
	}
	go s.deliver(record)
}

// ListRecords 审计流水查询
func (s *Sink) ListRecords(page, pageSize int, documentID, action string) ([]models.AuditRecord, int64, error) {
	var records []models.AuditRecord
	var total int64

	query := s.db.Model(&models.AuditRecord{})
	if documentID != "" {
		query = query.Where("document_id = ?", documentID)
	}
	if action != "" {
		query = query.Where("action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("occurred_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Sink) deliver(record *models.AuditRecord) {
	value, err := json.Marshal(record)
	if err != nil {
		log.Printf("审计记录序列化失败 id=%s: %v", record.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.DocumentID),
		Value: value,
	})

	updates := map[string]interface{}{
		"deliver_tries": gorm.Expr("deliver_tries + 1"),
	}
	if err != nil {
		log.Printf("审计记录投递失败 id=%s: %v", record.ID, err)
		updates["last_error"] = err.Error()
	} else {
		now := time.Now()
		updates["delivered"] = true
		updates["delivered_at"] = now
		updates["last_error"] = ""
	}
	if dbErr := s.db.Model(&models.AuditRecord{}).Where("id = ?", record.ID).
		Updates(updates).Error; dbErr != nil {
		log.Printf("审计投递状态更新失败 id=%s: %v", record.ID, dbErr)
	}
}

// flushPending 重投未成功的审计记录
func (s *Sink) flushPending() {
	var pending []models.AuditRecord
	if err := s.db.Where("delivered = ? AND deliver_tries < ?", false, maxDeliverTries).
		Order("occurred_at").
		Limit(100).
		Find(&pending).Error; err != nil {
		log.Printf("审计重投查询失败: %v", err)
		return
	}
	for i := range pending {
		s.deliver(&pending[i])
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
