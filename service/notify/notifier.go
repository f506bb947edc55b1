/*
 * @module service/notify/notifier
 * @description 生命周期通知服务，通过MQTT向各分支业务系统广播发布/停用事件
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 治理操作完成 -> 构造通知消息 -> 按文档编码主题发布
 * @rules 通知是尽力而为的旁路动作，发送失败只记日志不回滚业务
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs dev_docs/model.md
 */

package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Notifier 生命周期通知服务
type Notifier struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
}

// LifecycleMessage 通知消息体
type LifecycleMessage struct {
	Event         string    `json:"event"` // published / retired
	DocumentID    string    `json:"document_id"`
	Code          string    `json:"code"`
	Kind          string    `json:"kind"`
	VersionID     string    `json:"version_id"`
	VersionNumber int       `json:"version_number"`
	Scope         string    `json:"scope"` // GLOBAL / BRANCH_OVERRIDE
	BranchIDs     []string  `json:"branch_ids,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewNotifier 创建通知服务实例
// MQTT_BROKER 未配置时通知仅记日志
func NewNotifier() *Notifier {
	n := &Notifier{
		topicPrefix: getEnv("NOTIFY_TOPIC_PREFIX", "confighub/lifecycle"),
	}

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		log.Println("通知服务未配置MQTT_BROKER，生命周期通知仅记日志")
		return n
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("confighub-service-" + uuid.New().String()[:8]).
		SetUsername(os.Getenv("MQTT_USERNAME")).
		SetPassword(os.Getenv("MQTT_PASSWORD")).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("MQTT连接失败，生命周期通知仅记日志: %v", token.Error())
		return n
	}
	n.client = client
	n.enabled = true
	return n
}

// PublishLifecycle 广播一条生命周期通知
// 主题格式: <prefix>/<kind>/<code>
func (n *Notifier) PublishLifecycle(msg *LifecycleMessage) {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("通知消息序列化失败 code=%s: %v", msg.Code, err)
		return
	}
	topic := fmt.Sprintf("%s/%s/%s", n.topicPrefix, msg.Kind, msg.Code)
	if !n.enabled {
		log.Printf("生命周期通知（未投递）topic=%s event=%s version=%d", topic, msg.Event, msg.VersionNumber)
		return
	}
	token := n.client.Publish(topic, 1, false, payload)
	go func() {
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			log.Printf("生命周期通知发布失败 topic=%s: %v", topic, token.Error())
		}
	}()
}

// Close 断开MQTT连接
func (n *Notifier) Close() {
	if n.enabled {
		n.client.Disconnect(250)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
