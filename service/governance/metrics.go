/*
 * @module service/governance/metrics
 * @description 治理域Prometheus指标定义
 * @architecture 分层架构 - 可观测性
 * @documentReference dev_docs/requirements.md
 * @stateFlow 指标在进程内累加，由 /metrics 端点暴露
 * @rules 指标注册使用 promauto，重复注册会panic，仅在包初始化时声明
 * @dependencies github.com/prometheus/client_golang
 * @refs dev_docs/model.md
 */

package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confighub_publish_total",
		Help: "发布尝试总数，按结果区分",
	}, []string{"result"}) // success, conflict, error

	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confighub_resolve_total",
		Help: "生效解析请求总数，按命中来源区分",
	}, []string{"source"}) // override, global, none

	resolverCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confighub_resolver_cache_total",
		Help: "解析缓存访问总数",
	}, []string{"result"}) // hit, miss

	transitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confighub_workflow_transition_total",
		Help: "工作流流转总数，按目标状态区分",
	}, []string{"to"})
)
