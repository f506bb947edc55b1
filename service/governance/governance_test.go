/*
 * @module service/governance/governance_test
 * @description 治理服务测试公共设施，基于内存数据库搭建完整服务栈
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 各服务共享同一测试数据库实例，保证约束行为与生产一致
 * @dependencies testing, confighub-service/testutil
 * @refs dev_docs/requirements.md
 */

package governance

import (
	"testing"
	"time"

	"confighub-service/service/audit"
	"confighub-service/service/branch"
	"confighub-service/service/models"
	"confighub-service/service/notify"
	"confighub-service/testutil"
)

// testEnv 测试环境，聚合全部治理服务
type testEnv struct {
	tdb       *testutil.TestDB
	factory   *testutil.TestDataFactory
	registry  *RegistryService
	drafts    *DraftService
	workflow  *WorkflowService
	publish   *PublishService
	resolver  *ResolverService
	items     *ItemService
	validator *PayloadValidator
}

func newTestEnv(t *testing.T) *testEnv {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	directory := branch.NewDirectoryService(tdb.DB)
	auditSink := audit.NewSink(tdb.DB)
	notifier := notify.NewNotifier()
	validator := NewPayloadValidator()
	resolver := NewResolverService(tdb.DB, NewMemoryResolverCache(), time.Minute)

	return &testEnv{
		tdb:       tdb,
		factory:   testutil.NewTestDataFactory(tdb.DB),
		registry:  NewRegistryService(tdb.DB, directory, auditSink),
		drafts:    NewDraftService(tdb.DB, directory, validator, auditSink),
		workflow:  NewWorkflowService(tdb.DB, validator, resolver, notifier, auditSink),
		publish:   NewPublishService(tdb.DB, resolver, notifier, auditSink),
		resolver:  resolver,
		items:     NewItemService(tdb.DB, directory, auditSink),
		validator: validator,
	}
}

// mustPublishDraft 将文档的当前草稿走完提交/审批/发布全流程
func (e *testEnv) mustPublishDraft(t *testing.T, versionID string, effectiveFrom *time.Time) *models.DocumentVersion {
	t.Helper()
	if _, err := e.workflow.Submit(versionID, "author"); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	if _, err := e.workflow.Approve(versionID, "reviewer", "同意"); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	published, err := e.publish.Publish(versionID, &PublishRequest{EffectiveFrom: effectiveFrom, Actor: "publisher"})
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	return published
}
