/*
 * @module service/governance/items_test
 * @description 条目编辑服务测试，覆盖引用校验与软删除语义
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 草稿条目编辑 -> 约束验证
 * @rules 仅草稿可编辑条目；引用须指向启用条目；分支限制须被发布范围满足
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs items.go
 */

package governance

import (
	"testing"

	"confighub-service/service/models"
	"confighub-service/testutil"

	"github.com/stretchr/testify/assert"
)

func newOrderSetDraft(t *testing.T, env *testEnv) (*models.Document, *models.DocumentVersion) {
	t.Helper()
	doc := env.factory.CreateDocument(testutil.WithDocumentKind(models.DocumentKindOrderSet))
	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	return doc, version
}

func TestUpsertItem(t *testing.T) {
	env := newTestEnv(t)
	_, version := newOrderSetDraft(t, env)
	drug := env.factory.CreateOrderableItem()

	item, err := env.items.UpsertItem(version.ID, &UpsertItemRequest{
		ItemRef:   drug.ID,
		SortOrder: 1,
		Quantity:  2,
		Overrides: models.JSONB{"visible": true},
		Actor:     "alice",
	})
	assert.NoError(t, err)
	assert.Equal(t, drug.ID, item.ItemRef)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.IsActive)

	// 数量缺省补1
	other := env.factory.CreateOrderableItem()
	item, err = env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: other.ID, SortOrder: 2})
	assert.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
}

func TestUpsertItemUpdatesExisting(t *testing.T) {
	env := newTestEnv(t)
	_, version := newOrderSetDraft(t, env)
	drug := env.factory.CreateOrderableItem()

	first, err := env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID, SortOrder: 1, Quantity: 1})
	assert.NoError(t, err)

	// 同一引用重复提交按更新处理，不产生新行
	second, err := env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID, SortOrder: 5, Quantity: 3})
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.SortOrder)
	assert.Equal(t, 3, second.Quantity)

	items, err := env.items.ListItems(version.ID, false)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUpsertItemReferenceValidation(t *testing.T) {
	env := newTestEnv(t)
	_, version := newOrderSetDraft(t, env)

	var referenceErr *InvalidReferenceError

	// 空引用
	_, err := env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: ""})
	assert.ErrorAs(t, err, &referenceErr)

	// 不存在的条目
	_, err = env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: "missing-item"})
	assert.ErrorAs(t, err, &referenceErr)

	// 停用条目
	inactive := env.factory.CreateOrderableItem(testutil.WithItemInactive())
	_, err = env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: inactive.ID})
	assert.ErrorAs(t, err, &referenceErr)
}

func TestUpsertItemScopeValidation(t *testing.T) {
	env := newTestEnv(t)
	br := env.factory.CreateBranch()
	other := env.factory.CreateBranch()
	scoped := env.factory.CreateOrderableItem(testutil.WithItemScope(br.ID))

	var referenceErr *InvalidReferenceError

	// 分支限定条目不能进入全局版本
	_, globalVersion := newOrderSetDraft(t, env)
	_, err := env.items.UpsertItem(globalVersion.ID, &UpsertItemRequest{ItemRef: scoped.ID})
	assert.ErrorAs(t, err, &referenceErr)

	// 发布范围不含条目可用分支同样被拒绝
	doc := env.factory.CreateDocument(testutil.WithDocumentKind(models.DocumentKindOrderSet))
	wrongScope, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: false, BranchIDs: []string{other.ID}, Actor: "alice",
	})
	assert.NoError(t, err)
	_, err = env.items.UpsertItem(wrongScope.ID, &UpsertItemRequest{ItemRef: scoped.ID})
	assert.ErrorAs(t, err, &referenceErr)

	// 发布范围与条目可用分支一致时合法
	doc2 := env.factory.CreateDocument(testutil.WithDocumentKind(models.DocumentKindOrderSet))
	rightScope, err := env.drafts.OpenDraft(doc2.ID, &OpenDraftRequest{
		ApplyToAllBranches: false, BranchIDs: []string{br.ID}, Actor: "alice",
	})
	assert.NoError(t, err)
	_, err = env.items.UpsertItem(rightScope.ID, &UpsertItemRequest{ItemRef: scoped.ID})
	assert.NoError(t, err)
}

func TestUpsertItemPolicyRejected(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
	assert.NoError(t, err)

	drug := env.factory.CreateOrderableItem()
	_, err = env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestRemoveItem(t *testing.T) {
	env := newTestEnv(t)
	_, version := newOrderSetDraft(t, env)
	drug := env.factory.CreateOrderableItem()

	_, err := env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID, SortOrder: 1})
	assert.NoError(t, err)

	assert.NoError(t, env.items.RemoveItem(version.ID, drug.ID, "alice"))

	// 软删除：行保留但不计入启用清单
	active, err := env.items.ListItems(version.ID, false)
	assert.NoError(t, err)
	assert.Len(t, active, 0)
	all, err := env.items.ListItems(version.ID, true)
	assert.NoError(t, err)
	assert.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	// 重复删除报未找到
	assert.ErrorIs(t, env.items.RemoveItem(version.ID, drug.ID, "alice"), ErrNotFound)

	// 重新upsert恢复启用
	restored, err := env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID, SortOrder: 1})
	assert.NoError(t, err)
	assert.True(t, restored.IsActive)
}

func TestItemEditOnlyOnDraft(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument(testutil.WithDocumentKind(models.DocumentKindOrderSet))
	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	drug := env.factory.CreateOrderableItem()
	_, err = env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID, SortOrder: 1})
	assert.NoError(t, err)
	_, err = env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)

	var notDraftErr *NotDraftError
	_, err = env.items.UpsertItem(version.ID, &UpsertItemRequest{ItemRef: drug.ID, SortOrder: 2})
	assert.ErrorAs(t, err, &notDraftErr)
	assert.ErrorAs(t, env.items.RemoveItem(version.ID, drug.ID, "alice"), &notDraftErr)

	// 查询不受状态限制
	items, err := env.items.ListItems(version.ID, false)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
}
