/*
 * @module service/governance/workflow_test
 * @description 版本工作流测试，覆盖状态机流转与审批规则
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 状态流转 -> 约束验证
 * @rules 状态只进不退；审批/驳回执行人不能是版本创建人；驳回必须给出原因
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs workflow.go
 */

package governance

import (
	"testing"

	"confighub-service/service/models"

	"github.com/stretchr/testify/assert"
)

// openDraftWithBody 开草稿并填入可通过校验的载荷
func openDraftWithBody(t *testing.T, env *testEnv, docID, actor string) *models.DocumentVersion {
	t.Helper()
	version, err := env.drafts.OpenDraft(docID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: actor})
	assert.NoError(t, err)
	_, err = env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{
		Payload: models.JSONB{"body": "测试正文"},
		Actor:   actor,
	})
	assert.NoError(t, err)
	return version
}

func TestSubmitDraft(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version := openDraftWithBody(t, env, doc.ID, "alice")

	submitted, err := env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)
	assert.Equal(t, models.VersionStatusInReview, submitted.Status)
	assert.Equal(t, "alice", submitted.SubmittedBy)
	assert.NotNil(t, submitted.SubmittedAt)

	// 重复提交是非法流转
	_, err = env.workflow.Submit(version.ID, "alice")
	var transitionErr *InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.VersionStatusInReview, transitionErr.From)
}

func TestSubmitValidatesPayload(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	// 底稿为空载荷，提交前校验应拦截
	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	_, err = env.workflow.Submit(version.ID, "alice")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestApprove(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version := openDraftWithBody(t, env, doc.ID, "alice")
	_, err := env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)

	approved, err := env.workflow.Approve(version.ID, "bob", "内容无误")
	assert.NoError(t, err)
	assert.Equal(t, models.VersionStatusApproved, approved.Status)
	assert.Equal(t, "bob", approved.ApprovedBy)
	assert.Equal(t, "内容无误", approved.ApprovalNote)
}

func TestApproveFourEyes(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version := openDraftWithBody(t, env, doc.ID, "alice")
	_, err := env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)

	// 创建人不能审批自己的版本
	_, err = env.workflow.Approve(version.ID, "alice", "")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	// 驳回同理
	_, err = env.workflow.Reject(version.ID, "alice", "理由")
	assert.ErrorAs(t, err, &validationErr)
}

func TestReject(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version := openDraftWithBody(t, env, doc.ID, "alice")
	_, err := env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)

	// 驳回原因必填
	_, err = env.workflow.Reject(version.ID, "bob", "")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	rejected, err := env.workflow.Reject(version.ID, "bob", "格式不符合要求")
	assert.NoError(t, err)
	assert.Equal(t, models.VersionStatusRejected, rejected.Status)
	assert.Equal(t, "格式不符合要求", rejected.RejectionReason)

	// 驳回是终态，不能再审批
	_, err = env.workflow.Approve(version.ID, "bob", "")
	var transitionErr *InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestInvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version := openDraftWithBody(t, env, doc.ID, "alice")

	var transitionErr *InvalidTransitionError

	// 草稿不能直接审批、驳回、发布或停用
	_, err := env.workflow.Approve(version.ID, "bob", "")
	assert.ErrorAs(t, err, &transitionErr)
	_, err = env.workflow.Reject(version.ID, "bob", "理由")
	assert.ErrorAs(t, err, &transitionErr)
	_, err = env.publish.Publish(version.ID, &PublishRequest{Actor: "bob"})
	assert.ErrorAs(t, err, &transitionErr)
	_, err = env.workflow.Retire(version.ID, "bob")
	assert.ErrorAs(t, err, &transitionErr)
}

func TestWorkflowNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.workflow.Submit("missing-version", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.workflow.Approve("missing-version", "bob", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetire(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	version := openDraftWithBody(t, env, doc.ID, "alice")
	env.mustPublishDraft(t, version.ID, nil)

	retired, err := env.workflow.Retire(version.ID, "admin")
	assert.NoError(t, err)
	assert.Equal(t, models.VersionStatusRetired, retired.Status)
	assert.Equal(t, "admin", retired.RetiredBy)
	assert.NotNil(t, retired.EffectiveTo)

	// 停用后解析不再返回该版本
	result, err := env.resolver.ResolveEffective(doc.Code, "", nil)
	assert.NoError(t, err)
	assert.Nil(t, result)

	// 已停用版本不能再停用
	_, err = env.workflow.Retire(version.ID, "admin")
	var transitionErr *InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}
