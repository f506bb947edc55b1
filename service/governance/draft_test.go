/*
 * @module service/governance/draft_test
 * @description 草稿服务测试，覆盖唯一未完结版本约束与发布范围校验
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 开草稿/编辑 -> 约束验证
 * @rules 同一文档最多一个未完结版本；范围变更须通过分支目录校验
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs draft.go
 */

package governance

import (
	"testing"

	"confighub-service/service/models"
	"confighub-service/testutil"

	"github.com/stretchr/testify/assert"
)

func TestOpenDraft(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: true,
		Notes:              "初稿",
		Actor:              "alice",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.VersionStatusDraft, version.Status)
	assert.Nil(t, version.VersionNumber)
	assert.True(t, version.ApplyToAllBranches)
	assert.Equal(t, "alice", version.CreatedBy)
}

func TestOpenDraftAlreadyOpen(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	first, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
	assert.NoError(t, err)

	// 草稿未完结时再开草稿被拒绝
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
	var openErr *DraftAlreadyOpenError
	assert.ErrorAs(t, err, &openErr)
	assert.Equal(t, first.ID, openErr.VersionID)

	// 进入审核后同样算未完结
	_, err = env.drafts.UpdateDraft(first.ID, &UpdateDraftRequest{Payload: models.JSONB{"body": "正文"}})
	assert.NoError(t, err)
	_, err = env.workflow.Submit(first.ID, "alice")
	assert.NoError(t, err)
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
	assert.ErrorAs(t, err, &openErr)
	assert.Equal(t, models.VersionStatusInReview, openErr.Status)
}

func TestOpenDraftAfterRejection(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	_, err = env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{Payload: models.JSONB{"body": "正文"}, Actor: "alice"})
	assert.NoError(t, err)
	_, err = env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)
	_, err = env.workflow.Reject(version.ID, "bob", "内容不完整")
	assert.NoError(t, err)

	// 驳回是终态，文档可以重新开草稿
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
}

func TestOpenDraftSeedsFromEffective(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	_, err = env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{
		Payload: models.JSONB{"body": "第一版正文"},
		Actor:   "alice",
	})
	assert.NoError(t, err)
	env.mustPublishDraft(t, version.ID, nil)

	// 新草稿以当前生效快照为底稿
	next, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	assert.Equal(t, "第一版正文", next.Payload["body"])
}

func TestOpenDraftRolloutValidation(t *testing.T) {
	env := newTestEnv(t)
	br := env.factory.CreateBranch()
	doc := env.factory.CreateDocument()

	var rolloutErr *RolloutValidationError

	// 全局基线不能附带分支列表
	_, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: true,
		BranchIDs:          []string{br.ID},
	})
	assert.ErrorAs(t, err, &rolloutErr)

	// 覆盖版本分支列表不能为空
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: false})
	assert.ErrorAs(t, err, &rolloutErr)

	// 分支列表不能有重复项
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: false,
		BranchIDs:          []string{br.ID, br.ID},
	})
	assert.ErrorAs(t, err, &rolloutErr)

	// 不存在的分支被拒绝
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: false,
		BranchIDs:          []string{"missing-branch"},
	})
	assert.ErrorAs(t, err, &rolloutErr)

	// 停用分支被拒绝
	inactive := env.factory.CreateBranch(testutil.WithBranchInactive())
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: false,
		BranchIDs:          []string{inactive.ID},
	})
	assert.ErrorAs(t, err, &rolloutErr)
}

func TestOpenDraftBranchScopedDocument(t *testing.T) {
	env := newTestEnv(t)
	br := env.factory.CreateBranch()
	other := env.factory.CreateBranch()
	doc := env.factory.CreateDocument(testutil.WithDocumentScope(br.ID))

	var rolloutErr *RolloutValidationError

	// 分支范围文档不能作为全局基线发布
	_, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
	assert.ErrorAs(t, err, &rolloutErr)

	// 也不能面向其他分支发布
	_, err = env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: false,
		BranchIDs:          []string{other.ID},
	})
	assert.ErrorAs(t, err, &rolloutErr)

	// 面向归属分支发布合法
	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		ApplyToAllBranches: false,
		BranchIDs:          []string{br.ID},
	})
	assert.NoError(t, err)
	assert.False(t, version.ApplyToAllBranches)
}

func TestUpdateDraft(t *testing.T) {
	env := newTestEnv(t)
	br := env.factory.CreateBranch()
	doc := env.factory.CreateDocument()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)

	notes := "更新说明"
	applyToAll := false
	updated, err := env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{
		Payload:            models.JSONB{"body": "新正文"},
		Notes:              &notes,
		ApplyToAllBranches: &applyToAll,
		BranchIDs:          []string{br.ID},
		Actor:              "alice",
	})
	assert.NoError(t, err)
	assert.Equal(t, "新正文", updated.Payload["body"])
	assert.Equal(t, "更新说明", updated.Notes)
	assert.False(t, updated.ApplyToAllBranches)
	assert.Len(t, updated.Branches, 1)
	assert.Equal(t, br.ID, updated.Branches[0].BranchID)
}

func TestUpdateDraftPayloadValidation(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
	assert.NoError(t, err)

	// 政策文档须包含 body 或 rules 字段
	_, err = env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{
		Payload: models.JSONB{"irrelevant": true},
	})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateDraftNotDraft(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true, Actor: "alice"})
	assert.NoError(t, err)
	_, err = env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{Payload: models.JSONB{"body": "正文"}, Actor: "alice"})
	assert.NoError(t, err)
	_, err = env.workflow.Submit(version.ID, "alice")
	assert.NoError(t, err)

	// 进入审核后不可编辑
	_, err = env.drafts.UpdateDraft(version.ID, &UpdateDraftRequest{
		Payload: models.JSONB{"body": "篡改"},
	})
	var notDraftErr *NotDraftError
	assert.ErrorAs(t, err, &notDraftErr)
	assert.Equal(t, models.VersionStatusInReview, notDraftErr.Status)
}

func TestOpenDraftOverrideScopePersisted(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()
	br := env.factory.CreateBranch()

	version, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{
		BranchIDs: []string{br.ID},
		Actor:     "alice",
	})
	assert.NoError(t, err)
	assert.False(t, version.ApplyToAllBranches)

	// 覆盖范围标记须原样落库，不被列默认值覆盖为全局
	var stored models.DocumentVersion
	assert.NoError(t, env.tdb.DB.First(&stored, "id = ?", version.ID).Error)
	assert.False(t, stored.ApplyToAllBranches)
	assert.Equal(t, models.RolloutScopeBranchOverride, stored.RolloutScope())
}

func TestOpenDraftConcurrent(t *testing.T) {
	env := newTestEnv(t)
	doc := env.factory.CreateDocument()

	// 并发开草稿时至多一个成功，其余拿到 DraftAlreadyOpenError
	const workers = 4
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := env.drafts.OpenDraft(doc.ID, &OpenDraftRequest{ApplyToAllBranches: true})
			errs <- err
		}()
	}

	succeeded := 0
	for i := 0; i < workers; i++ {
		if err := <-errs; err == nil {
			succeeded++
		} else {
			var openErr *DraftAlreadyOpenError
			assert.ErrorAs(t, err, &openErr)
		}
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	env.tdb.DB.Model(&models.DocumentVersion{}).
		Where("document_id = ? AND status = ?", doc.ID, models.VersionStatusDraft).
		Count(&count)
	assert.Equal(t, int64(1), count)
}
