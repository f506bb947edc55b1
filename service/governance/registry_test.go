/*
 * @module service/governance/registry_test
 * @description 文档注册服务测试，覆盖编码唯一性与范围规则
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 文档创建 -> 约束验证
 * @rules 编码在范围内唯一；全局与分支范围允许同码共存
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs registry.go
 */

package governance

import (
	"testing"

	"confighub-service/service/models"
	"confighub-service/testutil"

	"github.com/stretchr/testify/assert"
)

func TestCreateDocument(t *testing.T) {
	env := newTestEnv(t)

	doc, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code:      "retention_x",
		Name:      "病历保留政策",
		Kind:      models.DocumentKindPolicy,
		CreatedBy: "alice",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	// 编码入库前被规范化
	assert.Equal(t, "RETENTION_X", doc.Code)
	assert.Equal(t, "", doc.ScopeBranchID)
}

func TestCreateDocumentDuplicateCode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "RETENTION_X", Name: "政策A", Kind: models.DocumentKindPolicy,
	})
	assert.NoError(t, err)

	// 同范围重复，规范化后同码也算重复
	_, err = env.registry.CreateDocument(&CreateDocumentRequest{
		Code: " retention_x ", Name: "政策B", Kind: models.DocumentKindPolicy,
	})
	var dupErr *DuplicateCodeError
	assert.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "RETENTION_X", dupErr.Code)
}

func TestCreateDocumentSameCodeDifferentScope(t *testing.T) {
	env := newTestEnv(t)
	br := env.factory.CreateBranch()

	_, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "VISIT_POLICY", Name: "全局探视政策", Kind: models.DocumentKindPolicy,
	})
	assert.NoError(t, err)

	// 同码不同范围允许共存
	scoped, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "VISIT_POLICY", Name: "分院探视政策", Kind: models.DocumentKindPolicy,
		ScopeBranchID: br.ID,
	})
	assert.NoError(t, err)
	assert.Equal(t, br.ID, scoped.ScopeBranchID)
}

func TestCreateDocumentInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	var validationErr *ValidationError

	_, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "OK_CODE", Name: "", Kind: models.DocumentKindPolicy,
	})
	assert.ErrorAs(t, err, &validationErr)

	_, err = env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "OK_CODE", Name: "名称", Kind: "UNKNOWN_KIND",
	})
	assert.ErrorAs(t, err, &validationErr)

	// 归属分支必须存在且启用
	_, err = env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "OK_CODE", Name: "名称", Kind: models.DocumentKindPolicy,
		ScopeBranchID: "missing-branch",
	})
	assert.ErrorAs(t, err, &validationErr)

	inactive := env.factory.CreateBranch(testutil.WithBranchInactive())
	_, err = env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "OK_CODE", Name: "名称", Kind: models.DocumentKindPolicy,
		ScopeBranchID: inactive.ID,
	})
	assert.ErrorAs(t, err, &validationErr)
}

func TestGetDocumentByCode(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "ADMISSION_SET", Name: "入院套餐", Kind: models.DocumentKindOrderSet,
	})
	assert.NoError(t, err)

	// 查询路径同样规范化编码
	found, err := env.registry.GetDocumentByCode("ａｄｍｉｓｓｉｏｎ_set", "")
	assert.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = env.registry.GetDocumentByCode("NO_SUCH_DOC", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDocuments(t *testing.T) {
	env := newTestEnv(t)

	for _, code := range []string{"DOC_A", "DOC_B", "DOC_C"} {
		_, err := env.registry.CreateDocument(&CreateDocumentRequest{
			Code: code, Name: "文档" + code, Kind: models.DocumentKindPolicy,
		})
		assert.NoError(t, err)
	}
	_, err := env.registry.CreateDocument(&CreateDocumentRequest{
		Code: "SET_A", Name: "套餐A", Kind: models.DocumentKindOrderSet,
	})
	assert.NoError(t, err)

	docs, total, err := env.registry.ListDocuments(1, 10, "", "")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, docs, 4)

	// 按类型过滤
	docs, total, err = env.registry.ListDocuments(1, 10, models.DocumentKindOrderSet, "")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "SET_A", docs[0].Code)

	// 关键字过滤
	_, total, err = env.registry.ListDocuments(1, 10, "", "DOC_")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// 分页
	docs, total, err = env.registry.ListDocuments(2, 3, "", "")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, docs, 1)
}
