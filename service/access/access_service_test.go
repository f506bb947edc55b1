/*
 * @module service/access/access_service_test
 * @description 接入管理服务测试，覆盖密钥签发、校验与吊销
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 客户端注册 -> 密钥签发 -> 校验 -> 吊销
 * @rules 明文仅签发时返回一次；吊销与过期密钥校验失败
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs access_service.go
 */

package access

import (
	"testing"
	"time"

	"confighub-service/service/models"
	"confighub-service/testutil"

	"github.com/stretchr/testify/assert"
)

func newAccessEnv(t *testing.T) (*AccessService, *testutil.TestDataFactory) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewAccessService(tdb.DB), testutil.NewTestDataFactory(tdb.DB)
}

func TestCreateClient(t *testing.T) {
	service, factory := newAccessEnv(t)
	br := factory.CreateBranch()

	client := &models.AccessClient{Name: "门诊HIS", BranchID: br.ID}
	assert.NoError(t, service.CreateClient(client))
	assert.NotEmpty(t, client.ID)

	// 名称重复
	assert.Error(t, service.CreateClient(&models.AccessClient{Name: "门诊HIS"}))

	// 归属分支不存在
	assert.Error(t, service.CreateClient(&models.AccessClient{Name: "另一个系统", BranchID: "missing"}))
}

func TestAccessKeyLifecycle(t *testing.T) {
	service, factory := newAccessEnv(t)
	client := factory.CreateAccessClient()

	key, plaintext, err := service.CreateAccessKey(client.ID, "生产密钥", nil)
	assert.NoError(t, err)
	assert.Len(t, plaintext, 64)
	assert.Equal(t, plaintext[:8], key.KeyPrefix)
	// 明文不落库
	assert.NotEqual(t, plaintext, key.KeyValueHash)

	// 校验成功并更新使用统计
	verified, err := service.VerifyAccessKey(plaintext)
	assert.NoError(t, err)
	assert.Equal(t, key.ID, verified.ID)

	var stored models.AccessKey
	assert.NoError(t, factory.DB.First(&stored, "id = ?", key.ID).Error)
	assert.Equal(t, int64(1), stored.UsageCount)
	assert.NotNil(t, stored.LastUsedAt)

	// 错误密钥
	_, err = service.VerifyAccessKey("totally-wrong-key-value")
	assert.Error(t, err)

	// 吊销后校验失败
	assert.NoError(t, service.RevokeAccessKey(key.ID))
	_, err = service.VerifyAccessKey(plaintext)
	assert.Error(t, err)

	// 重复吊销报错
	assert.Error(t, service.RevokeAccessKey(key.ID))
}

func TestExpiredAccessKey(t *testing.T) {
	service, factory := newAccessEnv(t)
	client := factory.CreateAccessClient()

	expired := time.Now().Add(-time.Hour)
	_, plaintext, err := service.CreateAccessKey(client.ID, "过期密钥", &expired)
	assert.NoError(t, err)

	_, err = service.VerifyAccessKey(plaintext)
	assert.Error(t, err)
}

func TestCreateAccessKeyInactiveClient(t *testing.T) {
	service, factory := newAccessEnv(t)
	client := factory.CreateAccessClient()
	factory.DB.Model(client).Update("status", "disabled")

	_, _, err := service.CreateAccessKey(client.ID, "密钥", nil)
	assert.Error(t, err)

	_, _, err = service.CreateAccessKey("missing-client", "密钥", nil)
	assert.Error(t, err)
}
