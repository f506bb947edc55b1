/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"confighub-service/service/database"
	"confighub-service/service/models"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

var testDBCounter int64

// NewTestDB 创建测试数据库
// 使用与生产相同的迁移流程，保证部分唯一索引等约束在测试中同样生效；
// 共享缓存内存库保证连接池内各连接看到同一份数据
func NewTestDB() *TestDB {
	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// sqlite写并发有限，单连接串行化避免测试中的busy错误
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"version_items",
		"version_branches",
		"document_versions",
		"documents",
		"orderable_items",
		"branches",
		"access_keys",
		"access_clients",
		"audit_records",
		"sse_events",
		"sse_connections",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// BranchOption 分支机构选项函数类型
type BranchOption func(*models.Branch)

// CreateBranch 创建测试分支机构
func (f *TestDataFactory) CreateBranch(opts ...BranchOption) *models.Branch {
	branch := &models.Branch{
		Code:     "BR_" + generateSuffix(),
		Name:     "测试分院",
		City:     "上海",
		IsActive: true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(branch)
	}

	if err := f.DB.Create(branch).Error; err != nil {
		panic(fmt.Sprintf("failed to create test branch: %v", err))
	}

	return branch
}

// WithBranchInactive 停用分支
func WithBranchInactive() BranchOption {
	return func(b *models.Branch) {
		b.IsActive = false
	}
}

// DocumentOption 治理文档选项函数类型
type DocumentOption func(*models.Document)

// CreateDocument 创建测试治理文档
func (f *TestDataFactory) CreateDocument(opts ...DocumentOption) *models.Document {
	document := &models.Document{
		Code:        "DOC_" + generateSuffix(),
		Name:        "测试治理文档",
		Kind:        models.DocumentKindPolicy,
		Description: "这是一个测试治理文档",
		CreatedBy:   "test",
	}

	// 应用选项
	for _, opt := range opts {
		opt(document)
	}

	if err := f.DB.Create(document).Error; err != nil {
		panic(fmt.Sprintf("failed to create test document: %v", err))
	}

	return document
}

// WithDocumentKind 指定文档类型
func WithDocumentKind(kind string) DocumentOption {
	return func(d *models.Document) {
		d.Kind = kind
	}
}

// WithDocumentCode 指定文档编码
func WithDocumentCode(code string) DocumentOption {
	return func(d *models.Document) {
		d.Code = code
	}
}

// WithDocumentScope 指定文档归属分支
func WithDocumentScope(branchID string) DocumentOption {
	return func(d *models.Document) {
		d.ScopeBranchID = branchID
	}
}

// VersionOption 文档版本选项函数类型
type VersionOption func(*models.DocumentVersion)

// CreateVersion 创建测试文档版本
func (f *TestDataFactory) CreateVersion(documentID string, opts ...VersionOption) *models.DocumentVersion {
	version := &models.DocumentVersion{
		DocumentID:         documentID,
		Status:             models.VersionStatusDraft,
		Payload:            models.JSONB{"body": "测试内容"},
		ApplyToAllBranches: true,
		CreatedBy:          "test",
	}

	// 应用选项
	for _, opt := range opts {
		opt(version)
	}

	if err := f.DB.Create(version).Error; err != nil {
		panic(fmt.Sprintf("failed to create test version: %v", err))
	}

	return version
}

// WithVersionStatus 指定版本状态
func WithVersionStatus(status string) VersionOption {
	return func(v *models.DocumentVersion) {
		v.Status = status
	}
}

// WithVersionNumber 指定版本号
func WithVersionNumber(number int) VersionOption {
	return func(v *models.DocumentVersion) {
		v.VersionNumber = &number
	}
}

// WithVersionPayload 指定版本载荷
func WithVersionPayload(payload models.JSONB) VersionOption {
	return func(v *models.DocumentVersion) {
		v.Payload = payload
	}
}

// WithVersionEffective 指定生效区间
func WithVersionEffective(from time.Time, to *time.Time) VersionOption {
	return func(v *models.DocumentVersion) {
		v.EffectiveFrom = &from
		v.EffectiveTo = to
	}
}

// WithVersionBranchScope 指定为分支覆盖版本
func WithVersionBranchScope() VersionOption {
	return func(v *models.DocumentVersion) {
		v.ApplyToAllBranches = false
	}
}

// WithVersionCreatedBy 指定版本创建人
func WithVersionCreatedBy(actor string) VersionOption {
	return func(v *models.DocumentVersion) {
		v.CreatedBy = actor
	}
}

// CreateVersionBranch 创建版本发布范围关联
func (f *TestDataFactory) CreateVersionBranch(versionID, branchID string) *models.VersionBranch {
	vb := &models.VersionBranch{
		VersionID: versionID,
		BranchID:  branchID,
	}
	if err := f.DB.Create(vb).Error; err != nil {
		panic(fmt.Sprintf("failed to create test version branch: %v", err))
	}
	return vb
}

// OrderableItemOption 可开立条目选项函数类型
type OrderableItemOption func(*models.OrderableItem)

// CreateOrderableItem 创建测试可开立条目
func (f *TestDataFactory) CreateOrderableItem(opts ...OrderableItemOption) *models.OrderableItem {
	item := &models.OrderableItem{
		Code:     "ITEM_" + generateSuffix(),
		Name:     "测试药品",
		ItemType: "DRUG",
		IsActive: true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(item)
	}

	if err := f.DB.Create(item).Error; err != nil {
		panic(fmt.Sprintf("failed to create test orderable item: %v", err))
	}

	return item
}

// WithItemScope 指定条目可用分支
func WithItemScope(branchID string) OrderableItemOption {
	return func(o *models.OrderableItem) {
		o.OrderableScope = branchID
	}
}

// WithItemInactive 停用条目
func WithItemInactive() OrderableItemOption {
	return func(o *models.OrderableItem) {
		o.IsActive = false
	}
}

// CreateAccessClient 创建测试接入客户端
func (f *TestDataFactory) CreateAccessClient() *models.AccessClient {
	client := &models.AccessClient{
		Name:   "测试客户端_" + generateSuffix(),
		Status: "active",
	}
	if err := f.DB.Create(client).Error; err != nil {
		panic(fmt.Sprintf("failed to create test access client: %v", err))
	}
	return client
}

// 辅助函数
var suffixCounter int64

func generateSuffix() string {
	return fmt.Sprintf("%d_%d", time.Now().UnixNano()%100000, atomic.AddInt64(&suffixCounter, 1))
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
