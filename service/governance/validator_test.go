/*
 * @module service/governance/validator_test
 * @description 载荷校验器测试，覆盖内置结构校验与脚本规则
 * @architecture 测试层
 * @documentReference dev_docs/test_plan.md
 * @stateFlow 规则注册 -> 载荷校验 -> 结果验证
 * @rules 脚本注册时即编译；返回非空字符串视为校验失败原因
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs validator.go
 */

package governance

import (
	"testing"

	"confighub-service/service/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateBuiltin(t *testing.T) {
	v := NewPayloadValidator()

	var validationErr *ValidationError

	// 空载荷一律拒绝
	assert.ErrorAs(t, v.Validate(models.DocumentKindPolicy, nil), &validationErr)

	// 政策文档须有 body 或 rules
	assert.ErrorAs(t, v.Validate(models.DocumentKindPolicy, models.JSONB{"other": 1}), &validationErr)
	assert.NoError(t, v.Validate(models.DocumentKindPolicy, models.JSONB{"body": "正文"}))
	assert.NoError(t, v.Validate(models.DocumentKindPolicy, models.JSONB{"rules": []string{"r1"}}))

	// 套餐/目录 title 允许缺省但不允许空字符串
	assert.NoError(t, v.Validate(models.DocumentKindOrderSet, models.JSONB{}))
	assert.NoError(t, v.Validate(models.DocumentKindOrderSet, models.JSONB{"title": "套餐"}))
	assert.ErrorAs(t, v.Validate(models.DocumentKindServiceCatalogue, models.JSONB{"title": ""}), &validationErr)
}

func TestRegisterScript(t *testing.T) {
	v := NewPayloadValidator()

	// 不支持的文档类型
	err := v.RegisterScript("UNKNOWN", `return "", nil`)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	// 语法错误在注册时暴露
	err = v.RegisterScript(models.DocumentKindPolicy, `this is not go`)
	assert.Error(t, err)

	// 合法脚本注册成功
	err = v.RegisterScript(models.DocumentKindPolicy, `
	_ = kind
	_ = payload
	return "", nil
`)
	assert.NoError(t, err)
}

func TestValidateWithScript(t *testing.T) {
	v := NewPayloadValidator()

	// 脚本规则：政策正文不得短于10个字符
	err := v.RegisterScript(models.DocumentKindPolicy, `
	_ = kind
	m := payload.(map[string]interface{})
	if body, ok := m["body"].(string); ok && len([]rune(body)) < 10 {
		return fmt.Sprintf("正文过短：%d 字符", len([]rune(body))), nil
	}
	return "", nil
`)
	assert.NoError(t, err)

	var validationErr *ValidationError
	err = v.Validate(models.DocumentKindPolicy, models.JSONB{"body": "太短"})
	assert.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Reason, "正文过短")

	assert.NoError(t, v.Validate(models.DocumentKindPolicy, models.JSONB{"body": "这是一段足够长的政策正文内容"}))

	// 脚本只对注册的类型生效
	assert.NoError(t, v.Validate(models.DocumentKindOrderSet, models.JSONB{"title": "套餐"}))
}

func TestScriptCompileCache(t *testing.T) {
	v := NewPayloadValidator()
	script := `
	_ = kind
	_ = payload
	return "", nil
`
	// 同一脚本重复注册共享编译结果
	assert.NoError(t, v.RegisterScript(models.DocumentKindPolicy, script))
	assert.NoError(t, v.RegisterScript(models.DocumentKindOrderSet, script))
	assert.Len(t, v.cache, 1)
	assert.Len(t, v.scripts[models.DocumentKindPolicy], 1)
	assert.Len(t, v.scripts[models.DocumentKindOrderSet], 1)
}
