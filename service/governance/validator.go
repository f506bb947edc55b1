/*
 * @module service/governance/validator
 * @description 版本载荷校验器，内置按文档类型的结构校验，支持注册Go脚本形式的扩展校验规则
 * @architecture 插件化架构 - 业务服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 草稿保存/提交审核时调用，先内置校验再依次执行该类型的脚本规则
 * @rules 脚本必须提供 Run(params) 入口，返回非空字符串视为校验失败原因
 * @dependencies github.com/traefik/yaegi, sync
 * @refs dev_docs/model.md
 */

package governance

import (
	"crypto/sha1"
	"fmt"
	"sync"
	"time"

	"confighub-service/service/models"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// PayloadValidator 载荷校验器
type PayloadValidator struct {
	mu      sync.RWMutex
	scripts map[string][]string // kind -> 脚本列表
	cache   map[string]*compiledRule
}

// compiledRule 编译后的校验规则
type compiledRule struct {
	fn       func(map[string]interface{}) (interface{}, error)
	compiled time.Time
	hash     string
}

// NewPayloadValidator 创建载荷校验器实例
func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{
		scripts: make(map[string][]string),
		cache:   make(map[string]*compiledRule),
	}
}

// RegisterScript 为指定文档类型注册一条脚本校验规则
// 注册时即编译，语法错误立刻暴露
func (v *PayloadValidator) RegisterScript(kind, script string) error {
	if !models.IsValidDocumentKind(kind) {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("不支持的文档类型 %s", kind)}
	}
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.cache[hash]; !ok {
		compiled, err := v.compile(script, hash)
		if err != nil {
			return err
		}
		v.cache[hash] = compiled
	}
	v.scripts[kind] = append(v.scripts[kind], hash)
	return nil
}

// Validate 校验版本载荷
// 先执行内置结构校验，再执行该类型注册的全部脚本规则
func (v *PayloadValidator) Validate(kind string, payload models.JSONB) error {
	if err := v.validateBuiltin(kind, payload); err != nil {
		return err
	}

	v.mu.RLock()
	hashes := v.scripts[kind]
	rules := make([]*compiledRule, 0, len(hashes))
	for _, h := range hashes {
		if rule, ok := v.cache[h]; ok {
			rules = append(rules, rule)
		}
	}
	v.mu.RUnlock()

	params := map[string]interface{}{
		"kind":    kind,
		"payload": map[string]interface{}(payload),
	}
	for _, rule := range rules {
		result, err := rule.fn(params)
		if err != nil {
			return &ValidationError{Field: "payload", Reason: err.Error()}
		}
		if reason, ok := result.(string); ok && reason != "" {
			return &ValidationError{Field: "payload", Reason: reason}
		}
	}
	return nil
}

// validateBuiltin 内置结构校验
func (v *PayloadValidator) validateBuiltin(kind string, payload models.JSONB) error {
	if payload == nil {
		return &ValidationError{Field: "payload", Reason: "不能为空"}
	}
	switch kind {
	case models.DocumentKindPolicy:
		// 政策文档内容自包含，要求至少有正文字段
		if _, ok := payload["body"]; !ok {
			if _, ok := payload["rules"]; !ok {
				return &ValidationError{Field: "payload", Reason: "政策文档须包含 body 或 rules 字段"}
			}
		}
	case models.DocumentKindOrderSet, models.DocumentKindServiceCatalogue:
		// 套餐/目录的主体内容来自条目，载荷只承载标题级信息
		if title, ok := payload["title"].(string); ok && title == "" {
			return &ValidationError{Field: "payload", Reason: "title 不能为空字符串"}
		}
	}
	return nil
}

// compile 编译脚本为可执行函数，调用方持有写锁
func (v *PayloadValidator) compile(script, hash string) (*compiledRule, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本：要求脚本必须实现一个 Run 函数
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"strings"
	"encoding/json"
	"sort"
)

// 必须提供一个 Run 函数作为入口
func Run(params map[string]interface{}) (interface{}, error) {
	var kind interface{}
	if k, exists := params["kind"]; exists {
		kind = k
	}

	var payload interface{}
	if p, exists := params["payload"]; exists {
		payload = p
	}

	// 脚本内容
%s
}
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	fn, err := i.Eval("Run")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Run 函数: %w", err)
	}

	runFunc, ok := fn.Interface().(func(map[string]interface{}) (interface{}, error))
	if !ok {
		return nil, fmt.Errorf("Run 函数签名必须是 func(map[string]interface{}) (interface{}, error)")
	}

	return &compiledRule{
		fn:       runFunc,
		compiled: time.Now(),
		hash:     hash,
	}, nil
}
