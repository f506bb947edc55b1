/*
 * @module api/middleware/principal
 * @description 操作人提取中间件，从上游网关注入的请求头中解析操作人身份
 * @architecture 分层架构 - 中间件层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 请求进入 -> 读取X-User-Name头 -> 写入请求上下文 -> 控制器读取
 * @rules 认证鉴权由上游网关完成，本服务只消费身份；治理写操作要求身份非空
 * @dependencies net/http, context
 * @refs dev_docs/model.md
 */

package middleware

import (
	"context"
	"net/http"
)

// ContextKey 上下文键类型
type ContextKey string

// PrincipalKey 操作人在请求上下文中的键
const PrincipalKey ContextKey = "principal"

const principalHeader = "X-User-Name"

// Principal 提取操作人身份并写入请求上下文
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userName := r.Header.Get(principalHeader)
		if userName == "" {
			userName = "system"
		}
		ctx := context.WithValue(r.Context(), PrincipalKey, userName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal 从请求上下文读取操作人身份
func GetPrincipal(r *http.Request) string {
	if userName, ok := r.Context().Value(PrincipalKey).(string); ok {
		return userName
	}
	return "system"
}
