/*
 * @module api/middleware/access_key
 * @description 访问密钥校验中间件，保护面向下游系统的解析接口
 * @architecture 分层架构 - 中间件层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 请求进入 -> 读取X-Access-Key头 -> bcrypt校验 -> 客户端身份写入上下文
 * @rules RESOLVER_AUTH_REQUIRED 未开启时放行所有请求，便于内网环境联调
 * @dependencies confighub-service/service/access, github.com/spf13/cast
 * @refs dev_docs/model.md
 */

package middleware

import (
	"context"
	"net/http"
	"os"

	"confighub-service/service/access"

	"github.com/go-chi/render"
	"github.com/spf13/cast"
)

// AccessClientKey 接入客户端在请求上下文中的键
const AccessClientKey ContextKey = "access_client"

const accessKeyHeader = "X-Access-Key"

// AccessKeyAuth 构造访问密钥校验中间件
func AccessKeyAuth(accessService *access.AccessService) func(http.Handler) http.Handler {
	required := cast.ToBool(os.Getenv("RESOLVER_AUTH_REQUIRED"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			keyValue := r.Header.Get(accessKeyHeader)
			if keyValue == "" {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, map[string]interface{}{
					"status": http.StatusUnauthorized,
					"msg":    "缺少访问密钥",
				})
				return
			}

			key, err := accessService.VerifyAccessKey(keyValue)
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, map[string]interface{}{
					"status": http.StatusUnauthorized,
					"msg":    err.Error(),
				})
				return
			}

			ctx := context.WithValue(r.Context(), AccessClientKey, key.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
