/*
 * @module service/governance/canonical
 * @description 文档编码规范化，统一全角/半角与大小写后校验编码格式
 * @architecture 分层架构 - 领域服务层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 入参编码 -> 宽度折叠 -> 大写化 -> 格式校验
 * @rules 规范化后编码仅允许 A-Z 0-9 下划线，长度3-64；所有读写路径共用同一规范化
 * @dependencies golang.org/x/text/width
 * @refs dev_docs/model.md
 */

package governance

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_]{3,64}$`)

// CanonicalizeCode 将输入编码规范化为存储形态
// 全角字符折叠为半角，去除首尾空白，统一大写；不合法时返回 ValidationError
func CanonicalizeCode(code string) (string, error) {
	canonical := width.Narrow.String(strings.TrimSpace(code))
	canonical = strings.ToUpper(canonical)
	if !codePattern.MatchString(canonical) {
		return "", &ValidationError{Field: "code", Reason: "编码须为3-64位大写字母、数字或下划线"}
	}
	return canonical, nil
}
