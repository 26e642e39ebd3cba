package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError 描述单个字段的验证失败。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 聚合一次请求中所有失败的字段。
// 验证在任何存储写入之前执行，并一次性报告全部失败字段，
// 而不是只报告第一个。
type ValidationError struct {
	Fields []FieldError
}

// Add 追加一条字段错误。
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors 判断是否收集到了任何字段错误。
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// ErrOrNil 在收集到错误时返回自身，否则返回 nil。
// 直接返回 *ValidationError 会得到非 nil 的 error 接口值，必须经由此方法返回。
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail 判断字符串是否为合法的邮箱格式。
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidUsername 判断用户名是否只包含字母、数字和下划线。
func ValidUsername(s string) bool { return usernamePattern.MatchString(s) }
