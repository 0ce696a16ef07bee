package log

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Fields 上下文信息，每条日志前都会带上
// 模仿logrus，非线程安全，派生时总是返回新对象
type Fields map[string]any

const (
	prefixKey = "__prefix__"
)

// String 前缀在最前，其余按key排序
func (f Fields) String() string {
	keys := lo.Filter(lo.Keys(f), func(k string, _ int) bool {
		return k != prefixKey
	})
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+1)
	if prefix := f.Prefix(); prefix != "" {
		parts = append(parts, "["+prefix+"]")
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%+v", k, f[k]))
	}
	return strings.Join(parts, " ")
}

func (f Fields) prepend(format string) string {
	return f.String() + " " + format
}

func (f Fields) WithPrefix(prefix string) Fields {
	return MergeFields(f, Fields{prefixKey: prefix})
}

// MergeFields 合并，结果不影响原来的数据
func MergeFields(f Fields, fields ...Fields) Fields {
	all := make(Fields, len(f))
	for k, v := range f {
		all[k] = v
	}
	for _, field := range fields {
		for k, v := range field {
			all[k] = v
		}
	}
	return all
}

func (f Fields) WithFields(fields ...Fields) Fields {
	return MergeFields(f, fields...)
}

// WithField 单个字段的快捷方式
func (f Fields) WithField(key string, value any) Fields {
	return MergeFields(f, Fields{key: value})
}

func (f Fields) Prefix() string {
	if prefix, ok := f[prefixKey].(string); ok {
		return prefix
	}
	return ""
}

func (f Fields) Debug(format string, a ...any) {
	current().Debugf(f.prepend(format), a...)
}

func (f Fields) Info(format string, a ...any) {
	current().Infof(f.prepend(format), a...)
}

func (f Fields) Warn(format string, a ...any) {
	current().Warnf(f.prepend(format), a...)
}

func (f Fields) Error(format string, a ...any) {
	current().Errorf(f.prepend(format), a...)
}

func (f Fields) Fatal(format string, a ...any) {
	current().Fatalf(f.prepend(format), a...)
}
