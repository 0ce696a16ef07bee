package network

import (
	"fmt"
	"strings"

	"github.com/huandu/go-clone"
)

const (
	// LoginID 登录包标识，payload: [id, group]
	LoginID = "__INTERNAL_LOGIN__"
	// PingID 心跳包标识，payload: [PingAck]
	PingID = "_INTERNAL_PING_"
	// PingAck 心跳包的固定内容
	PingAck = "OK"
	// DefaultGroup 未指定分组时使用
	DefaultGroup = "__INTERNAL_GROUP_DEFAULT__"
)

// IsReserved 协议保留的标识不允许注册handler
func IsReserved(id string) bool {
	return strings.EqualFold(id, LoginID) || strings.EqualFold(id, PingID)
}

// Envelope 是消息的基本单位：标识 + 有序的payload
// 构造后不可变，payload在构造和读取时都会深拷贝
type Envelope struct {
	id      string
	payload []any
}

func NewEnvelope(id string, payload ...any) Envelope {
	var p []any
	if len(payload) > 0 {
		p = clone.Clone(payload).([]any)
	}
	return Envelope{id: id, payload: p}
}

func (e Envelope) ID() string {
	return e.id
}

// Is 标识比较忽略大小写
func (e Envelope) Is(id string) bool {
	return strings.EqualFold(e.id, id)
}

func (e Envelope) Len() int {
	return len(e.payload)
}

// Get 按位置读取payload
func (e Envelope) Get(i int) (any, bool) {
	if i < 0 || i >= len(e.payload) {
		return nil, false
	}
	return clone.Clone(e.payload[i]), true
}

// GetString 读取字符串类型的payload，类型不对返回false
func (e Envelope) GetString(i int) (string, bool) {
	v, ok := e.Get(i)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Payload 返回payload的副本
func (e Envelope) Payload() []any {
	if len(e.payload) == 0 {
		return nil
	}
	return clone.Clone(e.payload).([]any)
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope<%s %v>", e.id, e.payload)
}
