package codec

import (
	"fmt"
	"strings"

	"github.com/YiuTerran/go-bidi/network"
)

// Default 未配置时使用的编码
func Default() network.Codec {
	return NewProtoCodec()
}

// ByName 根据配置名称获取编码，空字符串返回默认编码
func ByName(name string) (network.Codec, error) {
	switch strings.ToLower(name) {
	case "", "proto", "protobuf":
		return NewProtoCodec(), nil
	case "json":
		return NewJsonCodec(), nil
	}
	return nil, fmt.Errorf("%w: unknown codec %q", network.ErrInvalidArgument, name)
}

func flatten(e network.Envelope) []any {
	values := make([]any, 0, e.Len()+1)
	values = append(values, e.ID())
	return append(values, e.Payload()...)
}

func unflatten(values []any) (network.Envelope, error) {
	if len(values) == 0 {
		return network.Envelope{}, fmt.Errorf("%w: empty envelope", network.ErrDecode)
	}
	id, ok := values[0].(string)
	if !ok {
		return network.Envelope{}, fmt.Errorf("%w: identifier is %T, not string", network.ErrDecode, values[0])
	}
	return network.NewEnvelope(id, values[1:]...), nil
}
