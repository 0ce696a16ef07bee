package codec

import (
	"encoding/json"
	"fmt"

	"github.com/YiuTerran/go-bidi/network"
)

// JsonCodec 编码为json数组，第一个元素是标识
// 方便调试抓包，数值解码后为float64
type JsonCodec struct{}

func NewJsonCodec() *JsonCodec {
	return &JsonCodec{}
}

func (j *JsonCodec) Name() string {
	return "json"
}

func (j *JsonCodec) Marshal(e network.Envelope) ([]byte, error) {
	data, err := json.Marshal(flatten(e))
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.ID(), err)
	}
	return data, nil
}

func (j *JsonCodec) Unmarshal(data []byte) (network.Envelope, error) {
	var values []any
	if err := json.Unmarshal(data, &values); err != nil {
		return network.Envelope{}, fmt.Errorf("%w: %v", network.ErrDecode, err)
	}
	return unflatten(values)
}
