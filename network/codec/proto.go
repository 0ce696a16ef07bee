package codec

import (
	"fmt"

	"github.com/YiuTerran/go-bidi/network"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoCodec 默认编码，整个Envelope编码为google.protobuf.ListValue
// -------------------------------
// | id | payload0 | payload1 |...
// -------------------------------
// 数值解码后统一为float64，[]byte解码后为base64字符串
type ProtoCodec struct{}

func NewProtoCodec() *ProtoCodec {
	return &ProtoCodec{}
}

func (p *ProtoCodec) Name() string {
	return "proto"
}

func (p *ProtoCodec) Marshal(e network.Envelope) ([]byte, error) {
	lv, err := structpb.NewList(flatten(e))
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.ID(), err)
	}
	return proto.Marshal(lv)
}

func (p *ProtoCodec) Unmarshal(data []byte) (network.Envelope, error) {
	lv := &structpb.ListValue{}
	if err := proto.Unmarshal(data, lv); err != nil {
		return network.Envelope{}, fmt.Errorf("%w: %v", network.ErrDecode, err)
	}
	return unflatten(lv.AsSlice())
}
