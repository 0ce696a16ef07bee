package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/network"
)

const (
	// DefaultMaxMsgLen 默认单个消息最大4M
	DefaultMaxMsgLen = 4 << 20
)

// BinaryParser 默认的二进制解析器
// --------------
// | len | data |
// --------------
type BinaryParser struct {
	lenMsgLen    int
	minMsgLen    uint32
	maxMsgLen    uint32
	littleEndian bool
}

// NewDefaultParser 默认使用4位长度标识，大端序
func NewDefaultParser() *BinaryParser {
	return NewBinaryParser(4, false, DefaultMaxMsgLen)
}

// NewBinaryParser lenMsgLen只能是1,2,4；maxMsgLen为0时使用长度标识能表示的最大值
func NewBinaryParser(lenMsgLen int, littleEndian bool, maxMsgLen uint32) *BinaryParser {
	p := new(BinaryParser)
	p.littleEndian = littleEndian
	p.setMsgLen(lenMsgLen, maxMsgLen)
	return p
}

func (p *BinaryParser) setMsgLen(lenMsgLen int, maxMsgLen uint32) {
	if lenMsgLen == 1 || lenMsgLen == 2 || lenMsgLen == 4 {
		p.lenMsgLen = lenMsgLen
	} else {
		log.Warn("invalid lenMsgLen %d, using 4", lenMsgLen)
		p.lenMsgLen = 4
	}
	var max uint32
	switch p.lenMsgLen {
	case 1:
		max = math.MaxUint8
	case 2:
		max = math.MaxUint16
	case 4:
		max = math.MaxUint32
	}
	p.minMsgLen = 1
	p.maxMsgLen = max
	if maxMsgLen > 0 && maxMsgLen < max {
		p.maxMsgLen = maxMsgLen
	}
}

func (p *BinaryParser) MaxMsgLen() uint32 {
	return p.maxMsgLen
}

// Read 从连接中读取一帧，长度不合法时返回ErrDecode
func (p *BinaryParser) Read(r io.Reader) ([]byte, error) {
	var b [4]byte
	bufMsgLen := b[:p.lenMsgLen]

	if _, err := io.ReadFull(r, bufMsgLen); err != nil {
		return nil, err
	}

	var msgLen uint32
	switch p.lenMsgLen {
	case 1:
		msgLen = uint32(bufMsgLen[0])
	case 2:
		if p.littleEndian {
			msgLen = uint32(binary.LittleEndian.Uint16(bufMsgLen))
		} else {
			msgLen = uint32(binary.BigEndian.Uint16(bufMsgLen))
		}
	case 4:
		if p.littleEndian {
			msgLen = binary.LittleEndian.Uint32(bufMsgLen)
		} else {
			msgLen = binary.BigEndian.Uint32(bufMsgLen)
		}
	}

	if msgLen > p.maxMsgLen {
		return nil, fmt.Errorf("%w: message too long (%d > %d)", network.ErrDecode, msgLen, p.maxMsgLen)
	} else if msgLen < p.minMsgLen {
		return nil, fmt.Errorf("%w: message too short", network.ErrDecode)
	}

	msgData := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msgData); err != nil {
		// 读到一半断开
		return nil, err
	}
	return msgData, nil
}

// Pack 加上长度头，goroutine safe
func (p *BinaryParser) Pack(data []byte) ([]byte, error) {
	if uint64(len(data)) > uint64(p.maxMsgLen) {
		return nil, fmt.Errorf("%w: message too long (%d > %d)", network.ErrInvalidEnvelope, len(data), p.maxMsgLen)
	} else if uint32(len(data)) < p.minMsgLen {
		return nil, fmt.Errorf("%w: message too short", network.ErrInvalidEnvelope)
	}
	msgLen := uint32(len(data))
	msg := make([]byte, uint32(p.lenMsgLen)+msgLen)

	switch p.lenMsgLen {
	case 1:
		msg[0] = byte(msgLen)
	case 2:
		if p.littleEndian {
			binary.LittleEndian.PutUint16(msg, uint16(msgLen))
		} else {
			binary.BigEndian.PutUint16(msg, uint16(msgLen))
		}
	case 4:
		if p.littleEndian {
			binary.LittleEndian.PutUint32(msg, msgLen)
		} else {
			binary.BigEndian.PutUint32(msg, msgLen)
		}
	}
	copy(msg[p.lenMsgLen:], data)
	return msg, nil
}
