package network

// Codec 负责Envelope与字节之间的转换，must goroutine safe
// 解码失败需要包装ErrDecode
type Codec interface {
	Name() string
	Marshal(e Envelope) ([]byte, error)
	Unmarshal(data []byte) (Envelope, error)
}
