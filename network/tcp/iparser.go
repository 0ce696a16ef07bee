package tcp

import "io"

// IParser 用于从tcp流数据中分离出整段信息，开放给外部自定义
// Read只会被一个协程调用，Pack must goroutine safe
type IParser interface {
	// Read 读取一个完整的帧，返回帧内数据
	Read(r io.Reader) ([]byte, error)
	// Pack 把数据打包成一个完整的帧，由调用方一次写入
	Pack(data []byte) ([]byte, error)
}
