package network

// Observer 统计和监控的钩子，所有方法必须goroutine safe且不能阻塞
// side 取值 "client" 或 "server"
type Observer interface {
	// Matched 收到的Envelope找到了handler
	Matched(side, id string)
	// Dropped 没有对应的handler，消息被丢弃
	Dropped(side, id string)
	// Panicked handler发生panic
	Panicked(side, id string)
	// Connected 客户端握手成功或服务端登记了一个Remote
	Connected(side string)
	// Disconnected 客户端连接断开或服务端移除了一个Remote
	Disconnected(side string)
	// Reconnecting 客户端开始一次重连
	Reconnecting()
	// Broadcast 一次广播的投递数和失败数
	Broadcast(id string, delivered, failed int)
}

// NopObserver 什么都不做，嵌入后可以只实现关心的方法
type NopObserver struct{}

func (NopObserver) Matched(string, string)     {}
func (NopObserver) Dropped(string, string)     {}
func (NopObserver) Panicked(string, string)    {}
func (NopObserver) Connected(string)           {}
func (NopObserver) Disconnected(string)        {}
func (NopObserver) Reconnecting()              {}
func (NopObserver) Broadcast(string, int, int) {}

const (
	SideClient = "client"
	SideServer = "server"
)
