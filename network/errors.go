package network

import "errors"

// 传输层与协议层的错误分类，调用方用errors.Is判断
var (
	// ErrConnectTimeout 连接在超时时间内没有建立
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrTransport 会话中的读写失败，连接不可再用
	ErrTransport = errors.New("transport error")
	// ErrConnectionClosed 对端正常或异常关闭了连接
	ErrConnectionClosed = errors.New("connection closed")
	// ErrDecode 收到的数据无法解析
	ErrDecode = errors.New("decode error")
	// ErrInvalidEnvelope 违反协议约定，比如登录包里没有id
	ErrInvalidEnvelope = errors.New("invalid envelope")
	// ErrReservedIdentifier 试图注册协议保留的标识
	ErrReservedIdentifier = errors.New("reserved identifier")
	// ErrInvalidArgument 构造参数非法
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotConnected 客户端当前没有可用连接
	ErrNotConnected = errors.New("not connected")
	// ErrFailureBudget 连续重连失败次数超过上限
	ErrFailureBudget = errors.New("reconnect failure budget exhausted")
)

// ErrReplyTimeout 请求-应答在限定时间内没有收到回复
var ErrReplyTimeout = errors.New("reply timeout")
