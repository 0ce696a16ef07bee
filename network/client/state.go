package client

// State 客户端会话状态
// Disconnected -> Connecting -> Handshaking -> Listening -> (Errored -> Connecting)
// 只有调用Close或者重连次数耗尽才会进入Closed
type State int32

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Listening
	Errored
	Closed
)

var stateNames = [...]string{"DISCONNECTED", "CONNECTING", "HANDSHAKING", "LISTENING", "ERROR", "CLOSED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}
