package network

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Identity 会话身份，登录时发送一次，连接存续期间不变
type Identity struct {
	ID    string
	Group string
}

// NewIdentity 空id使用随机uuid，空group使用默认分组
func NewIdentity(id, group string) Identity {
	return Identity{
		ID:    lo.Ternary(id == "", uuid.NewString(), id),
		Group: lo.Ternary(group == "", DefaultGroup, group),
	}
}

func (i Identity) String() string {
	return fmt.Sprintf("%s (Gr: %s)", i.ID, i.Group)
}

// NewLoginEnvelope 构造登录包
func NewLoginEnvelope(identity Identity) (Envelope, error) {
	if identity.ID == "" {
		return Envelope{}, fmt.Errorf("%w: empty session id", ErrInvalidEnvelope)
	}
	return NewEnvelope(LoginID, identity.ID, lo.Ternary(identity.Group == "", DefaultGroup, identity.Group)), nil
}

// ParseLogin 先校验标识，再把slot 0/1解析为(id, group)
func ParseLogin(e Envelope) (Identity, error) {
	if !e.Is(LoginID) {
		return Identity{}, fmt.Errorf("%w: expect %s, got %q", ErrInvalidEnvelope, LoginID, e.ID())
	}
	id, ok := e.GetString(0)
	if !ok || id == "" {
		return Identity{}, fmt.Errorf("%w: login without session id", ErrInvalidEnvelope)
	}
	group, ok := e.GetString(1)
	if !ok {
		return Identity{}, fmt.Errorf("%w: login without group", ErrInvalidEnvelope)
	}
	return Identity{ID: id, Group: lo.Ternary(group == "", DefaultGroup, group)}, nil
}
