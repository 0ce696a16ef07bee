package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeImmutable(t *testing.T) {
	nested := map[string]any{"k": "v"}
	payload := []any{"a", nested}
	e := NewEnvelope("UPDATE", payload...)

	payload[0] = "changed"
	nested["k"] = "changed"
	v, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"k": "v"}, v)
	s, ok := e.GetString(0)
	require.True(t, ok)
	assert.Equal(t, "a", s)

	// 读出来的副本修改也不影响原值
	got := e.Payload()
	got[0] = "x"
	v.(map[string]any)["k"] = "x"
	assert.Equal(t, []any{"a", map[string]any{"k": "v"}}, e.Payload())
}

func TestEnvelopeAccessors(t *testing.T) {
	e := NewEnvelope("Update", "a", 1.5)
	assert.Equal(t, "Update", e.ID())
	assert.True(t, e.Is("UPDATE"))
	assert.True(t, e.Is("update"))
	assert.False(t, e.Is("updates"))
	assert.Equal(t, 2, e.Len())

	_, ok := e.Get(2)
	assert.False(t, ok)
	_, ok = e.Get(-1)
	assert.False(t, ok)
	_, ok = e.GetString(1)
	assert.False(t, ok)

	empty := NewEnvelope("X")
	assert.Equal(t, 0, empty.Len())
	assert.Nil(t, empty.Payload())
	assert.Contains(t, e.String(), "Update")
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(LoginID))
	assert.True(t, IsReserved(PingID))
	assert.True(t, IsReserved("__internal_login__"))
	assert.False(t, IsReserved("PING"))
	assert.False(t, IsReserved(DefaultGroup))
}

func TestIdentity(t *testing.T) {
	i := NewIdentity("", "")
	assert.NotEmpty(t, i.ID)
	assert.Equal(t, DefaultGroup, i.Group)
	assert.NotEqual(t, i.ID, NewIdentity("", "").ID)

	i = NewIdentity("edge-01", "edges")
	assert.Equal(t, "edge-01 (Gr: edges)", i.String())
}

func TestLoginRoundTrip(t *testing.T) {
	e, err := NewLoginEnvelope(Identity{ID: "edge-01"})
	require.NoError(t, err)
	assert.True(t, e.Is(LoginID))
	assert.Equal(t, []any{"edge-01", DefaultGroup}, e.Payload())

	i, err := ParseLogin(e)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "edge-01", Group: DefaultGroup}, i)

	_, err = NewLoginEnvelope(Identity{})
	assert.True(t, errors.Is(err, ErrInvalidEnvelope))
}

func TestParseLoginRejects(t *testing.T) {
	cases := map[string]Envelope{
		"not login":  NewEnvelope("PING", "a", "b"),
		"no payload": NewEnvelope(LoginID),
		"empty id":   NewEnvelope(LoginID, "", "g"),
		"number id":  NewEnvelope(LoginID, 1.0, "g"),
		"no group":   NewEnvelope(LoginID, "a"),
		"bad group":  NewEnvelope(LoginID, "a", true),
	}
	for name, e := range cases {
		_, err := ParseLogin(e)
		assert.Truef(t, errors.Is(err, ErrInvalidEnvelope), "%s: %v", name, err)
	}
}
