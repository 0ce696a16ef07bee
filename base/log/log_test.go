package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFieldsString(t *testing.T) {
	f := Fields{"b": 2, "a": "x"}.WithPrefix("client.Session")
	assert.Equal(t, "[client.Session] a=x b=2", f.String())
	assert.Equal(t, "client.Session", f.Prefix())
	assert.Equal(t, "a=1", Fields{"a": 1}.String())
}

func TestFieldsImmutable(t *testing.T) {
	base := Fields{"a": 1}
	derived := base.WithField("b", 2).WithFields(Fields{"a": 3})
	assert.Equal(t, Fields{"a": 1}, base)
	assert.Equal(t, 3, derived["a"])
	assert.Equal(t, 2, derived["b"])
	assert.Equal(t, "", base.Prefix())
}

func TestOutTypeAlias(t *testing.T) {
	assert.Equal(t, ConsoleOut, OutTypeAlias(""))
	assert.Equal(t, ConsoleOut, OutTypeAlias("unknown"))
	assert.Equal(t, ConsoleOut|NormalOut, OutTypeAlias("Console | file"))
	assert.Equal(t, TrackFileOut, OutTypeAlias("track"))
}

func TestChangeLevel(t *testing.T) {
	defer ChangeLogLevel(LevelDebug)
	ChangeLogLevel(LevelWarn)
	assert.False(t, IsDebugEnabled())
	ChangeLogLevel(LevelDebug)
	assert.True(t, IsDebugEnabled())
	Fields{"k": "v"}.Debug("debug %d", 1)
	Info("info %s", "ok")
}

func TestJsonTrack(t *testing.T) {
	assert.NotPanics(t, func() {
		JsonInfo("remote registered", zap.String("id", "a"))
		JsonWarn("remote evicted", zap.String("id", "a"), zap.String("broadcast", "NEWS"))
		JsonWith(zap.String("server", ":9900")).Info("remote removed")
	})
}
