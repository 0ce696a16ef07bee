package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YiuTerran/go-bidi/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeMod struct {
	name    string
	initErr error
	rec     *recorder
}

func (f *fakeMod) Name() string { return f.name }

func (f *fakeMod) OnInit() error {
	f.rec.add("init " + f.name)
	return f.initErr
}

func (f *fakeMod) OnDestroy() { f.rec.add("destroy " + f.name) }

func (f *fakeMod) Run(closeSig chan struct{}) { <-closeSig }

func TestStaticRunOrder(t *testing.T) {
	rec := &recorder{}
	done := make(chan error, 1)
	go func() {
		done <- StaticRun([]module.Module{
			&fakeMod{name: "a", rec: rec},
			&fakeMod{name: "b", rec: rec},
		}, func() { rec.add("before close") })
	}()

	require.Eventually(t, func() bool { return GetModuleByName("b") != nil }, time.Second, 10*time.Millisecond)
	CloseServer()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"init a", "init b", "before close", "destroy b", "destroy a"}, rec.all())
	assert.Nil(t, GetModuleByName("a"))
}

func TestInitFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	err := loadModules([]module.Module{
		&fakeMod{name: "x", rec: rec},
		&fakeMod{name: "y", initErr: boom, rec: rec},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"init x", "init y", "destroy x"}, rec.all())
	assert.Nil(t, GetModuleByName("x"))
}
