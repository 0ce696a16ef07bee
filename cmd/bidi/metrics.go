package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/ginutil"
)

type metricsModule struct {
	addr string
	srv  *http.Server
}

func newMetricsModule(addr string) *metricsModule {
	return &metricsModule{addr: addr}
}

func (m *metricsModule) Name() string {
	return "metrics"
}

func (m *metricsModule) OnInit() error {
	router := ginutil.InitRouter()
	ginutil.EnableMetrics(router, nil)
	m.srv = &http.Server{Addr: m.addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

func (m *metricsModule) Run(closeSig chan struct{}) {
	go func() {
		log.Info("metrics listening on %s", m.addr)
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exit: %v", err)
		}
	}()
	<-closeSig
}

func (m *metricsModule) OnDestroy() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
}
