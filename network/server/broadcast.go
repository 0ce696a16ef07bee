package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/base/structs/set"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BroadcastResult 一次广播的明细
type BroadcastResult struct {
	// Targeted 快照中的Remote数量
	Targeted int
	Delivered int
	Evicted   int
	// Live 移除之后范围内仍然在线的数量
	Live int
	Err  error
}

// Broadcast 发给所有Remote，返回移除失败者之后的在线数
func (s *Server) Broadcast(id string, payload ...any) int {
	return s.BroadcastDetailed("", id, payload...).Live
}

// BroadcastGroup 只发给指定分组，返回该分组移除失败者之后的在线数
func (s *Server) BroadcastGroup(group, id string, payload ...any) int {
	if group == "" {
		group = network.DefaultGroup
	}
	return s.BroadcastDetailed(group, id, payload...).Live
}

// BroadcastDetailed group为空时发给所有人
// 并发写入（同时最多fanout个），全部完成后统一移除写失败的Remote
func (s *Server) BroadcastDetailed(group, id string, payload ...any) BroadcastResult {
	filter := func(r *Remote) bool {
		return group == "" || strings.EqualFold(r.Group(), group)
	}
	targets := s.snapshot(filter)
	e := network.NewEnvelope(id, payload...)

	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(lo.Ternary(s.fanout > 0, s.fanout, -1))
	for i, r := range targets {
		i, r := i, r
		g.Go(func() error {
			if err := r.SendEnvelope(e); err != nil {
				errs[i] = fmt.Errorf("%v: %w", r, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	evict := set.NewSet[*Remote]()
	res := BroadcastResult{Targeted: len(targets)}
	for i, err := range errs {
		switch {
		case err == nil:
			res.Delivered++
		case errors.Is(err, network.ErrTransport), errors.Is(err, network.ErrConnectionClosed):
			evict.AddItem(targets[i])
		}
	}
	res.Err = multierr.Combine(errs...)
	evict.ForEach(func(r *Remote) {
		if s.remove(r) {
			res.Evicted++
			s.fields.Warn("remote %v evicted by broadcast %s", r, id)
			log.JsonWarn("remote evicted", append(remoteFields(r), zap.String("broadcast", id))...)
		}
	})
	res.Live = len(s.snapshot(filter))
	s.observer.Broadcast(id, res.Delivered, res.Targeted-res.Delivered)
	if res.Err != nil {
		s.fields.Debug("broadcast %s: %d/%d delivered: %v", id, res.Delivered, res.Targeted, res.Err)
	}
	return res
}
