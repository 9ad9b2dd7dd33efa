package network

import (
	"context"
	"time"
)

// RequestInfo describes one dispatch.
type RequestInfo struct {
	Method    string
	URL       string
	Attempt   int
	RequestID string
}

// RequestResult describes the outcome of one dispatch.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// RefreshInfo describes one refresher invocation.
type RefreshInfo struct {
	Key       string
	Reason    string // "expired" or "unauthorized"
	Succeeded bool
	Duration  time.Duration
}

// Hooks observes the pipeline.
type Hooks interface {
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRefresh(ctx context.Context, info RefreshInfo)
}

// NoopHooks ignores every event.
type NoopHooks struct{}

func (NoopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context { return ctx }
func (NoopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult)          {}
func (NoopHooks) OnRefresh(context.Context, RefreshInfo)                            {}

type chainHooks []Hooks

// ChainHooks fans events out to every non-nil hook in order.
func ChainHooks(hooks ...Hooks) Hooks {
	var out chainHooks
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	switch len(out) {
	case 0:
		return NoopHooks{}
	case 1:
		return out[0]
	}
	return out
}

func (c chainHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	for _, h := range c {
		ctx = h.OnRequestStart(ctx, info)
	}
	return ctx
}

func (c chainHooks) OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult) {
	for _, h := range c {
		h.OnRequestEnd(ctx, info, result)
	}
}

func (c chainHooks) OnRefresh(ctx context.Context, info RefreshInfo) {
	for _, h := range c {
		h.OnRefresh(ctx, info)
	}
}
