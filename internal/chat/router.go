package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"npkchat/internal/blockkit"
)

type ActionFunc func(ctx context.Context, p *ActionPayload) error
type OptionsFunc func(ctx context.Context, p *OptionsPayload) ([]*blockkit.Option, error)
type SubmitFunc func(ctx context.Context, p *ViewSubmission) error
type DotCommandFunc func(ctx context.Context, ev *DotCommandEvent) error
type FileSharedFunc func(ctx context.Context, ev *FileSharedEvent) error

type actionRoute struct {
	prefix  bool
	pattern string
	fn      ActionFunc
}

type optionsRoute struct {
	prefix  bool
	pattern string
	fn      OptionsFunc
}

// Router dispatches transport callbacks to registered handlers keyed by
// action/block id, exact or by prefix (per-campaign dynamic ids). Every
// dispatch runs behind a recover so a broken handler cannot take down the
// shared event loop; failures become a generic message in the originating
// thread.
type Router struct {
	log       *slog.Logger
	transport Transport

	actions     []actionRoute
	options     []optionsRoute
	submits     map[string]SubmitFunc
	dotCommands map[string]DotCommandFunc
	fileShared  FileSharedFunc
}

func NewRouter(log *slog.Logger, transport Transport) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		log:         log,
		transport:   transport,
		submits:     make(map[string]SubmitFunc),
		dotCommands: make(map[string]DotCommandFunc),
	}
}

func (r *Router) Action(actionID string, fn ActionFunc) {
	r.actions = append(r.actions, actionRoute{pattern: actionID, fn: fn})
}

func (r *Router) ActionPrefix(prefix string, fn ActionFunc) {
	r.actions = append(r.actions, actionRoute{prefix: true, pattern: prefix, fn: fn})
}

func (r *Router) Options(actionID string, fn OptionsFunc) {
	r.options = append(r.options, optionsRoute{pattern: actionID, fn: fn})
}

func (r *Router) OptionsPrefix(prefix string, fn OptionsFunc) {
	r.options = append(r.options, optionsRoute{prefix: true, pattern: prefix, fn: fn})
}

func (r *Router) ViewSubmission(callbackID string, fn SubmitFunc) {
	r.submits[callbackID] = fn
}

func (r *Router) DotCommand(command string, fn DotCommandFunc) {
	r.dotCommands[strings.ToLower(strings.TrimSpace(command))] = fn
}

func (r *Router) FileShared(fn FileSharedFunc) {
	r.fileShared = fn
}

func (r *Router) matchAction(actionID string) ActionFunc {
	for _, route := range r.actions {
		if route.prefix && strings.HasPrefix(actionID, route.pattern) {
			return route.fn
		}
		if !route.prefix && route.pattern == actionID {
			return route.fn
		}
	}
	return nil
}

func (r *Router) matchOptions(actionID string) OptionsFunc {
	for _, route := range r.options {
		if route.prefix && strings.HasPrefix(actionID, route.pattern) {
			return route.fn
		}
		if !route.prefix && route.pattern == actionID {
			return route.fn
		}
	}
	return nil
}

// DispatchAction routes a block-action payload. Each action in the payload is
// routed independently so one unmatched id does not drop the rest.
func (r *Router) DispatchAction(ctx context.Context, p *ActionPayload) {
	for _, action := range p.Actions {
		fn := r.matchAction(action.ActionID)
		if fn == nil {
			r.log.Debug("unrouted action", "action_id", action.ActionID)
			continue
		}
		scoped := *p
		scoped.Actions = []Action{action}
		r.invoke(ctx, p.Message, fmt.Sprintf("action %s", action.ActionID), func(ctx context.Context) error {
			return fn(ctx, &scoped)
		})
	}
}

// DispatchOptions routes an autocomplete request and returns its options; an
// unrouted or failed request yields an empty set rather than an error frame.
func (r *Router) DispatchOptions(ctx context.Context, p *OptionsPayload) []*blockkit.Option {
	fn := r.matchOptions(p.ActionID)
	if fn == nil {
		r.log.Debug("unrouted options request", "action_id", p.ActionID)
		return nil
	}
	var opts []*blockkit.Option
	r.invoke(ctx, p.Message, fmt.Sprintf("options %s", p.ActionID), func(ctx context.Context) error {
		var err error
		opts, err = fn(ctx, p)
		return err
	})
	return opts
}

func (r *Router) DispatchViewSubmission(ctx context.Context, callbackID string, p *ViewSubmission) {
	fn := r.submits[callbackID]
	if fn == nil {
		r.log.Debug("unrouted view submission", "callback_id", callbackID)
		return
	}
	r.invoke(ctx, p.Message, fmt.Sprintf("submission %s", callbackID), func(ctx context.Context) error {
		return fn(ctx, p)
	})
}

func (r *Router) DispatchDotCommand(ctx context.Context, ev *DotCommandEvent) {
	fn := r.dotCommands[strings.ToLower(ev.Command)]
	if fn == nil {
		return
	}
	r.invoke(ctx, ev.Message, fmt.Sprintf("dot-command %s", ev.Command), func(ctx context.Context) error {
		return fn(ctx, ev)
	})
}

func (r *Router) DispatchFileShared(ctx context.Context, ev *FileSharedEvent) {
	if r.fileShared == nil {
		return
	}
	r.invoke(ctx, ev.Message, "file shared", func(ctx context.Context) error {
		return r.fileShared(ctx, ev)
	})
}

// invoke runs one handler behind the callback boundary: panics are recovered
// and, like returned errors, logged and converted to a user-facing message.
func (r *Router) invoke(ctx context.Context, origin Message, what string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic", "handler", what, "panic", rec)
			r.reportUnexpected(ctx, origin)
		}
	}()
	if err := fn(ctx); err != nil {
		r.log.Error("handler failed", "handler", what, "err", err)
		r.reportUnexpected(ctx, origin)
	}
}

func (r *Router) reportUnexpected(ctx context.Context, origin Message) {
	if r.transport == nil || origin.Channel == "" {
		return
	}
	if err := r.transport.PostError(ctx, origin, "An unexpected error occurred. Please try again."); err != nil {
		r.log.Error("post error failed", "err", err)
	}
}
