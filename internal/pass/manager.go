package pass

import (
	"context"
	"fmt"

	"faultline/internal/ir"
	"faultline/internal/observ"
	"faultline/internal/trace"
)

// Manager runs passes over one module in order.
type Manager struct {
	passes []Pass
	timer  *observ.Timer
}

// NewManager returns a manager for passes. timer may be nil.
func NewManager(timer *observ.Timer, passes ...Pass) *Manager {
	return &Manager{passes: passes, timer: timer}
}

// Result summarises a run.
type Result struct {
	Modified bool
	Changed  []string // passes that reported a change, in run order
}

// Run applies every pass to m. The first failing pass aborts the module.
func (pm *Manager) Run(ctx context.Context, m *ir.Module) (Result, error) {
	var res Result
	tr := trace.FromContext(ctx)
	for _, p := range pm.passes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pctx, span := trace.Start(ctx, trace.ScopePass, p.Name())
		idx := -1
		if pm.timer != nil {
			idx = pm.timer.Begin(p.Name())
		}

		changed, err := pm.runOne(pctx, p, m)

		note := ""
		if changed {
			note = "modified"
		}
		if pm.timer != nil {
			pm.timer.End(idx, note)
		}
		if err != nil {
			span.Fail(tr, err)
			span.End("failed")
			return res, fmt.Errorf("%s: %w", p.Name(), err)
		}
		span.End(note)
		if changed {
			res.Modified = true
			res.Changed = append(res.Changed, p.Name())
		}
	}
	return res, nil
}

func (pm *Manager) runOne(ctx context.Context, p Pass, m *ir.Module) (bool, error) {
	switch p := p.(type) {
	case ModulePass:
		return p.RunOnModule(ctx, m)
	case FunctionPass:
		return runFunctionPass(ctx, p, m)
	default:
		return false, fmt.Errorf("pass %s implements neither ModulePass nor FunctionPass", p.Name())
	}
}

func runFunctionPass(ctx context.Context, p FunctionPass, m *ir.Module) (changed bool, err error) {
	if err := p.DoInitialization(m); err != nil {
		return false, err
	}
	defer func() {
		if ferr := p.DoFinalization(m); err == nil {
			err = ferr
		}
	}()
	for _, f := range m.Definitions() {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		_, span := trace.Start(ctx, trace.ScopeFunc, "func:"+f.Name)
		c, err := p.RunOnFunction(f)
		if err != nil {
			span.End("failed")
			return changed, err
		}
		if c {
			span.End("modified")
		} else {
			span.End("")
		}
		changed = changed || c
	}
	return changed, nil
}
