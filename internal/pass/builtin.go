package pass

import (
	"context"
	"fmt"
	"strconv"

	"faultline/internal/index"
	"faultline/internal/instrument"
	"faultline/internal/ir"
	"faultline/internal/selector"
	"faultline/internal/trace"
)

// Names of the builtin passes.
const (
	GenIndex  = "genindex"
	FISelect  = "fiselect"
	InstTrace = instrument.PassName
	Verify    = "verify"
)

const (
	genIndexDesc = "Assigns !index IDs to every non-phi instruction"
	fiSelectDesc = "Selects fault-injection targets with the configured selector"
	verifyDesc   = "Checks IR well-formedness and index uniqueness"
)

// Env carries what pass factories need. One Env serves one module.
type Env struct {
	Trace     instrument.Config
	Selectors *selector.Registry
	Selector  string // registry name used by fiselect
	Recorder  selector.Recorder
	// OnReport receives the report of every fiselect run.
	OnReport func(*selector.Report)
}

// Builtins returns a registry holding the builtin passes.
func Builtins() *Registry {
	r := NewRegistry()
	for _, info := range []Info{
		{Name: GenIndex, Description: genIndexDesc, New: newGenIndex},
		{Name: FISelect, Description: fiSelectDesc, New: newFISelect},
		{Name: InstTrace, Description: instrument.PassDescription, New: newInstTrace},
		{Name: Verify, Description: verifyDesc, New: newVerify},
	} {
		if err := r.Register(info); err != nil {
			panic(err)
		}
	}
	return r
}

func newGenIndex(*Env) (Pass, error) {
	return NewModulePass(GenIndex, genIndexDesc, func(ctx context.Context, m *ir.Module) (bool, error) {
		n, err := index.Assign(m)
		if err != nil {
			return false, err
		}
		trace.Mark(ctx, trace.ScopePass, "genindex", strconv.Itoa(n)+" ids")
		return n > 0, nil
	}), nil
}

func newFISelect(env *Env) (Pass, error) {
	if env == nil || env.Selectors == nil {
		return nil, fmt.Errorf("no selector registry")
	}
	entry, ok := env.Selectors.Entry(env.Selector)
	if !ok {
		return nil, fmt.Errorf("unknown selector %q", env.Selector)
	}
	return NewModulePass(FISelect, fiSelectDesc, func(ctx context.Context, m *ir.Module) (bool, error) {
		rep, err := selector.Run(ctx, m, entry.Name, entry.Selector, index.Meta{}, env.Recorder)
		if err != nil {
			return false, err
		}
		if env.OnReport != nil {
			env.OnReport(rep)
		}
		return false, nil
	}), nil
}

func newInstTrace(env *Env) (Pass, error) {
	cfg := instrument.DefaultConfig()
	if env != nil {
		cfg = env.Trace
	}
	return instrument.NewTracePass(cfg), nil
}

func newVerify(*Env) (Pass, error) {
	return NewModulePass(Verify, verifyDesc, func(_ context.Context, m *ir.Module) (bool, error) {
		if err := ir.Validate(m); err != nil {
			return false, err
		}
		return false, index.Verify(m)
	}), nil
}
