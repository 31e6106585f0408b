// Package pass runs named transformations over a module, in the style of
// an LLVM legacy pass manager: module passes see the whole module,
// function passes are initialised once per module and then run on every
// defined function in order.
package pass

import (
	"context"

	"faultline/internal/ir"
)

// Pass is anything the manager can run.
type Pass interface {
	Name() string
	Description() string
}

// ModulePass transforms a whole module.
type ModulePass interface {
	Pass
	RunOnModule(ctx context.Context, m *ir.Module) (bool, error)
}

// FunctionPass transforms one function at a time.
type FunctionPass interface {
	Pass
	DoInitialization(m *ir.Module) error
	RunOnFunction(f *ir.Func) (bool, error)
	DoFinalization(m *ir.Module) error
}

// modulePassFunc adapts a function to ModulePass.
type modulePassFunc struct {
	name, desc string
	run        func(ctx context.Context, m *ir.Module) (bool, error)
}

func (p modulePassFunc) Name() string        { return p.name }
func (p modulePassFunc) Description() string { return p.desc }

func (p modulePassFunc) RunOnModule(ctx context.Context, m *ir.Module) (bool, error) {
	return p.run(ctx, m)
}

// NewModulePass wraps run as a named module pass.
func NewModulePass(name, desc string, run func(ctx context.Context, m *ir.Module) (bool, error)) ModulePass {
	return modulePassFunc{name: name, desc: desc, run: run}
}
