// Package instrument implements the instTrace pass: every indexed,
// value-producing, non-terminator instruction gets a call to the runtime
// tracer that records its value.
package instrument

import (
	"fmt"
	"io"
	"os"
	"slices"

	"fortio.org/safecast"

	"faultline/internal/index"
	"faultline/internal/ir"
	"faultline/internal/layout"
	"faultline/internal/types"
)

const (
	// PassName is the name the pass is registered under.
	PassName = "instTrace"
	// PassDescription is its one-line help text.
	PassDescription = "Traces instruction execution through program: -tout <filename> (-debugTrace)"
	// TracerName is the runtime function the pass calls.
	TracerName = "printInstTracer"
	// DefaultOutput is the trace file name used when none is configured.
	DefaultOutput = "traceOutput"
	// Unlimited disables the runtime trace ceiling.
	Unlimited = -1
)

// Config holds the options of the pass.
type Config struct {
	OutputFilename string // passed to the tracer, NUL-terminated
	MaxTrace       int    // traces recorded after a fault; Unlimited for no ceiling
	Debug          bool   // print per-instruction decisions
	DebugOut       io.Writer
	Indexer        index.Indexer
}

// DefaultConfig returns the defaults of the command-line options.
func DefaultConfig() Config {
	return Config{OutputFilename: DefaultOutput, MaxTrace: Unlimited}
}

// TracePass inserts tracer calls. One instance serves one module at a time.
type TracePass struct {
	cfg Config

	m        *ir.Module
	b        *ir.Builder
	layout   *layout.LayoutEngine
	filename []byte
	maxTrace int32
	tracer   *ir.Func
	inserted int
}

// NewTracePass returns a pass with cfg, filling unset fields with defaults.
func NewTracePass(cfg Config) *TracePass {
	if cfg.OutputFilename == "" {
		cfg.OutputFilename = DefaultOutput
	}
	if cfg.Indexer == nil {
		cfg.Indexer = index.Meta{}
	}
	if cfg.DebugOut == nil {
		cfg.DebugOut = os.Stderr
	}
	return &TracePass{cfg: cfg}
}

// Name implements the pass interface.
func (p *TracePass) Name() string { return PassName }

// Description implements the pass interface.
func (p *TracePass) Description() string { return PassDescription }

// Inserted returns the number of tracer calls added since the last
// DoInitialization.
func (p *TracePass) Inserted() int { return p.inserted }

// DoInitialization binds the pass to m: it captures the output file name
// and resolves the target data layout.
func (p *TracePass) DoInitialization(m *ir.Module) error {
	target, err := layout.Resolve(m.Triple, m.DataLayout)
	if err != nil {
		return &ContractError{Kind: ContractMissingLayout, Err: err}
	}
	maxTrace, err := safecast.Conv[int32](p.cfg.MaxTrace)
	if err != nil {
		return &ContractError{Kind: ContractMaxTraceRange, Err: err}
	}
	p.m = m
	p.b = ir.NewBuilder(m)
	p.layout = layout.New(target, m.Types)
	p.filename = ir.CString(p.cfg.OutputFilename)
	p.maxTrace = maxTrace
	p.tracer = nil
	p.inserted = 0
	return nil
}

// DoFinalization releases the module.
func (p *TracePass) DoFinalization(*ir.Module) error {
	p.m, p.b, p.layout = nil, nil, nil
	return nil
}

// Eligible reports whether in gets traced: it produces a value, carries an
// ID and does not end its block. Phi nodes fall out because the indexer
// never numbers them.
func Eligible(in *ir.Instr, idx index.Indexer, ty *types.Interner) bool {
	if in == nil || ty.IsVoid(in.Type) || !idx.IsIndexed(in) {
		return false
	}
	return in.Parent == nil || in.Parent.Terminator() != in
}

// InsertionPoint returns the instruction the trace code goes in front of:
// past the phi nodes and landing pad for a phi, the next instruction
// otherwise. It returns nil when nothing follows.
func InsertionPoint(in *ir.Instr) *ir.Instr {
	b := in.Parent
	if b == nil {
		return nil
	}
	if in.Op == ir.OpPhi {
		return b.FirstInsertionPoint()
	}
	i := b.IndexOf(in)
	if i < 0 || i+1 >= len(b.Instrs) {
		return nil
	}
	return b.Instrs[i+1]
}

// RunOnFunction instruments f and reports whether it changed.
func (p *TracePass) RunOnFunction(f *ir.Func) (bool, error) {
	if p.m == nil {
		return false, fmt.Errorf("instTrace: RunOnFunction before DoInitialization")
	}
	modified := false
	for _, b := range f.Blocks {
		// Snapshot: the walk must not visit the code it inserts.
		for _, in := range slices.Clone(b.Instrs) {
			p.debug(f, in)
			if !Eligible(in, p.cfg.Indexer, p.m.Types) {
				continue
			}
			if err := p.instrument(f, in); err != nil {
				return modified, err
			}
			modified = true
			p.inserted++
		}
	}
	return modified, nil
}

func (p *TracePass) instrument(f *ir.Func, in *ir.Instr) error {
	fail := func(kind ContractKind, err error) error {
		return &ContractError{Kind: kind, Func: f.Name, Instr: ir.FormatInstr(p.m, in), Err: err}
	}
	at := InsertionPoint(in)
	if at == nil {
		return fail(ContractNoInsertionPoint, nil)
	}
	id, _ := p.cfg.Indexer.IndexOf(in)
	id32, err := safecast.Conv[int32](id)
	if err != nil {
		return fail(ContractIDRange, err)
	}
	bits, err := p.layout.TypeSizeInBits(in.Type)
	if err != nil {
		return fail(ContractUnsized, err)
	}
	size, err := safecast.Conv[int32](layout.ByteSize(bits))
	if err != nil {
		return fail(ContractUnsized, err)
	}
	tracer, err := p.tracerDecl()
	if err != nil {
		return fail(ContractTracerSignature, err)
	}

	bt := p.m.Types.Builtins()
	value := p.b.Alloca("", in.Type)
	fileData := ir.BytesConst(p.m.Types, p.filename)
	file := p.b.Alloca("", fileData.Type)
	opData := ir.BytesConst(p.m.Types, ir.CString(in.Op.String()))
	opcode := p.b.Alloca("", opData.Type)
	call := p.b.Call("", tracer,
		ir.IntConst(bt.I32, int64(id32)),
		ir.ValueOf(opcode),
		ir.IntConst(bt.I32, int64(size)),
		ir.ValueOf(value),
		ir.ValueOf(file),
		ir.IntConst(bt.I32, int64(p.maxTrace)),
	)
	return at.Parent.InsertBefore(at,
		value, p.b.Store(ir.ValueOf(in), ir.ValueOf(value)),
		file, p.b.Store(fileData, ir.ValueOf(file)),
		opcode, p.b.Store(opData, ir.ValueOf(opcode)),
		call,
	)
}

// TracerSig returns void (i32, ptr, i32, ptr, ptr, i32) in ty.
func TracerSig(ty *types.Interner) types.TypeID {
	bt := ty.Builtins()
	return ty.Func(bt.Void, false, bt.I32, bt.Ptr, bt.I32, bt.Ptr, bt.Ptr, bt.I32)
}

func (p *TracePass) tracerDecl() (*ir.Func, error) {
	if p.tracer != nil {
		return p.tracer, nil
	}
	fn, err := p.m.GetOrInsertFunction(TracerName, TracerSig(p.m.Types))
	if err != nil {
		return nil, err
	}
	p.tracer = fn
	return fn, nil
}

func (p *TracePass) debug(f *ir.Func, in *ir.Instr) {
	if !p.cfg.Debug {
		return
	}
	w := p.cfg.DebugOut
	indexed := p.cfg.Indexer.IsIndexed(in)
	fmt.Fprintf(w, "%v instTrace: Found Instruction\n", indexed)
	if !indexed {
		fmt.Fprintf(w, "   Instruction was not indexed\n")
		return
	}
	fmt.Fprintf(w, "   Opcode Name: %s\n   Opcode: %d\n   Parent Function Name: %s\n", in.Op, in.Op, f.Name)
}
