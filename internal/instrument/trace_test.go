package instrument

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/irtext"
	"faultline/internal/layout"
	"faultline/internal/testkit"
)

const straightLine = `target triple = "x86_64-pc-linux-gnu"

define i32 @f(i32 %a, i32 %b, ptr %p) {
entry:
  %x = add i32 %a, %b, !index 0
  %y = mul i32 %x, 2, !index 1
  %c = icmp slt i32 %y, 10, !index 2
  store i32 %y, ptr %p, !index 3
  %u = sub i32 %y, 1
  br i1 %c, label %t, label %e, !index 4

t:
  ret i32 %x

e:
  ret i32 %u
}
`

func parse(t *testing.T, src string) *ir.Module {
	t.Helper()
	bag := diag.NewBag(10)
	m, err := irtext.Parse("t.ll", []byte(src), diag.BagReporter{Bag: bag})
	if err != nil {
		for _, d := range bag.Items() {
			t.Logf("%s", d.Error())
		}
		t.Fatalf("Parse: %v", err)
	}
	return m
}

// tracked captures the eligible instructions before the pass runs.
func tracked(m *ir.Module, f *ir.Func) []testkit.Tracked {
	var out []testkit.Tracked
	cfg := NewTracePass(DefaultConfig()).cfg
	for _, in := range f.Instructions() {
		if Eligible(in, cfg.Indexer, m.Types) {
			out = append(out, testkit.Tracked{Instr: in, ID: in.Meta.Index})
		}
	}
	return out
}

func run(t *testing.T, m *ir.Module, cfg Config) (*TracePass, bool) {
	t.Helper()
	p := NewTracePass(cfg)
	if err := p.DoInitialization(m); err != nil {
		t.Fatalf("DoInitialization: %v", err)
	}
	modified := false
	for _, f := range m.Definitions() {
		changed, err := p.RunOnFunction(f)
		if err != nil {
			t.Fatalf("RunOnFunction(@%s): %v", f.Name, err)
		}
		modified = modified || changed
	}
	if err := p.DoFinalization(m); err != nil {
		t.Fatal(err)
	}
	return p, modified
}

func TestThreeEligibleInstructions(t *testing.T) {
	m := parse(t, straightLine)
	f, _ := m.Func("f")
	want := tracked(m, f)
	if len(want) != 3 {
		t.Fatalf("eligible = %d, want 3", len(want))
	}

	p, modified := run(t, m, DefaultConfig())
	if !modified || p.Inserted() != 3 {
		t.Fatalf("modified=%v inserted=%d", modified, p.Inserted())
	}
	if err := testkit.CheckTraceInvariants(f, TracerName, want); err != nil {
		t.Fatal(err)
	}
	if err := ir.Validate(m); err != nil {
		t.Fatalf("instrumented module is invalid: %v", err)
	}

	calls := testkit.TracerCalls(f, TracerName)
	for i, c := range calls {
		args := c.Call.Args
		if args[0].Const.Int != int64(i) {
			t.Errorf("call %d traces id %d", i, args[0].Const.Int)
		}
		if args[5].Const.Int != Unlimited {
			t.Errorf("call %d max trace = %d", i, args[5].Const.Int)
		}
		if got := m.Types.String(args[4].Instr.Alloca.Elem); got != "[12 x i8]" {
			t.Errorf("filename slot type %s", got)
		}
	}
	// add and mul are i32, icmp is i1.
	for i, size := range []int64{4, 4, 1} {
		if got := calls[i].Call.Args[2].Const.Int; got != size {
			t.Errorf("call %d size = %d, want %d", i, got, size)
		}
	}

	text := m.String()
	if strings.Count(text, "declare void @printInstTracer(i32, ptr, i32, ptr, ptr, i32)") != 1 {
		t.Fatalf("tracer must be declared once:\n%s", text)
	}
	for _, lit := range []string{`c"traceOutput\00"`, `c"add\00"`, `c"icmp\00"`} {
		if !strings.Contains(text, lit) {
			t.Errorf("missing literal %s", lit)
		}
	}
	if _, err := irtext.Parse("again.ll", []byte(text), diag.NopReporter{}); err != nil {
		t.Fatalf("instrumented text does not parse: %v", err)
	}
}

func TestSecondRunRetracesOriginalsOnly(t *testing.T) {
	m := parse(t, straightLine)
	f, _ := m.Func("f")
	want := tracked(m, f)
	run(t, m, DefaultConfig())

	p, modified := run(t, m, DefaultConfig())
	if !modified || p.Inserted() != len(want) {
		t.Fatalf("second run: modified=%v inserted=%d, want %d", modified, p.Inserted(), len(want))
	}
	if err := ir.Validate(m); err != nil {
		t.Fatal(err)
	}

	ids := map[int64]int{}
	for _, w := range want {
		ids[w.ID] = 0
	}
	idx := NewTracePass(DefaultConfig()).cfg.Indexer
	calls := testkit.TracerCalls(f, TracerName)
	if len(calls) != 2*len(want) {
		t.Fatalf("tracer calls = %d, want %d", len(calls), 2*len(want))
	}
	for _, c := range calls {
		id := c.Call.Args[0].Const.Int
		if _, ok := ids[id]; !ok {
			t.Errorf("tracer call carries id %d, not an original id", id)
		}
		ids[id]++
		if Eligible(c, idx, m.Types) {
			t.Errorf("tracer call with id %d is itself eligible", id)
		}
	}
	for id, n := range ids {
		if n != 2 {
			t.Errorf("id %d traced %d times, want 2", id, n)
		}
	}
	for _, in := range f.Instructions() {
		if in.Op != ir.OpStore || in.Store.Value.Kind != ir.OperandInstr {
			continue
		}
		if name, ok := in.Store.Value.Instr.Call.CalledName(); ok && name == TracerName {
			t.Fatal("a tracer call result was traced")
		}
	}
}

func TestPhiTracedAfterLastPhi(t *testing.T) {
	src := `target triple = "x86_64-pc-linux-gnu"

define i64 @g(i1 %c) {
entry:
  br i1 %c, label %a, label %b, !index 1

a:
  br label %m, !index 2

b:
  br label %m, !index 3

m:
  %p = phi i64 [ 1, %a ], [ 2, %b ], !index 4
  %q = phi i64 [ 3, %a ], [ 4, %b ]
  %s = add i64 %p, %q, !index 5
  ret i64 %s, !index 6
}
`
	m := parse(t, src)
	f, _ := m.Func("g")
	want := tracked(m, f)
	phi := f.Blocks[3].Instrs[0]
	if at := InsertionPoint(phi); at != f.Blocks[3].Instrs[2] {
		t.Fatalf("insertion point of a phi = %v", at)
	}
	run(t, m, DefaultConfig())
	if err := testkit.CheckTraceInvariants(f, TracerName, want); err != nil {
		t.Fatal(err)
	}
	blk := f.Blocks[3].Instrs
	if blk[0].Op != ir.OpPhi || blk[1].Op != ir.OpPhi || blk[2].Op != ir.OpAlloca {
		t.Fatalf("trace code split the phi group:\n%s", m.String())
	}
	if err := ir.Validate(m); err != nil {
		t.Fatal(err)
	}
}

func TestPhiTracedAfterLandingPad(t *testing.T) {
	src := `target triple = "x86_64-pc-linux-gnu"

declare i32 @may_throw(i32)

declare i32 @__gxx_personality_v0(...)

define i32 @h(i32 %a) personality ptr @__gxx_personality_v0 {
entry:
  %r = invoke i32 @may_throw(i32 %a) to label %ok unwind label %pad, !index 1

ok:
  %s = invoke i32 @may_throw(i32 %r) to label %done unwind label %pad, !index 2

pad:
  %v = phi i32 [ 1, %entry ], [ 2, %ok ], !index 3
  %lp = landingpad { ptr, i32 } cleanup catch ptr null
  ret i32 %v, !index 4

done:
  ret i32 %s, !index 5
}
`
	m := parse(t, src)
	f, _ := m.Func("h")
	want := tracked(m, f)
	if len(want) != 1 {
		t.Fatalf("eligible = %d, want only the phi", len(want))
	}
	pad := f.Blocks[2]
	if at := InsertionPoint(pad.Instrs[0]); at != pad.Instrs[2] {
		t.Fatalf("insertion point of a phi in a landing pad = %v", at)
	}
	run(t, m, DefaultConfig())
	if err := testkit.CheckTraceInvariants(f, TracerName, want); err != nil {
		t.Fatal(err)
	}
	if pad.Instrs[0].Op != ir.OpPhi || pad.Instrs[1].Op != ir.OpLandingPad {
		t.Fatalf("trace code went in front of the landing pad:\n%s", m.String())
	}
	if err := ir.Validate(m); err != nil {
		t.Fatal(err)
	}
	if _, err := irtext.Parse("again.ll", []byte(m.String()), diag.NopReporter{}); err != nil {
		t.Fatalf("instrumented text does not parse: %v", err)
	}
}

func TestConfigIsThreaded(t *testing.T) {
	m := parse(t, straightLine)
	var dbg bytes.Buffer
	run(t, m, Config{OutputFilename: "llfi.trace", MaxTrace: 100, Debug: true, DebugOut: &dbg})
	text := m.String()
	if !strings.Contains(text, `c"llfi.trace\00"`) {
		t.Fatal("output filename not used")
	}
	f, _ := m.Func("f")
	for _, c := range testkit.TracerCalls(f, TracerName) {
		if c.Call.Args[5].Const.Int != 100 {
			t.Fatalf("max trace = %d", c.Call.Args[5].Const.Int)
		}
	}
	out := dbg.String()
	if !strings.Contains(out, "Instruction was not indexed") || !strings.Contains(out, "Parent Function Name: f") {
		t.Fatalf("debug output:\n%s", out)
	}
}

func TestContractViolations(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		m := parse(t, strings.Replace(straightLine, `target triple = "x86_64-pc-linux-gnu"`, "", 1))
		err := NewTracePass(DefaultConfig()).DoInitialization(m)
		var ce *ContractError
		if !errors.As(err, &ce) || ce.Kind != ContractMissingLayout {
			t.Fatalf("got %v", err)
		}
		var le *layout.LayoutError
		if !errors.As(err, &le) || le.Kind != layout.LayoutErrMissingTarget {
			t.Fatalf("layout cause lost: %v", err)
		}
	})
	t.Run("tracer signature clash", func(t *testing.T) {
		m := parse(t, straightLine+"\ndeclare void @printInstTracer(i32)\n")
		p := NewTracePass(DefaultConfig())
		if err := p.DoInitialization(m); err != nil {
			t.Fatal(err)
		}
		f, _ := m.Func("f")
		_, err := p.RunOnFunction(f)
		var ce *ContractError
		if !errors.As(err, &ce) || ce.Kind != ContractTracerSignature || ce.Func != "f" {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("index out of i32 range", func(t *testing.T) {
		m := parse(t, strings.Replace(straightLine, "!index 1", "!index 4294967296", 1))
		p := NewTracePass(DefaultConfig())
		if err := p.DoInitialization(m); err != nil {
			t.Fatal(err)
		}
		f, _ := m.Func("f")
		_, err := p.RunOnFunction(f)
		var ce *ContractError
		if !errors.As(err, &ce) || ce.Kind != ContractIDRange {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("max trace out of range", func(t *testing.T) {
		m := parse(t, straightLine)
		err := NewTracePass(Config{MaxTrace: 1 << 40}).DoInitialization(m)
		var ce *ContractError
		if !errors.As(err, &ce) || ce.Kind != ContractMaxTraceRange {
			t.Fatalf("got %v", err)
		}
	})
}

func TestEligibility(t *testing.T) {
	m := parse(t, straightLine)
	f, _ := m.Func("f")
	idx := NewTracePass(DefaultConfig()).cfg.Indexer
	got := make([]bool, 0, f.InstrCount())
	for _, in := range f.Instructions() {
		got = append(got, Eligible(in, idx, m.Types))
	}
	// add, mul, icmp, store(void), sub(unindexed), br(terminator), ret, ret
	want := []bool{true, true, true, false, false, false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instr %d: eligible=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestByteSizeIsCeiling(t *testing.T) {
	tests := []struct {
		bits, bytes uint64
	}{
		{1, 1}, {7, 1}, {8, 1}, {9, 2}, {16, 2}, {17, 3}, {32, 4}, {64, 8}, {80, 10},
	}
	for _, tt := range tests {
		if got := layout.ByteSize(tt.bits); got != tt.bytes {
			t.Errorf("ByteSize(%d) = %d, want %d", tt.bits, got, tt.bytes)
		}
	}
}
