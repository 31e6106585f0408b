package selector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"faultline/internal/autoconfig"
	"faultline/internal/diag"
	"faultline/internal/index"
	"faultline/internal/ir"
	"faultline/internal/irtext"
	"faultline/internal/trace"
)

const copyModule = `source_filename = "copy.c"

define void @copy(ptr %dst, ptr %src, i64 %n, ptr %fp) {
entry:
  call void @llvm.memcpy.p0.p0.i64(ptr %dst, ptr %src, i64 %n, i1 false)
  %r = call i32 (ptr, ...) @printf(ptr %src)
  call void @llvm.memmove.p0i8.p0i8.i64(ptr %dst, ptr %src, i64 %n, i1 false)
  call void %fp(ptr %dst)
  %v = load i8, ptr %src
  call void @_ZN2ns4copyEPvPKvm(ptr %dst, ptr %src, i64 %n)
  ret void
}

declare void @llvm.memcpy.p0.p0.i64(ptr, ptr, i64, i1)
declare void @llvm.memmove.p0i8.p0i8.i64(ptr, ptr, i64, i1)
declare void @_ZN2ns4copyEPvPKvm(ptr, ptr, i64)
declare i32 @printf(ptr, ...)
`

func parse(t *testing.T, src string) *ir.Module {
	t.Helper()
	bag := diag.NewBag(10)
	m, err := irtext.Parse("copy.ll", []byte(src), diag.BagReporter{Bag: bag})
	if err != nil {
		for _, d := range bag.Items() {
			t.Logf("%s", d.Error())
		}
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func body(t *testing.T, m *ir.Module) []*ir.Instr {
	t.Helper()
	f, ok := m.Func("copy")
	if !ok {
		t.Fatal("@copy missing")
	}
	return f.Instructions()
}

func TestBlockCopySelector(t *testing.T) {
	ins := body(t, parse(t, copyModule))
	sel := NewBlockCopy()
	want := []bool{true, false, true, false, false, false, false}
	for i, in := range ins {
		m, ok := sel.IsTarget(in)
		if ok != want[i] {
			t.Errorf("instr %d (%s): match=%v, want %v", i, in.Op, ok, want[i])
		}
		if ok && m.Category != BlockCopyCategory {
			t.Errorf("instr %d: category %q", i, m.Category)
		}
	}
}

func TestBlockCopyMatchesInvoke(t *testing.T) {
	in := &ir.Instr{Op: ir.OpInvoke}
	in.Invoke.Call.Callee = ir.Callee{Kind: ir.CalleeDirect, Name: "llvm.memmove.p0.p0.i64"}
	if _, ok := NewBlockCopy().IsTarget(in); !ok {
		t.Fatal("invoke of memmove should match")
	}
	if _, ok := NewBlockCopy().IsTarget(&ir.Instr{Op: ir.OpCall}); ok {
		t.Fatal("call without a callee must not match")
	}
}

func TestFuncNameSelectorDemangles(t *testing.T) {
	ins := body(t, parse(t, copyModule))
	tests := []struct {
		names []string
		want  int
	}{
		{[]string{"ns::copy"}, 5},
		{[]string{"_ZN2ns4copyEPvPKvm"}, 5},
		{[]string{"printf"}, 1},
		{[]string{"memcpy"}, -1},
	}
	for _, tt := range tests {
		sel, err := NewFuncNameSelector("Cat", tt.names)
		if err != nil {
			t.Fatal(err)
		}
		got := -1
		for i, in := range ins {
			if _, ok := sel.IsTarget(in); ok {
				got = i
			}
		}
		if got != tt.want {
			t.Errorf("%v matched instr %d, want %d", tt.names, got, tt.want)
		}
	}
}

func TestOpcodeSelector(t *testing.T) {
	if _, err := NewOpcodeSelector("X", []string{"frob"}); err == nil {
		t.Fatal("unknown opcode accepted")
	}
	sel, err := NewOpcodeSelector("Data", []string{"load", "ret"})
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, in := range body(t, parse(t, copyModule)) {
		if _, ok := sel.IsTarget(in); ok {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("matched %d, want 2", n)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("Alpha", "", NewBlockCopy()); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("beta", "", NewBlockCopy()); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("ALPHA", "", NewBlockCopy()); !errors.Is(err, ErrDuplicateSelector) {
		t.Fatalf("expected ErrDuplicateSelector, got %v", err)
	}
	if _, ok := r.Lookup("alpha"); !ok {
		t.Fatal("lookup must ignore case")
	}
	if _, ok := r.Lookup("gamma"); ok {
		t.Fatal("unknown name resolved")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "Alpha" || names[1] != "beta" {
		t.Fatalf("Names = %v", names)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("MustRegister did not panic on a duplicate")
		}
	}()
	r.MustRegister("Beta", "", NewBlockCopy())
}

func TestBootstrap(t *testing.T) {
	r, err := Bootstrap([]Custom{
		{Name: "loads", Kind: "insttype", Opcodes: []string{"load"}},
		{Name: "copies", Kind: "funcname", Category: "Copy", Functions: []string{"ns::copy"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Names(); len(got) != 3 || got[0] != BlockCopyName {
		t.Fatalf("Names = %v", got)
	}
	if _, err := Bootstrap([]Custom{{Name: BlockCopyName, Kind: "insttype", Opcodes: []string{"add"}}}); !errors.Is(err, ErrDuplicateSelector) {
		t.Fatalf("expected clash with builtin, got %v", err)
	}
	if _, err := Bootstrap([]Custom{{Name: "x", Kind: "regex"}}); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

type countingRecorder struct{ got []string }

func (c *countingRecorder) Record(category string) { c.got = append(c.got, category) }

func TestRunRecordsEveryMatch(t *testing.T) {
	m := parse(t, copyModule)
	if _, err := index.Assign(m); err != nil {
		t.Fatal(err)
	}
	rec := &countingRecorder{}
	rep, err := Run(context.Background(), m, BlockCopyName, NewBlockCopy(), nil, rec)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Targets) != 2 || len(rec.got) != 2 {
		t.Fatalf("targets=%d records=%d", len(rep.Targets), len(rec.got))
	}
	want := []Target{
		{Module: "copy.c", Function: "copy", ID: 1, Opcode: "call", Callee: "llvm.memcpy.p0.p0.i64", Category: BlockCopyCategory},
		{Module: "copy.c", Function: "copy", ID: 3, Opcode: "call", Callee: "llvm.memmove.p0i8.p0i8.i64", Category: BlockCopyCategory},
	}
	if diff := cmp.Diff(want, rep.Targets); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRequiresIndex(t *testing.T) {
	m := parse(t, copyModule)
	ring := trace.NewRingTracer(16, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := Run(ctx, m, BlockCopyName, NewBlockCopy(), nil, nil); !errors.Is(err, ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
	events := ring.Snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one trace event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != trace.KindError || ev.Name != "select" || !strings.Contains(ev.Detail, "llvm.memcpy") {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAutomationConfigSingleLine(t *testing.T) {
	orders := map[string]string{
		"copy first": `define void @f(ptr %a, ptr %b) {
entry:
  call void @llvm.memcpy.p0.p0.i64(ptr %a, ptr %b, i64 8, i1 false)
  call void @puts(ptr %a)
  ret void
}
declare void @llvm.memcpy.p0.p0.i64(ptr, ptr, i64, i1)
declare void @puts(ptr)
`,
		"copy last": `define void @f(ptr %a, ptr %b) {
entry:
  call void @puts(ptr %a)
  call void @llvm.memcpy.p0.p0.i64(ptr %a, ptr %b, i64 8, i1 false)
  ret void
}
declare void @llvm.memcpy.p0.p0.i64(ptr, ptr, i64, i1)
declare void @puts(ptr)
`,
	}
	for name, src := range orders {
		t.Run(name, func(t *testing.T) {
			m := parse(t, src)
			if _, err := index.Assign(m); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(t.TempDir(), autoconfig.DefaultPath)
			w := autoconfig.New(path, autoconfig.ModeTruncate, nil)
			if _, err := Run(context.Background(), m, BlockCopyName, NewBlockCopy(), index.Meta{}, w); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != BlockCopyCategory+"\n" {
				t.Fatalf("automation config = %q", data)
			}
		})
	}
}

func TestReportFile(t *testing.T) {
	rep := &Report{Selector: BlockCopyName, Targets: []Target{
		{Module: "b.c", Function: "g", ID: 2, Opcode: "call", Category: BlockCopyCategory},
		{Module: "a.c", Function: "f", ID: 7, Opcode: "call", Category: BlockCopyCategory},
	}}
	rep.Sort()
	path := filepath.Join(t.TempDir(), DefaultReportPath)
	if err := WriteReportFile(path, rep); err != nil {
		t.Fatal(err)
	}
	got, err := ReadReportFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Fatalf("report changed on disk (-wrote +read):\n%s", diff)
	}
	if got.Targets[0].Module != "a.c" {
		t.Fatalf("report not sorted: %+v", got.Targets)
	}
	if _, ok := got.IDs("b.c")[2]; !ok {
		t.Fatal("IDs(b.c) lacks 2")
	}
	if cats := got.Categories(); len(cats) != 1 {
		t.Fatalf("Categories = %v", cats)
	}
}
