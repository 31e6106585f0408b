package pass

import (
	"context"
	"errors"
	"strings"
	"testing"

	"faultline/internal/diag"
	"faultline/internal/instrument"
	"faultline/internal/ir"
	"faultline/internal/irtext"
	"faultline/internal/observ"
	"faultline/internal/selector"
)

const src = `target triple = "x86_64-pc-linux-gnu"

define void @copy(ptr %dst, ptr %src) {
entry:
  call void @llvm.memcpy.p0.p0.i64(ptr %dst, ptr %src, i64 16, i1 false)
  %v = load i32, ptr %src
  %w = add i32 %v, 1
  store i32 %w, ptr %dst
  ret void
}

declare void @llvm.memcpy.p0.p0.i64(ptr, ptr, i64, i1)
`

func parse(t *testing.T, text string) *ir.Module {
	t.Helper()
	m, err := irtext.Parse("copy.ll", []byte(text), diag.NopReporter{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

type recorder struct{ n int }

func (r *recorder) Record(string) { r.n++ }

func TestBuiltinsListing(t *testing.T) {
	r := Builtins()
	var names []string
	for _, info := range r.Infos() {
		names = append(names, info.Name)
	}
	if got := strings.Join(names, ","); got != "fiselect,genindex,instTrace,verify" {
		t.Fatalf("Infos = %s", got)
	}
	info, ok := r.Lookup("instTrace")
	if !ok || info.Description != "Traces instruction execution through program: -tout <filename> (-debugTrace)" {
		t.Fatalf("instTrace info = %+v", info)
	}
	if err := r.Register(Info{Name: "verify", New: newVerify}); err == nil {
		t.Fatal("duplicate pass name accepted")
	}
}

func TestPipelineOrder(t *testing.T) {
	m := parse(t, src)
	sels, err := selector.Bootstrap(nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	var reports []*selector.Report
	env := &Env{
		Trace:     instrument.DefaultConfig(),
		Selectors: sels,
		Selector:  selector.BlockCopyName,
		Recorder:  rec,
		OnReport:  func(r *selector.Report) { reports = append(reports, r) },
	}
	passes, err := Builtins().Instantiate(env, []string{GenIndex, FISelect, InstTrace, Verify})
	if err != nil {
		t.Fatal(err)
	}
	timer := observ.NewTimer()
	res, err := NewManager(timer, passes...).Run(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Modified || strings.Join(res.Changed, ",") != "genindex,instTrace" {
		t.Fatalf("result = %+v", res)
	}
	if rec.n != 1 || len(reports) != 1 || len(reports[0].Targets) != 1 {
		t.Fatalf("records=%d reports=%d", rec.n, len(reports))
	}
	if got := len(timer.Report().Phases); got != 4 {
		t.Fatalf("timer phases = %d", got)
	}
	// load and add produce values; memcpy, store and ret do not.
	if got := strings.Count(m.String(), "call void @printInstTracer("); got != 2 {
		t.Fatalf("tracer calls = %d\n%s", got, m.String())
	}
}

func TestFailingPassStopsTheModule(t *testing.T) {
	m := parse(t, strings.Replace(src, `target triple = "x86_64-pc-linux-gnu"`, "", 1))
	passes, err := Builtins().Instantiate(&Env{Trace: instrument.DefaultConfig()}, []string{GenIndex, InstTrace, Verify})
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewManager(nil, passes...).Run(context.Background(), m)
	var ce *instrument.ContractError
	if !errors.As(err, &ce) || !strings.HasPrefix(err.Error(), "instTrace: ") {
		t.Fatalf("got %v", err)
	}
	if strings.Join(res.Changed, ",") != "genindex" {
		t.Fatalf("changed = %v", res.Changed)
	}
}

func TestInstantiateErrors(t *testing.T) {
	if _, err := Builtins().Instantiate(&Env{}, []string{"mem2reg"}); err == nil || !strings.Contains(err.Error(), "unknown pass") {
		t.Fatalf("got %v", err)
	}
	sels, _ := selector.Bootstrap(nil)
	if _, err := Builtins().Instantiate(&Env{Selectors: sels, Selector: "nope"}, []string{FISelect}); err == nil {
		t.Fatal("unknown selector accepted")
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	passes, _ := Builtins().Instantiate(&Env{}, []string{GenIndex})
	if _, err := NewManager(nil, passes...).Run(ctx, parse(t, src)); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}
