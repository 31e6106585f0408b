package irbin

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/irtext"
)

const sample = `source_filename = "sum.c"
target triple = "x86_64-pc-linux-gnu"

@msg = constant [4 x i8] c"sum\00"

define i32 @sum(ptr %xs, i32 %n) {
entry:
  %acc = alloca { i32, [2 x double] }
  br label %head, !index 1

head:
  %i = phi i32 [ 0, %entry ], [ %next, %body ]
  %s = phi i32 [ 0, %entry ], [ %s2, %body ]
  %done = icmp sge i32 %i, %n, !index 2
  br i1 %done, label %exit, label %body, !index 3

body:
  %p = getelementptr i32, ptr %xs, i32 %i, !index 4
  %v = load i32, ptr %p, !index 5
  %s2 = add i32 %s, %v, !index 6
  %next = add i32 %i, 1, !index 7
  switch i32 %next, label %head [ i32 10, label %exit ], !index 8

exit:
  %f = call ptr %p(i32 %s), !index 9
  %r = call i32 (ptr, ...) @printf(ptr @msg, i32 %s), !index 10
  ret i32 %s, !index 11
}

declare i32 @printf(ptr, ...)
`

func parse(t *testing.T) *ir.Module {
	t.Helper()
	bag := diag.NewBag(10)
	m, err := irtext.Parse("sum.ll", []byte(sample), diag.BagReporter{Bag: bag})
	if err != nil {
		for _, d := range bag.Items() {
			t.Logf("%s", d.Error())
		}
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := parse(t)
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := ir.Validate(got); err != nil {
		t.Fatalf("decoded module is invalid: %v", err)
	}
	if want, have := m.String(), got.String(); want != have {
		t.Fatalf("round trip changed the module:\n--- want\n%s\n--- got\n%s", want, have)
	}
}

func TestLandingPadRoundTrip(t *testing.T) {
	src := `declare void @may_throw()

declare i32 @__gxx_personality_v0(...)

define void @f() personality ptr @__gxx_personality_v0 {
entry:
  invoke void @may_throw() to label %done unwind label %lpad, !index 1

lpad:
  %lp = landingpad { ptr, i32 } cleanup catch ptr null filter [0 x ptr] zeroinitializer, !index 2
  ret void, !index 3

done:
  ret void, !index 4
}
`
	m, err := irtext.Parse("pad.ll", []byte(src), diag.NopReporter{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := ir.Validate(got); err != nil {
		t.Fatalf("decoded module is invalid: %v", err)
	}
	f, _ := got.Func("f")
	pad := f.Blocks[1].Instrs[0]
	if f.Personality != "__gxx_personality_v0" || !pad.Pad.Cleanup || len(pad.Pad.Clauses) != 2 || !pad.Pad.Clauses[1].Filter {
		t.Fatalf("landing pad lost in transit: personality=%q pad=%+v", f.Personality, pad.Pad)
	}
	if want, have := m.String(), got.String(); want != have {
		t.Fatalf("round trip changed the module:\n--- want\n%s\n--- got\n%s", want, have)
	}
}

func TestWriteReadFile(t *testing.T) {
	m := parse(t)
	path := filepath.Join(t.TempDir(), "out", "sum"+Ext)
	if err := WriteFile(path, m); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	f, ok := got.Func("sum")
	if !ok {
		t.Fatal("function @sum missing after reload")
	}
	body := f.Blocks[2].Instrs
	if body[2].Binary.Right.Instr != body[1] {
		t.Fatal("operand links were not restored")
	}
	if !body[0].Meta.Indexed || body[0].Meta.Index != 4 {
		t.Fatalf("index metadata lost: %+v", body[0].Meta)
	}
}

func TestSchemaMismatch(t *testing.T) {
	p, err := FromModule(parse(t))
	if err != nil {
		t.Fatalf("FromModule: %v", err)
	}
	p.Schema = schemaVersion + 1
	raw, err := msgpack.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode(bytes.NewReader(raw)); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestDecodeRejectsDanglingValue(t *testing.T) {
	p, err := FromModule(parse(t))
	if err != nil {
		t.Fatalf("FromModule: %v", err)
	}
	body := &p.Funcs[0].Blocks[2].Instrs[2]
	body.Operands[1].Instr = 1000
	if _, err := ToModule(p); err == nil {
		t.Fatal("expected an out-of-range value reference to fail")
	}
}
