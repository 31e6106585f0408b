package dot

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/irtext"
)

const sample = `define i32 @_Z4mathii(i32 %a, i32 %b) {
entry:
  %s = add i32 %a, %b, !index 1
  %d = mul i32 %s, 2, !index 2
  %e = sub i32 %d, %s, !index 3
  %f = add i32 %a, 1, !index 4
  ret i32 %e, !index 5
}
`

func parse(t *testing.T) *ir.Module {
	t.Helper()
	m, err := irtext.Parse("math.ll", []byte(sample), diag.BagReporter{Bag: diag.NewBag(10)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestEdges(t *testing.T) {
	got := Edges(parse(t))
	want := []Edge{{1, 2}, {2, 3}, {1, 3}, {3, 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDecoratesTargets(t *testing.T) {
	m := parse(t)
	targets := map[int64]struct{}{2: {}}
	var sb strings.Builder
	err := Write(&sb, m, Options{Targets: targets, Affected: Affected(m, targets)})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()
	for _, line := range []string{
		`label="@math";`,
		`llfiID_1 [shape=record, label="1: add i32"];`,
		`llfiID_2 [shape=record, label="2: mul i32", color="red"];`,
		`llfiID_3 [shape=record, label="3: sub i32", style="filled", fillcolor="yellow"];`,
		`llfiID_5 [shape=record, label="5: ret", style="filled", fillcolor="yellow"];`,
		`llfiID_1 -> llfiID_2;`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("missing %q in:\n%s", line, out)
		}
	}
	if strings.Contains(out, `llfiID_4 [shape=record, label="4: add i32", style`) {
		t.Errorf("unrelated instruction marked affected:\n%s", out)
	}
}

func TestAffectedExcludesTargets(t *testing.T) {
	m := parse(t)
	got := Affected(m, map[int64]struct{}{1: {}, 3: {}})
	if _, ok := got[3]; ok {
		t.Fatal("target reported as affected")
	}
	for _, id := range []int64{2, 5} {
		if _, ok := got[id]; !ok {
			t.Errorf("id %d not affected", id)
		}
	}
	if len(got) != 2 {
		t.Fatalf("affected = %v", got)
	}
}

func TestWriteUses(t *testing.T) {
	var sb strings.Builder
	if err := WriteUses(&sb, parse(t)); err != nil {
		t.Fatalf("WriteUses: %v", err)
	}
	want := "llfiID_1\t[ 'llfiID_2', 'llfiID_3', None ]\n" +
		"llfiID_2\t[ 'llfiID_3', None ]\n" +
		"llfiID_3\t[ 'llfiID_5', None ]\n" +
		"llfiID_4\t[ None ]\n" +
		"llfiID_5\t[ None ]\n"
	if sb.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", sb.String(), want)
	}
}

func TestRawNamesKeepMangling(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, parse(t), Options{Raw: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(sb.String(), `label="@_Z4mathii";`) {
		t.Fatalf("mangled label missing:\n%s", sb.String())
	}
}
