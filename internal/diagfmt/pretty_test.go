package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"faultline/internal/diag"
)

func TestPrettyShowsSourceLineAndCaret(t *testing.T) {
	bag := diag.NewBag(4)
	bag.Add(diag.NewError(diag.SynUnknownOpcode, diag.Span{File: "dir/m.ll", Line: 2, Col: 8}, "unknown opcode \"frob\""))
	var buf bytes.Buffer
	Pretty(&buf, bag, PrettyOpts{
		PathMode: PathModeBasename,
		Sources:  map[string]string{"dir/m.ll": "entry:\n  %x = frob i32 1\n"},
	})
	want := "m.ll:2:8: ERROR SYN2005: unknown opcode \"frob\"\n" +
		"    %x = frob i32 1\n" +
		"         ^\n"
	if buf.String() != want {
		t.Fatalf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestJSONTruncatesToMax(t *testing.T) {
	bag := diag.NewBag(4)
	for i := 0; i < 3; i++ {
		bag.Add(diag.NewError(diag.ResUndefinedValue, diag.Span{File: "a.ll", Line: i + 1, Col: 1}, "undefined"))
	}
	var buf bytes.Buffer
	if err := JSON(&buf, bag, JSONOpts{Max: 2}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d, len = %d", out.Count, len(out.Diagnostics))
	}
	if !strings.HasPrefix(out.Diagnostics[0].Code, "RES") || out.Diagnostics[0].Location.Line != 1 {
		t.Fatalf("unexpected first entry %+v", out.Diagnostics[0])
	}
}
