package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"faultline/internal/autoconfig"
	"faultline/internal/instrument"
	"faultline/internal/irtext"
	"faultline/internal/observ"
	"faultline/internal/selector"
	"faultline/internal/testkit"
)

const moduleTmpl = `source_filename = "NAME.c"
target triple = "x86_64-pc-linux-gnu"

define i32 @work(ptr %dst, ptr %src, i64 %n) {
entry:
  call void @llvm.memcpy.p0.p0.i64(ptr %dst, ptr %src, i64 %n, i1 false)
  %x = load i32, ptr %src
  %y = add i32 %x, 1
  ret i32 %y
}

declare void @llvm.memcpy.p0.p0.i64(ptr, ptr, i64, i1)
`

func writeModule(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".ll")
	src := strings.ReplaceAll(moduleTmpl, "NAME", name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func newRequest(t *testing.T, dir string, inputs ...string) *Request {
	t.Helper()
	reg, err := selector.Bootstrap(nil)
	require.NoError(t, err)
	return &Request{
		Inputs:     inputs,
		BaseDir:    dir,
		Passes:     []string{"genindex", "fiselect", "instTrace"},
		Selectors:  reg,
		Selector:   selector.BlockCopyName,
		Trace:      instrument.DefaultConfig(),
		Recorder:   autoconfig.New(filepath.Join(dir, autoconfig.DefaultPath), autoconfig.ModeTruncate, nil),
		ReportPath: filepath.Join(dir, selector.DefaultReportPath),
		Jobs:       2,
	}
}

func TestRunInstrumentsBatch(t *testing.T) {
	dir := t.TempDir()
	a := writeModule(t, dir, "a")
	b := writeModule(t, dir, "b")
	req := newRequest(t, dir, a, b)
	sink := &CollectSink{}
	req.Progress = sink
	req.Timer = observ.NewTimer()

	res, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, res.Failed())
	require.Len(t, res.Files, 2)

	for _, fr := range res.Files {
		require.Equal(t, OutputPath(fr.Input, "", FormatAuto), fr.Output)
		m, _, err := irtext.ParseFile(fr.Output)
		require.NoError(t, err)
		f, ok := m.Func("work")
		require.True(t, ok)
		require.Len(t, testkit.TracerCalls(f, instrument.TracerName), 2)
		ids, err := testkit.UniqueIDs(m)
		require.NoError(t, err)
		require.NotZero(t, ids)
		require.Equal(t, []string{"genindex", "instTrace"}, fr.Passes.Changed)
	}

	require.NotNil(t, res.Report)
	require.Len(t, res.Report.Targets, 2)
	require.Equal(t, "a.c", res.Report.Targets[0].Module)
	require.Equal(t, int64(1), res.Report.Targets[0].ID)
	require.Equal(t, selector.BlockCopyCategory, res.Report.Targets[1].Category)

	onDisk, err := selector.ReadReportFile(req.ReportPath)
	require.NoError(t, err)
	require.Equal(t, res.Report.Targets, onDisk.Targets)

	data, err := os.ReadFile(filepath.Join(dir, autoconfig.DefaultPath))
	require.NoError(t, err)
	require.Equal(t, selector.BlockCopyCategory+"\n", string(data))

	done := 0
	for _, ev := range sink.Events() {
		if ev.Stage == StageWrite && ev.Status == StatusDone {
			done++
		}
		if ev.Stage == StagePasses && ev.Status == StatusDone {
			require.Equal(t, "1 targets", ev.Detail)
		}
	}
	require.Equal(t, 2, done)

	phases := req.Timer.Report().Phases
	require.Len(t, phases, 6)
	require.True(t, strings.HasSuffix(phases[0].Name, "/genindex"), phases[0].Name)
	require.True(t, res.Timings.Has(StagePasses))
}

func TestRunBinaryOutput(t *testing.T) {
	dir := t.TempDir()
	a := writeModule(t, dir, "a")
	req := newRequest(t, dir, a)
	req.Format = FormatBinary
	req.OutDir = filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(req.OutDir, 0o755))

	res, err := Run(context.Background(), req)
	require.NoError(t, err)
	out := res.Files[0].Output
	require.Equal(t, filepath.Join(req.OutDir, "a.fi.fib"), out)

	m, bag, err := Load(out)
	require.NoError(t, err)
	require.Nil(t, bag)
	f, ok := m.Func("work")
	require.True(t, ok)
	require.Len(t, testkit.TracerCalls(f, instrument.TracerName), 2)
}

func TestRunReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ll")
	require.NoError(t, os.WriteFile(bad, []byte("define void @f() {\nentry:\n  frob\n}\n"), 0o600))
	req := newRequest(t, dir, bad)

	res, err := Run(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.Is(err, irtext.ErrSyntax), "got %v", err)
	require.Len(t, res.Failed(), 1)
	require.NotNil(t, res.Files[0].Bag)
	require.True(t, res.Files[0].Bag.HasErrors())
	_, statErr := os.Stat(req.ReportPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestRunRejectsBadRequests(t *testing.T) {
	dir := t.TempDir()
	a := writeModule(t, dir, "a")
	b := writeModule(t, dir, "b")

	req := newRequest(t, dir, a)
	req.Passes = []string{"genindex", "nope"}
	_, err := Run(context.Background(), req)
	require.ErrorContains(t, err, `unknown pass "nope"`)

	req = newRequest(t, dir, a, b)
	req.Output = filepath.Join(dir, "x.ll")
	_, err = Run(context.Background(), req)
	require.ErrorContains(t, err, "exactly one input")

	req = newRequest(t, dir, a)
	req.Output = a
	_, err = Run(context.Background(), req)
	require.ErrorContains(t, err, "overwrite the input")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	a := writeModule(t, dir, "a")
	req := newRequest(t, dir, a)
	req.DryRun = true

	res, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, res.Files[0].Output)
	require.NotNil(t, res.Files[0].Module)
	_, statErr := os.Stat(OutputPath(a, "", FormatAuto))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(req.ReportPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, outDir string
		format        Format
		want          string
	}{
		{"src/a.ll", "", FormatAuto, "src/a.fi.ll"},
		{"src/a.ll", "out", FormatAuto, "out/a.fi.ll"},
		{"src/a.ll", "", FormatBinary, "src/a.fi.fib"},
		{"src/a.fib", "", FormatText, "src/a.fi.ll"},
		{"src/a.fir", "", FormatText, "src/a.fi.fir"},
	}
	for _, tt := range tests {
		got := OutputPath(filepath.FromSlash(tt.input), filepath.FromSlash(tt.outDir), tt.format)
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("OutputPath(%q, %q, %q) = %q, want %q", tt.input, tt.outDir, tt.format, got, tt.want)
		}
	}
}
