// Package pipeline runs the configured passes over a batch of modules.
// Modules are processed in parallel, each with its own pass instances;
// selection reports are merged into one target list.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"faultline/internal/diag"
	"faultline/internal/instrument"
	"faultline/internal/ir"
	"faultline/internal/observ"
	"faultline/internal/pass"
	"faultline/internal/selector"
	"faultline/internal/trace"
)

// Request configures a batch run.
type Request struct {
	Inputs []string
	// BaseDir shortens file names in progress events.
	BaseDir string
	Passes  []string
	// Registry defaults to pass.Builtins().
	Registry  *pass.Registry
	Selectors *selector.Registry
	Selector  string
	Trace     instrument.Config
	// Recorder is shared by every module; it must be safe for concurrent use.
	Recorder selector.Recorder
	// Output names the file for a single input. It wins over OutDir.
	Output string
	OutDir string
	Format Format
	// DryRun skips writing modules.
	DryRun bool
	// ReportPath receives the merged selection report; empty skips it.
	ReportPath string
	Jobs       int
	Progress   ProgressSink
	// Timer, when set, receives every pass phase prefixed by the file.
	Timer *observ.Timer
}

// FileResult describes one processed input.
type FileResult struct {
	Input   string
	Output  string
	Module  *ir.Module
	Bag     *diag.Bag
	Passes  pass.Result
	Report  *selector.Report
	Timings Timings
	Err     error
}

// Result collects the batch outcome.
type Result struct {
	Files   []FileResult
	Report  *selector.Report
	Timings Timings
}

// Failed returns the results that carry an error.
func (r Result) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Run processes every input. The first module error cancels the workers
// that have not started yet; finished results are still returned.
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing pipeline request")
	}
	if len(req.Inputs) == 0 {
		return result, fmt.Errorf("no input modules")
	}
	if req.Output != "" && len(req.Inputs) > 1 {
		return result, fmt.Errorf("an explicit output needs exactly one input, got %d", len(req.Inputs))
	}
	registry := req.Registry
	if registry == nil {
		registry = pass.Builtins()
	}
	// Instantiate once up front so configuration errors surface before
	// any file is touched.
	if _, err := registry.Instantiate(req.env(nil), req.Passes); err != nil {
		return result, err
	}

	names := DisplayNames(req.Inputs, req.BaseDir)
	emitQueued(req.Progress, names)

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "pipeline")

	// Индексы уникальны для каждой горутины, мьютекс не нужен.
	result.Files = make([]FileResult, len(req.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Inputs)))
	for i, input := range req.Inputs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				result.Files[i] = FileResult{Input: input, Err: gctx.Err()}
				return gctx.Err()
			default:
			}
			fr := runOne(gctx, req, registry, input, names[i])
			result.Files[i] = fr
			if fr.Err != nil {
				return fmt.Errorf("%s: %w", input, fr.Err)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, fr := range result.Files {
		result.Timings.Add(fr.Timings)
		if fr.Report == nil {
			continue
		}
		if result.Report == nil {
			result.Report = &selector.Report{}
		}
		result.Report.Merge(fr.Report)
	}
	if result.Report != nil {
		result.Report.Sort()
	}
	if err == nil && req.ReportPath != "" && result.Report != nil && !req.DryRun {
		err = writeReport(req, result.Report, &result.Timings)
	}
	note := strconv.Itoa(len(req.Inputs)) + " modules"
	if err != nil {
		note = "failed"
	}
	span.End(note)
	return result, err
}

func (req *Request) env(onReport func(*selector.Report)) *pass.Env {
	return &pass.Env{
		Trace:     req.Trace,
		Selectors: req.Selectors,
		Selector:  req.Selector,
		Recorder:  req.Recorder,
		OnReport:  onReport,
	}
}

func runOne(ctx context.Context, req *Request, registry *pass.Registry, input, name string) FileResult {
	fr := FileResult{Input: input}
	ctx, span := trace.Start(trace.WithFile(ctx, name), trace.ScopeModule, "module")
	fail := func(stage Stage, err error) FileResult {
		fr.Err = err
		emit(req.Progress, Event{File: name, Stage: stage, Status: StatusError, Err: err})
		span.Fail(trace.FromContext(ctx), fmt.Errorf("%s: %w", stage, err))
		span.End("failed")
		return fr
	}

	emit(req.Progress, Event{File: name, Stage: StageLoad, Status: StatusWorking})
	start := time.Now()
	m, bag, err := Load(input)
	fr.Bag = bag
	if err != nil {
		return fail(StageLoad, err)
	}
	fr.Module = m
	fr.Timings.Set(StageLoad, time.Since(start))
	emit(req.Progress, Event{File: name, Stage: StageLoad, Status: StatusDone, Elapsed: time.Since(start)})

	// Each module gets fresh pass instances; the report callback runs on
	// this goroutine only.
	var mu sync.Mutex
	passes, err := registry.Instantiate(req.env(func(r *selector.Report) {
		mu.Lock()
		defer mu.Unlock()
		if fr.Report == nil {
			fr.Report = &selector.Report{}
		}
		fr.Report.Merge(r)
	}), req.Passes)
	if err != nil {
		return fail(StagePasses, err)
	}
	var timer *observ.Timer
	if req.Timer != nil {
		timer = observ.NewTimer()
	}
	emit(req.Progress, Event{File: name, Stage: StagePasses, Status: StatusWorking})
	start = time.Now()
	res, err := pass.NewManager(timer, passes...).Run(ctx, m)
	fr.Passes = res
	if req.Timer != nil {
		req.Timer.Merge(name, timer)
	}
	if err != nil {
		return fail(StagePasses, err)
	}
	fr.Timings.Set(StagePasses, time.Since(start))
	detail, targets := "", 0
	if fr.Report != nil {
		targets = len(fr.Report.Targets)
		detail = strconv.Itoa(targets) + " targets"
	}
	emit(req.Progress, Event{File: name, Stage: StagePasses, Status: StatusDone, Elapsed: time.Since(start), Detail: detail})

	if req.DryRun {
		emit(req.Progress, Event{File: name, Stage: StageFinished, Status: StatusDone, Detail: detail, Targets: targets})
		span.End(detail)
		return fr
	}
	out := req.Output
	if out == "" {
		out = OutputPath(input, req.OutDir, req.Format)
	}
	if filepath.Clean(out) == filepath.Clean(input) {
		return fail(StageWrite, errors.New("output would overwrite the input"))
	}
	emit(req.Progress, Event{File: name, Stage: StageWrite, Status: StatusWorking})
	start = time.Now()
	if err := Store(out, m, req.Format); err != nil {
		return fail(StageWrite, err)
	}
	fr.Output = out
	fr.Timings.Set(StageWrite, time.Since(start))
	emit(req.Progress, Event{File: name, Stage: StageWrite, Status: StatusDone, Elapsed: time.Since(start)})
	emit(req.Progress, Event{File: name, Stage: StageFinished, Status: StatusDone, Detail: detail, Targets: targets})
	span.End(detail)
	return fr
}

func writeReport(req *Request, rep *selector.Report, timings *Timings) error {
	emit(req.Progress, Event{Stage: StageReport, Status: StatusWorking})
	start := time.Now()
	if err := selector.WriteReportFile(req.ReportPath, rep); err != nil {
		emit(req.Progress, Event{Stage: StageReport, Status: StatusError, Err: err})
		return err
	}
	timings.Set(StageReport, time.Since(start))
	emit(req.Progress, Event{Stage: StageReport, Status: StatusDone, Elapsed: time.Since(start),
		Detail: strconv.Itoa(len(rep.Targets)) + " targets"})
	return nil
}
