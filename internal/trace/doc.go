// Package trace records what the instrumentation pipeline does.
//
// Events are spans (begin/end pairs) and points. The pipeline opens a span
// per batch and per input module, the pass manager one per pass and per
// function; selectors and the automation-config writer emit points for
// matches and for swallowed file errors. Spans started below a module carry
// its display name, so interleaved output from parallel jobs stays readable.
//
//	faultline opt --trace=- --trace-level=detail in.ll
//
// Levels, coarse to fine: off, error, phase (driver, module, pass), detail
// (functions), debug (instructions). Errors pass every level but off.
//
//	ctx, span := trace.Start(ctx, trace.ScopePass, "instTrace")
//	defer span.End("")
//	trace.Mark(ctx, trace.ScopeInstr, "select", "id=3")
package trace
