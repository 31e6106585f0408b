// Package diag defines the diagnostic model shared by the IR readers and
// the command line.
//
// Diagnostic is the central record: a Severity, a numeric Code with a stable
// string form, a short Message and the primary Span (file, line, column).
// Producers emit through a Reporter; BagReporter collects into a Bag that the
// caller sorts and renders with internal/diagfmt.
//
// Package diag does not perform any formatting or IO.
package diag
