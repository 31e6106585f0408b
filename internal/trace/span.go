package trace

import (
	"context"
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
	openSpans   atomic.Int64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 {
	return globalSeq.Add(1)
}

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 {
	return globalSpans.Add(1)
}

// OpenSpans reports how many emitted spans have not ended yet.
func OpenSpans() int64 {
	return openSpans.Load()
}

// Span is one begin/end pair. The zero Span and spans filtered out by the
// level are inert, so callers never need to check before End.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	file     string
	scope    Scope
	name     string
	started  time.Time
	extra    map[string]string
	ended    bool
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.tracer.Enabled() && s.id != 0
}

// Begin emits a SpanBegin event under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	return begin(t, scope, name, SpanContext{SpanID: parent})
}

// Start opens a span below the one carried by ctx and returns a context
// whose current span is the new one.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	parent := CurrentSpan(ctx)
	s := begin(FromContext(ctx), scope, name, parent)
	if s.id == 0 {
		return ctx, s
	}
	return WithSpanContext(ctx, SpanContext{SpanID: s.id, File: parent.File}), s
}

func begin(t Tracer, scope Scope, name string, parent SpanContext) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop, parentID: parent.SpanID, file: parent.File, scope: scope, name: name}
	}
	s := &Span{
		tracer:   t,
		id:       NextSpanID(),
		parentID: parent.SpanID,
		file:     parent.File,
		scope:    scope,
		name:     name,
		started:  time.Now(),
	}
	openSpans.Add(1)
	t.Emit(&Event{
		Time:     s.started,
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		File:     s.file,
		Name:     name,
	})
	return s
}

// End emits the SpanEnd event once and returns the span duration.
func (s *Span) End(detail string) time.Duration {
	if !s.live() || s.ended {
		return 0
	}
	s.ended = true
	openSpans.Add(-1)
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		File:     s.file,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	return dur
}

// Fail reports err as an error event inside the span. Errors are emitted
// even when the span itself was filtered out by the level.
func (s *Span) Fail(t Tracer, err error) {
	if s == nil || err == nil {
		return
	}
	parent := s.id
	if parent == 0 {
		parent = s.parentID
	}
	emitError(t, s.scope, parent, s.file, s.name, err)
}

// WithExtra adds a key-value pair to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
