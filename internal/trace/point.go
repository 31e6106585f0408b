package trace

import (
	"context"
	"time"
)

// Point emits an instant event under parent.
func Point(t Tracer, scope Scope, parent uint64, name, detail string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		Name:     name,
		Detail:   detail,
	})
}

// Mark emits an instant event under the span carried by ctx.
func Mark(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	sc := CurrentSpan(ctx)
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: sc.SpanID,
		File:     sc.File,
		Name:     name,
		Detail:   detail,
	})
}

// Error emits a failure event. It passes every level except LevelOff.
func Error(t Tracer, scope Scope, parent uint64, name string, err error) {
	emitError(t, scope, parent, "", name, err)
}

// MarkError emits a failure event under the span carried by ctx.
func MarkError(ctx context.Context, scope Scope, name string, err error) {
	sc := CurrentSpan(ctx)
	emitError(FromContext(ctx), scope, sc.SpanID, sc.File, name, err)
}

func emitError(t Tracer, scope Scope, parent uint64, file, name string, err error) {
	if t == nil || !t.Enabled() || err == nil {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindError,
		Scope:    scope,
		ParentID: parent,
		File:     file,
		Name:     name,
		Detail:   err.Error(),
	})
}
