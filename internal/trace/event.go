package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1 // span start
	KindSpanEnd                   // span end
	KindPoint                     // instant event
	KindHeartbeat                 // periodic liveness signal
	KindError                     // failure report, emitted from LevelError up
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
	KindError:     "error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope indicates the granularity of the event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole CLI invocation.
	ScopeDriver Scope = iota + 1
	// ScopeModule covers one input module.
	ScopeModule
	// ScopePass covers one pass over a module.
	ScopePass
	// ScopeFunc covers one function inside a pass.
	ScopeFunc
	// ScopeInstr is the per-instruction level.
	ScopeInstr
)

var scopeNames = [...]string{
	ScopeDriver: "driver",
	ScopeModule: "module",
	ScopePass:   "pass",
	ScopeFunc:   "func",
	ScopeInstr:  "instr",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // assigned by the sink
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // span the event opens or closes
	ParentID uint64            // enclosing span (0 if root)
	File     string            // input module the event belongs to, if any
	Name     string            // e.g. "instTrace", "func:main", "module:a.ll"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
