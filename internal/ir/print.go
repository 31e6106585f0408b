package ir

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"faultline/internal/types"
)

// Print writes the textual form of the module.
func Print(w io.Writer, m *Module) error {
	if w == nil || m == nil {
		return nil
	}
	var sb strings.Builder
	p := printer{sb: &sb, m: m}
	p.module()
	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders the module as text.
func (m *Module) String() string {
	var sb strings.Builder
	if err := Print(&sb, m); err != nil {
		return fmt.Sprintf("<print error: %v>", err)
	}
	return sb.String()
}

// FormatInstr renders a single instruction. Unnamed values are shown by
// their slot number inside the parent function when it is attached.
func FormatInstr(m *Module, in *Instr) string {
	var sb strings.Builder
	p := printer{sb: &sb, m: m}
	if f := in.Func(); f != nil {
		p.numberSlots(f)
		p.fn = f
	}
	p.instr(in)
	return sb.String()
}

type printer struct {
	sb    *strings.Builder
	m     *Module
	fn    *Func
	slots map[*Instr]int
	param map[int]int
}

func (p *printer) ty(id types.TypeID) string {
	return p.m.Types.String(id)
}

func (p *printer) module() {
	m := p.m
	if m.Name != "" {
		fmt.Fprintf(p.sb, "; ModuleID = '%s'\n", m.Name)
		fmt.Fprintf(p.sb, "source_filename = %s\n", quote(m.Name))
	}
	if m.DataLayout != "" {
		fmt.Fprintf(p.sb, "target datalayout = %s\n", quote(m.DataLayout))
	}
	if m.Triple != "" {
		fmt.Fprintf(p.sb, "target triple = %s\n", quote(m.Triple))
	}
	if len(m.Globals) > 0 {
		p.sb.WriteString("\n")
	}
	for _, g := range m.Globals {
		kw := "global"
		if g.Constant {
			kw = "constant"
		}
		fmt.Fprintf(p.sb, "@%s = %s %s", g.Name, kw, p.ty(g.Type))
		if g.HasInit {
			p.sb.WriteString(" ")
			p.sb.WriteString(p.constText(g.Type, g.Init))
		}
		p.sb.WriteString("\n")
	}
	for _, f := range m.Funcs {
		p.sb.WriteString("\n")
		p.function(f)
	}
}

func (p *printer) numberSlots(f *Func) {
	p.slots = make(map[*Instr]int)
	p.param = make(map[int]int)
	next := 0
	for i, prm := range f.Params {
		if prm.Name == "" {
			p.param[i] = next
			next++
		}
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			if in.Name == "" && !p.m.Types.IsVoid(in.Type) {
				p.slots[in] = next
				next++
			}
		}
	}
}

func (p *printer) function(f *Func) {
	p.fn = f
	p.numberSlots(f)
	info, _ := p.m.Types.FuncInfo(f.Sig)
	result := p.m.Types.Builtins().Void
	variadic := false
	if info != nil {
		result = info.Result
		variadic = info.Variadic
	}
	params := make([]string, 0, len(f.Params)+1)
	for i, prm := range f.Params {
		if f.IsDeclaration() {
			params = append(params, p.ty(prm.Type))
			continue
		}
		params = append(params, p.ty(prm.Type)+" "+p.paramName(i))
	}
	if variadic {
		params = append(params, "...")
	}
	if f.IsDeclaration() {
		fmt.Fprintf(p.sb, "declare %s @%s(%s)\n", p.ty(result), f.Name, strings.Join(params, ", "))
		return
	}
	personality := ""
	if f.Personality != "" {
		personality = " personality ptr @" + f.Personality
	}
	fmt.Fprintf(p.sb, "define %s @%s(%s)%s {\n", p.ty(result), f.Name, strings.Join(params, ", "), personality)
	for i, b := range f.Blocks {
		if i > 0 {
			p.sb.WriteString("\n")
		}
		fmt.Fprintf(p.sb, "%s:\n", b.Label())
		for _, in := range b.Instrs {
			p.sb.WriteString("  ")
			p.instr(in)
			p.sb.WriteString("\n")
		}
	}
	p.sb.WriteString("}\n")
}

func (p *printer) paramName(i int) string {
	if name := p.fn.Params[i].Name; name != "" {
		return "%" + name
	}
	return "%" + strconv.Itoa(p.param[i])
}

func (p *printer) valueName(in *Instr) string {
	if in.Name != "" {
		return "%" + in.Name
	}
	if n, ok := p.slots[in]; ok {
		return "%" + strconv.Itoa(n)
	}
	return "%<detached>"
}

func (p *printer) blockRef(id BlockID) string {
	if p.fn != nil {
		if b, ok := p.fn.Block(id); ok {
			return "label %" + b.Label()
		}
	}
	return fmt.Sprintf("label %%bb%d", id)
}

func (p *printer) blockName(id BlockID) string {
	if p.fn != nil {
		if b, ok := p.fn.Block(id); ok {
			return "%" + b.Label()
		}
	}
	return fmt.Sprintf("%%bb%d", id)
}

// value renders an operand without its type.
func (p *printer) value(op Operand) string {
	switch op.Kind {
	case OperandInstr:
		if op.Instr == nil {
			return "%<nil>"
		}
		return p.valueName(op.Instr)
	case OperandParam:
		if p.fn == nil || op.Param < 0 || op.Param >= len(p.fn.Params) {
			return fmt.Sprintf("%%arg%d", op.Param)
		}
		return p.paramName(op.Param)
	case OperandGlobal:
		return "@" + op.Global
	case OperandConst:
		return p.constText(op.Type, op.Const)
	default:
		return "<none>"
	}
}

// typed renders "T value".
func (p *printer) typed(op Operand) string {
	return p.ty(op.Type) + " " + p.value(op)
}

func (p *printer) constText(ty types.TypeID, c Const) string {
	switch c.Kind {
	case ConstInt:
		if tt, ok := p.m.Types.Lookup(ty); ok && tt.Kind == types.KindInt && tt.Width == 1 {
			if c.Int != 0 {
				return "true"
			}
			return "false"
		}
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		if math.IsInf(c.Float, 0) || math.IsNaN(c.Float) {
			return fmt.Sprintf("0x%016X", math.Float64bits(c.Float))
		}
		return strconv.FormatFloat(c.Float, 'e', -1, 64)
	case ConstNull:
		return "null"
	case ConstUndef:
		return "undef"
	case ConstZero:
		return "zeroinitializer"
	case ConstBytes:
		return "c" + escapeBytes(c.Bytes)
	default:
		return "undef"
	}
}

func (p *printer) instr(in *Instr) {
	sb := p.sb
	if !p.m.Types.IsVoid(in.Type) && in.Op != OpStore {
		sb.WriteString(p.valueName(in))
		sb.WriteString(" = ")
	}
	sb.WriteString(in.Op.String())
	switch in.Kind() {
	case InstrBinary:
		fmt.Fprintf(sb, " %s, %s", p.typed(in.Binary.Left), p.value(in.Binary.Right))
	case InstrCast:
		fmt.Fprintf(sb, " %s to %s", p.typed(in.Cast.Value), p.ty(in.Type))
	case InstrCmp:
		fmt.Fprintf(sb, " %s %s, %s", in.Cmp.Pred, p.typed(in.Cmp.Left), p.value(in.Cmp.Right))
	case InstrAlloca:
		fmt.Fprintf(sb, " %s", p.ty(in.Alloca.Elem))
	case InstrLoad:
		fmt.Fprintf(sb, " %s, %s", p.ty(in.Type), p.typed(in.Load.Ptr))
	case InstrStore:
		fmt.Fprintf(sb, " %s, %s", p.typed(in.Store.Value), p.typed(in.Store.Ptr))
	case InstrGEP:
		fmt.Fprintf(sb, " %s, %s", p.ty(in.GEP.Elem), p.typed(in.GEP.Base))
		for _, idx := range in.GEP.Indices {
			fmt.Fprintf(sb, ", %s", p.typed(idx))
		}
	case InstrCall:
		sb.WriteString(" ")
		p.callBody(&in.Call)
	case InstrInvoke:
		sb.WriteString(" ")
		p.callBody(&in.Invoke.Call)
		fmt.Fprintf(sb, " to %s unwind %s", p.blockRef(in.Invoke.Normal), p.blockRef(in.Invoke.Unwind))
	case InstrPhi:
		fmt.Fprintf(sb, " %s ", p.ty(in.Type))
		for k, inc := range in.Phi.Incoming {
			if k > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "[ %s, %s ]", p.value(inc.Value), p.blockName(inc.Block))
		}
	case InstrSelect:
		fmt.Fprintf(sb, " %s, %s, %s", p.typed(in.Select.Cond), p.typed(in.Select.True), p.typed(in.Select.False))
	case InstrRet:
		if in.Ret.HasValue {
			fmt.Fprintf(sb, " %s", p.typed(in.Ret.Value))
		} else {
			sb.WriteString(" void")
		}
	case InstrBr:
		if in.Br.Conditional {
			fmt.Fprintf(sb, " %s, %s, %s", p.typed(in.Br.Cond), p.blockRef(in.Br.Then), p.blockRef(in.Br.Else))
		} else {
			fmt.Fprintf(sb, " %s", p.blockRef(in.Br.Then))
		}
	case InstrSwitch:
		fmt.Fprintf(sb, " %s, %s [", p.typed(in.Switch.Value), p.blockRef(in.Switch.Default))
		for _, c := range in.Switch.Cases {
			fmt.Fprintf(sb, " %s %s, %s", p.ty(in.Switch.Value.Type), p.constText(in.Switch.Value.Type, c.Value), p.blockRef(c.Target))
		}
		sb.WriteString(" ]")
	case InstrLandingPad:
		fmt.Fprintf(sb, " %s", p.ty(in.Type))
		if in.Pad.Cleanup {
			sb.WriteString(" cleanup")
		}
		for _, c := range in.Pad.Clauses {
			kw := "catch"
			if c.Filter {
				kw = "filter"
			}
			fmt.Fprintf(sb, " %s %s", kw, p.typed(c.Value))
		}
	}
	if in.Meta.Indexed {
		fmt.Fprintf(sb, ", !index %d", in.Meta.Index)
	}
}

func (p *printer) callBody(c *CallInstr) {
	info, _ := p.m.Types.FuncInfo(c.FnType)
	if info != nil && info.Variadic {
		p.sb.WriteString(p.ty(c.FnType))
	} else if info != nil {
		p.sb.WriteString(p.ty(info.Result))
	} else {
		p.sb.WriteString("void")
	}
	p.sb.WriteString(" ")
	if c.Callee.Kind == CalleeIndirect {
		p.sb.WriteString(p.value(c.Callee.Value))
	} else {
		p.sb.WriteString("@" + c.Callee.Name)
	}
	p.sb.WriteString("(")
	for k, a := range c.Args {
		if k > 0 {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(p.typed(a))
	}
	p.sb.WriteString(")")
}

func quote(s string) string {
	return escapeBytes([]byte(s))
}

// escapeBytes renders b as a double-quoted string with \XX escapes.
func escapeBytes(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) + 2)
	sb.WriteByte('"')
	for _, c := range b {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "\\%02X", c)
	}
	sb.WriteByte('"')
	return sb.String()
}
