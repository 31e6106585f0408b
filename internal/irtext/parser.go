// Package irtext reads the textual IR form produced by ir.Print.
//
// The accepted language is the subset of LLVM assembly the toolkit models:
// scalar, pointer, array and literal struct types; the instruction set of
// package ir; globals with scalar or byte-string initializers; the
// "!index N" attachment. Linkage keywords, parameter and function attributes,
// attribute groups and metadata definitions are accepted and dropped.
package irtext

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"faultline/internal/diag"
	"faultline/internal/ir"
	"faultline/internal/types"
)

// ErrSyntax is returned when the input contains errors; details are
// delivered to the diag.Reporter.
var ErrSyntax = errors.New("textual IR contains errors")

// errAbort unwinds the current top-level entity after a reported error.
var errAbort = errors.New("abort")

// Parse builds a module from textual IR.
func Parse(file string, src []byte, rep diag.Reporter) (*ir.Module, error) {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	p := &parser{
		file: file,
		rep:  &countingReporter{next: rep},
		m:    ir.NewModule(file),
	}
	p.lx = newLexer(file, src, p.rep)
	p.bt = p.m.Types.Builtins()
	p.next()
	p.parseModule()
	if p.rep.errors > 0 {
		return p.m, ErrSyntax
	}
	return p.m, nil
}

// ParseFile reads and parses path, collecting diagnostics into a bag.
func ParseFile(path string) (*ir.Module, *diag.Bag, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	bag := diag.NewBag(100)
	m, err := Parse(path, src, diag.BagReporter{Bag: bag})
	if err != nil {
		return nil, bag, fmt.Errorf("%s: %w", path, err)
	}
	return m, bag, nil
}

type countingReporter struct {
	next   diag.Reporter
	errors int
}

func (r *countingReporter) Report(code diag.Code, sev diag.Severity, primary diag.Span, msg string, notes []diag.Note) {
	if sev >= diag.SevError {
		r.errors++
	}
	r.next.Report(code, sev, primary, msg, notes)
}

type parser struct {
	file string
	lx   *lexer
	rep  *countingReporter
	m    *ir.Module
	bt   types.Builtins

	tok  Token
	peek *Token

	fn *funcState
}

func (p *parser) next() {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return
	}
	p.tok = p.lx.Next()
}

func (p *parser) lookahead() Token {
	if p.peek == nil {
		t := p.lx.Next()
		p.peek = &t
	}
	return *p.peek
}

func (p *parser) errorf(code diag.Code, sp diag.Span, format string, args ...any) error {
	diag.ReportError(p.rep, code, sp, fmt.Sprintf(format, args...))
	return errAbort
}

func (p *parser) unexpected(want string) error {
	got := p.tok.Kind.String()
	if p.tok.Text != "" {
		got = strconv.Quote(p.tok.Text)
	}
	return p.errorf(diag.SynUnexpectedToken, p.tok.Span, "expected %s, found %s", want, got)
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	if p.tok.Kind != kind {
		return p.tok, p.unexpected(kind.String())
	}
	t := p.tok
	p.next()
	return t, nil
}

func (p *parser) isIdent(text string) bool {
	return p.tok.Kind == TokIdent && p.tok.Text == text
}

func (p *parser) expectIdent(text string) error {
	if !p.isIdent(text) {
		return p.unexpected(strconv.Quote(text))
	}
	p.next()
	return nil
}

func (p *parser) accept(kind TokenKind) bool {
	if p.tok.Kind == kind {
		p.next()
		return true
	}
	return false
}

// ---- module level ----

func (p *parser) parseModule() {
	for p.tok.Kind != TokEOF {
		var err error
		switch {
		case p.isIdent("source_filename"):
			err = p.parseSourceFilename()
		case p.isIdent("target"):
			err = p.parseTarget()
		case p.isIdent("declare"):
			err = p.parseFunction(false)
		case p.isIdent("define"):
			err = p.parseFunction(true)
		case p.isIdent("attributes"):
			err = p.skipAttributes()
		case p.tok.Kind == TokGlobal:
			err = p.parseGlobal()
		case p.tok.Kind == TokMeta:
			err = p.skipMetadataDef()
		default:
			err = p.errorf(diag.SynUnexpectedTopLevel, p.tok.Span, "unexpected %s at top level", p.tok.Kind)
		}
		if err != nil {
			p.recoverTopLevel()
		}
	}
}

// recoverTopLevel skips to the next token that can start a top-level entity.
func (p *parser) recoverTopLevel() {
	p.fn = nil
	p.next()
	for p.tok.Kind != TokEOF {
		if p.tok.Kind == TokIdent {
			switch p.tok.Text {
			case "define", "declare", "target", "source_filename", "attributes":
				return
			}
		}
		p.next()
	}
}

func (p *parser) parseSourceFilename() error {
	p.next()
	if _, err := p.expect(TokEqual); err != nil {
		return err
	}
	s, err := p.expect(TokString)
	if err != nil {
		return err
	}
	p.m.Name = s.Text
	return nil
}

func (p *parser) parseTarget() error {
	p.next()
	if p.tok.Kind != TokIdent || (p.tok.Text != "triple" && p.tok.Text != "datalayout") {
		return p.unexpected(`"triple" or "datalayout"`)
	}
	which := p.tok.Text
	p.next()
	if _, err := p.expect(TokEqual); err != nil {
		return err
	}
	s, err := p.expect(TokString)
	if err != nil {
		return err
	}
	if which == "triple" {
		p.m.Triple = s.Text
	} else {
		p.m.DataLayout = s.Text
	}
	return nil
}

var linkageWords = map[string]struct{}{
	"private": {}, "internal": {}, "external": {}, "linkonce": {}, "linkonce_odr": {},
	"weak": {}, "weak_odr": {}, "common": {}, "appending": {}, "extern_weak": {},
	"available_externally": {}, "dso_local": {}, "dso_preemptable": {},
	"unnamed_addr": {}, "local_unnamed_addr": {}, "hidden": {}, "protected": {},
	"default": {}, "thread_local": {}, "externally_initialized": {},
}

func (p *parser) parseGlobal() error {
	nameTok := p.tok
	p.next()
	if _, err := p.expect(TokEqual); err != nil {
		return err
	}
	for p.tok.Kind == TokIdent {
		if _, ok := linkageWords[p.tok.Text]; !ok {
			break
		}
		p.next()
	}
	g := &ir.Global{Name: nameTok.Text}
	switch {
	case p.isIdent("global"):
	case p.isIdent("constant"):
		g.Constant = true
	default:
		return p.unexpected(`"global" or "constant"`)
	}
	p.next()
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	g.Type = ty
	if p.startsConstant() {
		op, err := p.parseValue(ty)
		if err != nil {
			return err
		}
		if op.Kind != ir.OperandConst {
			return p.errorf(diag.SynExpectValue, nameTok.Span, "initializer of @%s must be a constant", g.Name)
		}
		g.Init, g.HasInit = op.Const, true
	}
	p.skipTrailingGlobalAttrs()
	if err := p.m.AddGlobal(g); err != nil {
		return p.errorf(diag.ResRedefinedValue, nameTok.Span, "%v", err)
	}
	return nil
}

func (p *parser) skipTrailingGlobalAttrs() {
	for p.tok.Kind == TokComma {
		p.next()
		switch p.tok.Kind {
		case TokIdent:
			p.next() // align, section, ...
			if p.tok.Kind == TokInt || p.tok.Kind == TokString {
				p.next()
			}
		case TokMeta:
			p.next()
			if p.tok.Kind == TokMeta {
				p.next()
			}
		}
	}
}

func (p *parser) startsConstant() bool {
	switch p.tok.Kind {
	case TokInt, TokFloat, TokCString:
		return true
	case TokIdent:
		switch p.tok.Text {
		case "null", "undef", "poison", "zeroinitializer", "true", "false":
			return true
		}
	}
	return false
}

func (p *parser) skipAttributes() error {
	p.next()
	if _, err := p.expect(TokAttrRef); err != nil {
		return err
	}
	if _, err := p.expect(TokEqual); err != nil {
		return err
	}
	return p.skipBalanced(TokLBrace, TokRBrace)
}

func (p *parser) skipMetadataDef() error {
	p.next()
	if _, err := p.expect(TokEqual); err != nil {
		return err
	}
	if p.isIdent("distinct") {
		p.next()
	}
	if p.tok.Kind == TokMeta {
		p.next()
		return p.skipBalanced(TokLBrace, TokRBrace)
	}
	// Specialized nodes: !DILocation(...)
	if p.tok.Kind == TokIdent {
		p.next()
	}
	return p.skipBalanced(TokLParen, TokRParen)
}

func (p *parser) skipBalanced(open, closing TokenKind) error {
	start := p.tok.Span
	if _, err := p.expect(open); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		switch p.tok.Kind {
		case TokEOF:
			return p.errorf(diag.SynUnclosedBody, start, "unbalanced %s", open)
		case open:
			depth++
		case closing:
			depth--
		}
		p.next()
	}
	return nil
}

// ---- types ----

func (p *parser) startsType() bool {
	switch p.tok.Kind {
	case TokLBrack, TokLBrace, TokLess:
		return true
	case TokIdent:
		_, ok := p.scalarType(p.tok.Text)
		return ok
	}
	return false
}

func (p *parser) scalarType(name string) (types.TypeID, bool) {
	switch name {
	case "void":
		return p.bt.Void, true
	case "label":
		return p.bt.Label, true
	case "ptr":
		return p.bt.Ptr, true
	}
	if w, ok := types.FloatWidth(name); ok {
		return p.m.Types.Intern(types.MakeFloat(w)), true
	}
	if len(name) > 1 && name[0] == 'i' {
		w, err := strconv.ParseUint(name[1:], 10, 32)
		if err == nil && w > 0 && w <= uint64(types.MaxIntWidth) {
			return p.m.Types.Int(uint32(w)), true
		}
	}
	return types.NoTypeID, false
}

// parseType reads a first-class or void type. Legacy typed pointers
// (T*) collapse to ptr.
func (p *parser) parseType() (types.TypeID, error) {
	var ty types.TypeID
	switch p.tok.Kind {
	case TokIdent:
		id, ok := p.scalarType(p.tok.Text)
		if !ok {
			return types.NoTypeID, p.errorf(diag.SynExpectType, p.tok.Span, "unknown type %q", p.tok.Text)
		}
		ty = id
		p.next()
	case TokLBrack:
		p.next()
		n, err := p.expect(TokInt)
		if err != nil {
			return types.NoTypeID, err
		}
		count, perr := strconv.ParseUint(n.Text, 10, 64)
		if perr != nil {
			return types.NoTypeID, p.errorf(diag.LexBadNumber, n.Span, "bad array length %q", n.Text)
		}
		if err := p.expectIdent("x"); err != nil {
			return types.NoTypeID, err
		}
		elem, err := p.parseType()
		if err != nil {
			return types.NoTypeID, err
		}
		if _, err := p.expect(TokRBrack); err != nil {
			return types.NoTypeID, err
		}
		ty = p.m.Types.Array(elem, count)
	case TokLBrace:
		fields, err := p.parseStructBody()
		if err != nil {
			return types.NoTypeID, err
		}
		ty = p.m.Types.Struct(false, fields...)
	case TokLess:
		p.next()
		if p.tok.Kind != TokLBrace {
			return types.NoTypeID, p.errorf(diag.SynExpectType, p.tok.Span, "vector types are not supported")
		}
		fields, err := p.parseStructBody()
		if err != nil {
			return types.NoTypeID, err
		}
		if _, err := p.expect(TokGreater); err != nil {
			return types.NoTypeID, err
		}
		ty = p.m.Types.Struct(true, fields...)
	default:
		return types.NoTypeID, p.errorf(diag.SynExpectType, p.tok.Span, "expected a type, found %s", p.tok.Kind)
	}
	for p.tok.Kind == TokStar {
		p.next()
		ty = p.bt.Ptr
	}
	return ty, nil
}

func (p *parser) parseStructBody() ([]types.TypeID, error) {
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	var fields []types.TypeID
	for p.tok.Kind != TokRBrace {
		f, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if !p.accept(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return fields, nil
}

// ---- functions ----

var paramAttrWords = map[string]struct{}{
	"noundef": {}, "nonnull": {}, "signext": {}, "zeroext": {}, "inreg": {},
	"nocapture": {}, "readonly": {}, "readnone": {}, "writeonly": {}, "immarg": {},
	"returned": {}, "noalias": {}, "nofree": {}, "nest": {}, "swiftself": {},
}

// skipAttrs drops parameter/return attributes, including the
// parenthesized and "align N" forms.
func (p *parser) skipAttrs() {
	for p.tok.Kind == TokIdent {
		switch text := p.tok.Text; {
		case text == "align":
			p.next()
			if p.tok.Kind == TokInt {
				p.next()
			}
		case text == "dereferenceable" || text == "dereferenceable_or_null" || text == "byval" ||
			text == "sret" || text == "elementtype" || text == "nofpclass" || text == "range":
			p.next()
			if p.tok.Kind == TokLParen {
				_ = p.skipBalanced(TokLParen, TokRParen)
			}
		default:
			if _, ok := paramAttrWords[text]; !ok {
				if _, ok := linkageWords[text]; !ok {
					return
				}
			}
			p.next()
		}
	}
}

func (p *parser) parseFunction(define bool) error {
	p.next()
	p.skipAttrs()
	// Calling conventions.
	for p.tok.Kind == TokIdent && !p.startsType() {
		p.next()
	}
	result, err := p.parseType()
	if err != nil {
		return err
	}
	nameTok, err := p.expect(TokGlobal)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return err
	}
	var (
		params   []types.TypeID
		names    []string
		spans    []diag.Span
		variadic bool
	)
	for p.tok.Kind != TokRParen {
		if p.accept(TokEllipsis) {
			variadic = true
			break
		}
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		p.skipAttrs()
		name := ""
		sp := p.tok.Span
		if p.tok.Kind == TokLocal {
			name = p.tok.Text
			p.next()
		}
		params = append(params, ty)
		names = append(names, name)
		spans = append(spans, sp)
		if !p.accept(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return err
	}
	sig := p.m.Types.Func(result, variadic, params...)

	f, exists := p.m.Func(nameTok.Text)
	switch {
	case exists && (!f.IsDeclaration() || f.Sig != sig):
		return p.errorf(diag.ResRedefinedFunction, nameTok.Span, "function @%s redefined", nameTok.Text)
	case !exists:
		f, err = p.m.AddFunc(nameTok.Text, sig)
		if err != nil {
			return p.errorf(diag.ResRedefinedFunction, nameTok.Span, "%v", err)
		}
	}

	// Function attributes, section, personality, comdat, #N.
	for p.tok.Kind != TokEOF && p.tok.Kind != TokLBrace {
		if !define && (p.tok.Kind == TokGlobal || p.tok.Kind == TokMeta || p.startsTopLevel()) {
			break
		}
		if p.tok.Kind == TokLParen {
			if err := p.skipBalanced(TokLParen, TokRParen); err != nil {
				return err
			}
			continue
		}
		if define && p.isIdent("personality") {
			p.next()
			if _, err := p.parseType(); err != nil {
				return err
			}
			if p.tok.Kind == TokGlobal {
				f.Personality = p.tok.Text
			}
		}
		p.next()
	}
	if !define {
		return nil
	}
	return p.parseBody(f, names, spans)
}

func (p *parser) startsTopLevel() bool {
	if p.tok.Kind != TokIdent {
		return false
	}
	switch p.tok.Text {
	case "define", "declare", "target", "source_filename", "attributes":
		return true
	}
	return false
}

type operandFixup struct {
	op   *ir.Operand
	name string
	span diag.Span
}

type blockFixup struct {
	slot *ir.BlockID
	name string
	span diag.Span
}

type pendingRef struct {
	name string
	span diag.Span
}

type funcState struct {
	f       *ir.Func
	params  map[string]int
	values  map[string]*ir.Instr
	labels  map[string]ir.BlockID
	defined map[string]bool
	ops     []operandFixup
	blocks  []blockFixup

	// Per-instruction queues, drained after the instruction is built.
	pendingOps    []pendingRef
	pendingLabels []pendingRef
}

func (p *parser) parseBody(f *ir.Func, names []string, spans []diag.Span) error {
	fs := &funcState{
		f:       f,
		params:  make(map[string]int),
		values:  make(map[string]*ir.Instr),
		labels:  make(map[string]ir.BlockID),
		defined: make(map[string]bool),
	}
	p.fn = fs
	defer func() { p.fn = nil }()

	unnamed := 0
	for i, name := range names {
		if name == "" {
			name = strconv.Itoa(unnamed)
		}
		if isSlot(name) {
			unnamed++
			f.Params[i].Name = ""
		} else {
			f.Params[i].Name = name
		}
		if _, dup := fs.params[name]; dup {
			return p.errorf(diag.ResRedefinedValue, spans[i], "parameter %%%s redefined", name)
		}
		fs.params[name] = i
	}

	if _, err := p.expect(TokLBrace); err != nil {
		return err
	}
	var cur *ir.Block
	if p.tok.Kind != TokLabelDef && p.tok.Kind != TokRBrace {
		cur = p.defineBlock(strconv.Itoa(unnamed), "")
	}
	for p.tok.Kind != TokRBrace {
		if p.tok.Kind == TokEOF {
			return p.errorf(diag.SynUnclosedBody, p.tok.Span, "missing '}' at end of @%s", f.Name)
		}
		if p.tok.Kind == TokLabelDef {
			label := p.tok.Text
			if fs.defined[label] {
				return p.errorf(diag.ResRedefinedValue, p.tok.Span, "label %%%s redefined", label)
			}
			name := label
			if isSlot(label) {
				name = "bb" + label
			}
			cur = p.defineBlock(label, name)
			p.next()
			continue
		}
		in, err := p.parseInstr()
		if err != nil {
			return err
		}
		cur.Append(in)
	}
	p.next()
	if len(f.Blocks) == 0 {
		return p.errorf(diag.SynUnclosedBody, p.tok.Span, "function @%s has no blocks", f.Name)
	}
	p.resolve()
	return nil
}

func isSlot(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isDigit(name[i]) {
			return false
		}
	}
	return true
}

// defineBlock appends a block and binds label to it. References are
// resolved once the body is complete.
func (p *parser) defineBlock(label, name string) *ir.Block {
	fs := p.fn
	b := fs.f.NewBlock(name)
	fs.labels[label] = b.ID
	fs.defined[label] = true
	return b
}

func (p *parser) resolve() {
	fs := p.fn
	for _, fx := range fs.ops {
		in, ok := fs.values[fx.name]
		if !ok {
			diag.ReportError(p.rep, diag.ResUndefinedValue, fx.span, fmt.Sprintf("use of undefined value %%%s", fx.name))
			continue
		}
		fx.op.Instr = in
		if fx.op.Type != in.Type {
			diag.ReportError(p.rep, diag.ResTypeMismatch, fx.span, fmt.Sprintf("%%%s is %s, used as %s",
				fx.name, p.m.Types.String(in.Type), p.m.Types.String(fx.op.Type)))
		}
	}
	for _, fx := range fs.blocks {
		id, ok := fs.labels[fx.name]
		if !ok {
			diag.ReportError(p.rep, diag.ResUndefinedLabel, fx.span, fmt.Sprintf("use of undefined label %%%s", fx.name))
			continue
		}
		*fx.slot = id
	}
}

// ---- values ----

// parseValue reads a value of the given type.
func (p *parser) parseValue(ty types.TypeID) (ir.Operand, error) {
	tok := p.tok
	switch tok.Kind {
	case TokLocal:
		p.next()
		if p.fn == nil {
			return ir.Operand{}, p.errorf(diag.SynExpectValue, tok.Span, "local value %%%s outside a function", tok.Text)
		}
		if idx, ok := p.fn.params[tok.Text]; ok {
			op := ir.ParamOf(p.fn.f, idx)
			if op.Type != ty {
				return op, p.errorf(diag.ResTypeMismatch, tok.Span, "%%%s is %s, used as %s",
					tok.Text, p.m.Types.String(op.Type), p.m.Types.String(ty))
			}
			return op, nil
		}
		p.fn.pendingOps = append(p.fn.pendingOps, pendingRef{name: tok.Text, span: tok.Span})
		return ir.Operand{Kind: ir.OperandInstr, Type: ty}, nil
	case TokGlobal:
		p.next()
		return ir.GlobalRef(tok.Text, ty), nil
	case TokInt:
		p.next()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(tok.Text, 10, 64)
			if uerr != nil {
				return ir.Operand{}, p.errorf(diag.LexBadNumber, tok.Span, "integer %s out of range", tok.Text)
			}
			v = int64(u)
		}
		if p.isFloat(ty) {
			return ir.FloatConst(ty, float64(v)), nil
		}
		return ir.IntConst(ty, v), nil
	case TokFloat:
		p.next()
		f, err := parseFloat(tok.Text)
		if err != nil {
			return ir.Operand{}, p.errorf(diag.LexBadNumber, tok.Span, "bad float literal %s", tok.Text)
		}
		return ir.FloatConst(ty, f), nil
	case TokCString:
		p.next()
		return ir.Operand{Kind: ir.OperandConst, Type: ty, Const: ir.Const{Kind: ir.ConstBytes, Bytes: []byte(tok.Text)}}, nil
	case TokIdent:
		switch tok.Text {
		case "true", "false":
			p.next()
			v := int64(0)
			if tok.Text == "true" {
				v = 1
			}
			return ir.IntConst(ty, v), nil
		case "null":
			p.next()
			return ir.NullConst(ty), nil
		case "undef", "poison":
			p.next()
			return ir.Operand{Kind: ir.OperandConst, Type: ty, Const: ir.Const{Kind: ir.ConstUndef}}, nil
		case "zeroinitializer":
			p.next()
			return ir.Operand{Kind: ir.OperandConst, Type: ty, Const: ir.Const{Kind: ir.ConstZero}}, nil
		}
	}
	return ir.Operand{}, p.errorf(diag.SynExpectValue, tok.Span, "expected a value, found %s", tok.Kind)
}

func (p *parser) isFloat(ty types.TypeID) bool {
	tt, ok := p.m.Types.Lookup(ty)
	return ok && tt.Kind == types.KindFloat
}

func parseFloat(text string) (float64, error) {
	if len(text) > 2 && (text[:2] == "0x" || text[:2] == "0X") {
		bits, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(bits), nil
	}
	return strconv.ParseFloat(text, 64)
}

// parseTypedValue reads "T v".
func (p *parser) parseTypedValue() (ir.Operand, error) {
	ty, err := p.parseType()
	if err != nil {
		return ir.Operand{}, err
	}
	p.skipAttrs()
	return p.parseValue(ty)
}

// parseLabelRef reads "label %name" and queues its resolution.
func (p *parser) parseLabelRef() error {
	if err := p.expectIdent("label"); err != nil {
		return err
	}
	return p.parseBlockName()
}

func (p *parser) parseBlockName() error {
	tok, err := p.expect(TokLocal)
	if err != nil {
		return p.errorf(diag.SynExpectLabel, tok.Span, "expected a block label")
	}
	p.fn.pendingLabels = append(p.fn.pendingLabels, pendingRef{name: tok.Text, span: tok.Span})
	return nil
}
