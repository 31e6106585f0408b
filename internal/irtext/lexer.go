package irtext

import (
	"strconv"
	"strings"

	"faultline/internal/diag"
)

// TokenKind classifies lexical tokens of the textual IR.
type TokenKind uint8

const (
	TokEOF TokenKind = iota
	TokIdent
	TokLocal    // %name
	TokGlobal   // @name
	TokMeta     // !name, or "!" directly before "{"
	TokAttrRef  // #N
	TokLabelDef // name:
	TokInt
	TokFloat
	TokString
	TokCString // c"..."
	TokEqual
	TokComma
	TokLParen
	TokRParen
	TokLBrack
	TokRBrack
	TokLBrace
	TokRBrace
	TokLess
	TokGreater
	TokStar
	TokEllipsis
	TokIllegal
)

var tokenNames = [...]string{
	TokEOF:      "end of file",
	TokIdent:    "identifier",
	TokLocal:    "local value",
	TokGlobal:   "global symbol",
	TokMeta:     "metadata",
	TokAttrRef:  "attribute group",
	TokLabelDef: "label",
	TokInt:      "integer",
	TokFloat:    "float",
	TokString:   "string",
	TokCString:  "byte string",
	TokEqual:    "'='",
	TokComma:    "','",
	TokLParen:   "'('",
	TokRParen:   "')'",
	TokLBrack:   "'['",
	TokRBrack:   "']'",
	TokLBrace:   "'{'",
	TokRBrace:   "'}'",
	TokLess:     "'<'",
	TokGreater:  "'>'",
	TokStar:     "'*'",
	TokEllipsis: "'...'",
	TokIllegal:  "illegal character",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return "token"
}

// Token is one lexeme. For sigil tokens Text holds the name without the
// sigil; for strings it holds the decoded bytes.
type Token struct {
	Kind TokenKind
	Text string
	Span diag.Span
}

type lexer struct {
	file string
	src  []byte
	pos  int
	line int
	col  int
	rep  diag.Reporter
}

func newLexer(file string, src []byte, rep diag.Reporter) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1, rep: rep}
}

func (lx *lexer) span() diag.Span {
	return diag.Span{File: lx.file, Line: lx.line, Col: lx.col}
}

func (lx *lexer) peekByte(off int) byte {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *lexer) advance() byte {
	c := lx.src[lx.pos]
	lx.pos++
	if c == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return c
}

func (lx *lexer) skipTrivia() {
	for lx.pos < len(lx.src) {
		switch c := lx.src[lx.pos]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			lx.advance()
		case c == ';':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance()
			}
		default:
			return
		}
	}
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '.' || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-'
}

// Next returns the next token.
func (lx *lexer) Next() Token {
	lx.skipTrivia()
	sp := lx.span()
	if lx.pos >= len(lx.src) {
		return Token{Kind: TokEOF, Span: sp}
	}
	c := lx.peekByte(0)
	switch {
	case c == '%' || c == '@' || c == '!':
		return lx.sigil(sp)
	case c == '.' && lx.peekByte(1) == '.' && lx.peekByte(2) == '.':
		lx.advance()
		lx.advance()
		lx.advance()
		return Token{Kind: TokEllipsis, Text: "...", Span: sp}
	case c == '#':
		lx.advance()
		start := lx.pos
		for isDigit(lx.peekByte(0)) {
			lx.advance()
		}
		return Token{Kind: TokAttrRef, Text: string(lx.src[start:lx.pos]), Span: sp}
	case c == 'c' && lx.peekByte(1) == '"':
		lx.advance()
		s, ok := lx.quoted(sp)
		if !ok {
			return Token{Kind: TokIllegal, Span: sp}
		}
		return Token{Kind: TokCString, Text: s, Span: sp}
	case c == '"':
		s, ok := lx.quoted(sp)
		if !ok {
			return Token{Kind: TokIllegal, Span: sp}
		}
		return Token{Kind: TokString, Text: s, Span: sp}
	case isLetter(c):
		start := lx.pos
		for isLetter(lx.peekByte(0)) || isDigit(lx.peekByte(0)) || (lx.peekByte(0) == '-' && isNameChar(lx.peekByte(1)) && lx.labelAhead()) {
			lx.advance()
		}
		text := string(lx.src[start:lx.pos])
		if lx.peekByte(0) == ':' {
			lx.advance()
			return Token{Kind: TokLabelDef, Text: text, Span: sp}
		}
		return Token{Kind: TokIdent, Text: text, Span: sp}
	case isDigit(c) || (c == '-' && isDigit(lx.peekByte(1))) || (c == '+' && isDigit(lx.peekByte(1))):
		return lx.number(sp)
	}
	lx.advance()
	switch c {
	case '=':
		return Token{Kind: TokEqual, Text: "=", Span: sp}
	case ',':
		return Token{Kind: TokComma, Text: ",", Span: sp}
	case '(':
		return Token{Kind: TokLParen, Text: "(", Span: sp}
	case ')':
		return Token{Kind: TokRParen, Text: ")", Span: sp}
	case '[':
		return Token{Kind: TokLBrack, Text: "[", Span: sp}
	case ']':
		return Token{Kind: TokRBrack, Text: "]", Span: sp}
	case '{':
		return Token{Kind: TokLBrace, Text: "{", Span: sp}
	case '}':
		return Token{Kind: TokRBrace, Text: "}", Span: sp}
	case '<':
		return Token{Kind: TokLess, Text: "<", Span: sp}
	case '>':
		return Token{Kind: TokGreater, Text: ">", Span: sp}
	case '*':
		return Token{Kind: TokStar, Text: "*", Span: sp}
	}
	diag.ReportError(lx.rep, diag.LexUnknownChar, sp, "unexpected character "+strconv.QuoteRune(rune(c)))
	return Token{Kind: TokIllegal, Text: string(c), Span: sp}
}

// labelAhead reports whether the identifier starting a hyphenated run ends
// with ':' so that "a-b:" lexes as one label.
func (lx *lexer) labelAhead() bool {
	for i := lx.pos; i < len(lx.src); i++ {
		c := lx.src[i]
		if c == ':' {
			return true
		}
		if !isNameChar(c) {
			return false
		}
	}
	return false
}

func (lx *lexer) sigil(sp diag.Span) Token {
	kind := TokLocal
	switch lx.advance() {
	case '@':
		kind = TokGlobal
	case '!':
		kind = TokMeta
	}
	if lx.peekByte(0) == '"' {
		s, ok := lx.quoted(sp)
		if !ok {
			return Token{Kind: TokIllegal, Span: sp}
		}
		return Token{Kind: kind, Text: s, Span: sp}
	}
	start := lx.pos
	for isNameChar(lx.peekByte(0)) {
		lx.advance()
	}
	text := string(lx.src[start:lx.pos])
	if text == "" && kind != TokMeta {
		diag.ReportError(lx.rep, diag.LexUnknownChar, sp, "expected a name after sigil")
		return Token{Kind: TokIllegal, Span: sp}
	}
	return Token{Kind: kind, Text: text, Span: sp}
}

// quoted reads a "..." literal decoding \XX and \\ escapes.
func (lx *lexer) quoted(sp diag.Span) (string, bool) {
	lx.advance() // opening quote
	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			diag.ReportError(lx.rep, diag.LexUnterminatedString, sp, "unterminated string literal")
			return "", false
		}
		c := lx.advance()
		switch c {
		case '"':
			return sb.String(), true
		case '\\':
			if lx.peekByte(0) == '\\' {
				lx.advance()
				sb.WriteByte('\\')
				continue
			}
			hi, lo := lx.peekByte(0), lx.peekByte(1)
			v, err := strconv.ParseUint(string([]byte{hi, lo}), 16, 8)
			if err != nil {
				diag.ReportError(lx.rep, diag.LexBadEscape, lx.span(), "escape must be two hex digits")
				return "", false
			}
			lx.advance()
			lx.advance()
			sb.WriteByte(byte(v))
		default:
			sb.WriteByte(c)
		}
	}
}

func (lx *lexer) number(sp diag.Span) Token {
	start := lx.pos
	if c := lx.peekByte(0); c == '-' || c == '+' {
		lx.advance()
	}
	if lx.peekByte(0) == '0' && (lx.peekByte(1) == 'x' || lx.peekByte(1) == 'X') {
		lx.advance()
		lx.advance()
		for isHex(lx.peekByte(0)) {
			lx.advance()
		}
		return Token{Kind: TokFloat, Text: string(lx.src[start:lx.pos]), Span: sp}
	}
	for isDigit(lx.peekByte(0)) {
		lx.advance()
	}
	kind := TokInt
	if lx.peekByte(0) == ':' && lx.src[start] != '-' && lx.src[start] != '+' {
		text := string(lx.src[start:lx.pos])
		lx.advance()
		return Token{Kind: TokLabelDef, Text: text, Span: sp}
	}
	if lx.peekByte(0) == '.' && isDigit(lx.peekByte(1)) {
		kind = TokFloat
		lx.advance()
		for isDigit(lx.peekByte(0)) {
			lx.advance()
		}
	}
	if c := lx.peekByte(0); c == 'e' || c == 'E' {
		n := 1
		if s := lx.peekByte(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(lx.peekByte(n)) {
			kind = TokFloat
			for ; n > 0; n-- {
				lx.advance()
			}
			for isDigit(lx.peekByte(0)) {
				lx.advance()
			}
		}
	}
	return Token{Kind: kind, Text: string(lx.src[start:lx.pos]), Span: sp}
}

func isHex(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
