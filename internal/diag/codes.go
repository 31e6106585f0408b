package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Лексические
	LexInfo               Code = 1000
	LexUnknownChar        Code = 1001
	LexUnterminatedString Code = 1002
	LexBadNumber          Code = 1003
	LexBadEscape          Code = 1004

	// Синтаксические
	SynInfo               Code = 2000
	SynUnexpectedToken    Code = 2001
	SynExpectType         Code = 2002
	SynExpectValue        Code = 2003
	SynExpectLabel        Code = 2004
	SynUnknownOpcode      Code = 2005
	SynUnknownPredicate   Code = 2006
	SynUnexpectedTopLevel Code = 2007
	SynUnclosedBody       Code = 2008

	// Разрешение имён
	ResInfo              Code = 3000
	ResUndefinedValue    Code = 3001
	ResUndefinedLabel    Code = 3002
	ResRedefinedValue    Code = 3003
	ResRedefinedFunction Code = 3004
	ResTypeMismatch      Code = 3005

	// Верификация
	VerInfo   Code = 4000
	VerFailed Code = 4001
)

var codeDescription = map[Code]string{
	UnknownCode:           "Unknown error",
	LexInfo:               "Lexical information",
	LexUnknownChar:        "Unknown character",
	LexUnterminatedString: "Unterminated string literal",
	LexBadNumber:          "Malformed number literal",
	LexBadEscape:          "Malformed escape sequence",
	SynInfo:               "Syntax information",
	SynUnexpectedToken:    "Unexpected token",
	SynExpectType:         "Expected a type",
	SynExpectValue:        "Expected a value",
	SynExpectLabel:        "Expected a block label",
	SynUnknownOpcode:      "Unknown instruction opcode",
	SynUnknownPredicate:   "Unknown comparison predicate",
	SynUnexpectedTopLevel: "Unexpected top-level entity",
	SynUnclosedBody:       "Function body is not closed",
	ResInfo:               "Name resolution information",
	ResUndefinedValue:     "Use of an undefined value",
	ResUndefinedLabel:     "Branch to an undefined block",
	ResRedefinedValue:     "Value redefined",
	ResRedefinedFunction:  "Function redefined",
	ResTypeMismatch:       "Type mismatch",
	VerInfo:               "Verifier information",
	VerFailed:             "Module failed verification",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("VER%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	if d, ok := codeDescription[c]; ok {
		return d
	}
	return codeDescription[UnknownCode]
}

func (c Code) String() string {
	return c.ID()
}
