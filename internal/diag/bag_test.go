package diag

import (
	"errors"
	"strings"
	"testing"
)

func TestBagLimitAndSort(t *testing.T) {
	b := NewBag(3)
	b.Add(NewError(SynUnexpectedToken, Span{File: "b.ll", Line: 1, Col: 1}, "late file"))
	b.Add(NewError(LexBadNumber, Span{File: "a.ll", Line: 4, Col: 2}, "second"))
	b.Add(New(SevWarning, SynInfo, Span{File: "a.ll", Line: 2, Col: 9}, "first"))
	if b.Add(NewError(UnknownCode, Span{}, "dropped")) {
		t.Fatal("expected Add to refuse past the limit")
	}
	b.Sort()
	var got []string
	for _, d := range b.Items() {
		got = append(got, d.Message)
	}
	if strings.Join(got, ",") != "first,second,late file" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestBagErrJoinsOnlyErrors(t *testing.T) {
	b := NewBag(10)
	b.Add(New(SevWarning, SynInfo, Span{File: "x.ll", Line: 1, Col: 1}, "just a warning"))
	if err := b.Err(); err != nil {
		t.Fatalf("warnings must not produce an error: %v", err)
	}
	d := NewError(ResUndefinedValue, Span{File: "x.ll", Line: 3, Col: 5}, "use of undefined value %v")
	b.Add(d)
	err := b.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	var got Diagnostic
	if !errors.As(err, &got) || got.Code != ResUndefinedValue {
		t.Fatalf("expected diagnostic in error chain, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "x.ll:3:5: ERROR RES3001") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestBagMergeGrowsAndDedupDrops(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(SynUnexpectedToken, Span{File: "a.ll", Line: 1, Col: 1}, "first"))
	b := NewBag(2)
	b.Add(NewError(SynUnexpectedToken, Span{File: "a.ll", Line: 1, Col: 1}, "same place, same code"))
	b.Add(NewError(LexBadNumber, Span{File: "a.ll", Line: 1, Col: 1}, "other code"))
	a.Merge(b)
	if a.Len() != 3 || a.Cap() < 3 {
		t.Fatalf("merge kept %d items, cap %d", a.Len(), a.Cap())
	}
	a.Dedup()
	if a.Len() != 2 || a.Items()[0].Message != "first" {
		t.Fatalf("dedup = %v", a.Items())
	}
}
