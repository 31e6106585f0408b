package observ

import (
	"strings"
	"sync"
	"testing"
)

func TestTimerConcurrentPhases(t *testing.T) {
	timer := NewTimer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx := timer.Begin("instTrace")
			timer.End(idx, "")
		}()
	}
	wg.Wait()
	report := timer.Report()
	if len(report.Phases) != 8 {
		t.Fatalf("phases = %d, want 8", len(report.Phases))
	}
	if len(report.Totals) != 1 || report.Totals[0].Name != "instTrace" {
		t.Fatalf("totals = %+v", report.Totals)
	}
}

func TestTimerMergePrefixesNames(t *testing.T) {
	root := NewTimer()
	child := NewTimer()
	child.End(child.Begin("genindex"), "3 ids")
	child.End(child.Begin("instTrace"), "")
	root.Merge("a.ll", child)
	root.Merge("b.ll", child)

	report := root.Report()
	if len(report.Phases) != 4 || report.Phases[0].Name != "a.ll/genindex" || report.Phases[3].Name != "b.ll/instTrace" {
		t.Fatalf("phases = %+v", report.Phases)
	}
	if len(report.Totals) != 2 || report.Totals[0].Name != "genindex" {
		t.Fatalf("totals = %+v", report.Totals)
	}
	summary := root.Summary()
	if !strings.Contains(summary, "// 3 ids") || !strings.Contains(summary, "per phase:") {
		t.Fatalf("summary:\n%s", summary)
	}
}

func TestTimerEndIgnoresUnknownIndex(t *testing.T) {
	timer := NewTimer()
	timer.End(3, "ignored")
	if got := timer.Report(); len(got.Phases) != 0 {
		t.Fatalf("unexpected phases %+v", got.Phases)
	}
}
