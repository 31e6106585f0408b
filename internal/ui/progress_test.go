package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"faultline/internal/pipeline"
)

func TestApplyEventTracksStages(t *testing.T) {
	m := NewProgressModel("instrumenting", []string{"a.ll", "b.ll"}, nil).(*progressModel)

	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StageLoad, Status: pipeline.StatusWorking})
	if got := m.items[0].label(); got != "loading" {
		t.Fatalf("status = %q, want loading", got)
	}
	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StagePasses, Status: pipeline.StatusDone, Detail: "3 targets"})
	if got := m.items[0].label(); got != "instrumenting" {
		t.Fatalf("intermediate done must keep the stage label, got %q", got)
	}
	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StageFinished, Status: pipeline.StatusDone, Detail: "3 targets", Targets: 3})
	m.applyEvent(pipeline.Event{File: "b.ll", Stage: pipeline.StageLoad, Status: pipeline.StatusError, Err: errors.New("bad.ll:3:3: unknown opcode")})
	m.applyEvent(pipeline.Event{File: "b.ll", Stage: pipeline.StageWrite, Status: pipeline.StatusWorking})

	if m.items[0].label() != "done" || m.items[0].detail != "3 targets" {
		t.Fatalf("a.ll = %+v", m.items[0])
	}
	if m.items[1].label() != "error" {
		t.Fatalf("error status must stick, got %q", m.items[1].label())
	}
	if p := m.percent(); p != 1.0 {
		t.Fatalf("percent = %v, want 1", p)
	}
	m.applyEvent(pipeline.Event{Stage: pipeline.StageReport, Status: pipeline.StatusWorking})
	view := m.View()
	for _, want := range []string{"instrumenting (reporting)", "a.ll", "3 targets", "unknown opcode", "2/2 modules, 1 failed, 3 targets"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestPercentWeighsStages(t *testing.T) {
	m := NewProgressModel("t", []string{"a.ll", "b.ll"}, nil).(*progressModel)
	if m.percent() != 0 {
		t.Fatalf("fresh batch percent = %v", m.percent())
	}
	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StagePasses, Status: pipeline.StatusWorking})
	m.applyEvent(pipeline.Event{File: "unknown.ll", Stage: pipeline.StageFinished, Status: pipeline.StatusDone})
	if got := m.percent(); got != 0.3 {
		t.Fatalf("percent = %v, want 0.3", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short.ll", 20); got != "short.ll" {
		t.Fatalf("short name changed: %q", got)
	}
	for _, in := range []string{"a/very/long/path/module.ll", "模块模块模块模块.ll"} {
		got := truncate(in, 10)
		if runewidth.StringWidth(got) > 10 || !strings.HasSuffix(got, "...") {
			t.Errorf("truncate(%q, 10) = %q", in, got)
		}
	}
}
