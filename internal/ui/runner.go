package ui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"faultline/internal/pipeline"
)

// Run executes req while rendering progress to out. The pipeline error
// wins over a UI error.
func Run(ctx context.Context, out io.Writer, title string, files []string, req *pipeline.Request) (pipeline.Result, error) {
	events := make(chan pipeline.Event, 256)
	type outcome struct {
		result pipeline.Result
		err    error
	}
	outcomeCh := make(chan outcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Run(ctx, &reqCopy)
		outcomeCh <- outcome{result: res, err: err}
		close(events)
	}()

	program := tea.NewProgram(NewProgressModel(title, files, events), tea.WithOutput(out), tea.WithInput(nil))
	_, uiErr := program.Run()
	res := <-outcomeCh
	if res.err != nil {
		return res.result, res.err
	}
	return res.result, uiErr
}
