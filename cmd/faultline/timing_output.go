package main

import (
	"fmt"
	"io"
	"time"

	"faultline/internal/pipeline"
)

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	if out == nil {
		return
	}
	for _, st := range []struct {
		stage pipeline.Stage
		label string
	}{
		{pipeline.StageLoad, "loaded"},
		{pipeline.StagePasses, "passes"},
		{pipeline.StageWrite, "written"},
		{pipeline.StageReport, "report"},
	} {
		if timings.Has(st.stage) {
			fmt.Fprintf(out, "%s %.1f ms\n", st.label, toMillis(timings.Duration(st.stage)))
		}
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
