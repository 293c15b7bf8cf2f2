package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"texsvg/internal/pipeline"
	"texsvg/internal/svgnode"
	"texsvg/internal/synth"
	"texsvg/internal/ui"
)

type batchOutcome struct {
	report synth.BatchReport
}

// runRecompileWithUI drives a batch recompile behind the live progress
// view. The pipeline runner's progress sink is swapped for the UI's
// event channel for the duration of the batch.
func runRecompileWithUI(ctx context.Context, runner *pipeline.Runner, s *synth.Synthesizer, host *svgnode.HostDocument, nodes []*svgnode.Node, limit int) synth.BatchReport {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.ID()
	}

	previous := runner.Progress
	runner.Progress = pipeline.ChannelSink{Ch: events}
	go func() {
		report := s.RecompileAll(ctx, host, nodes, limit)
		outcomeCh <- batchOutcome{report: report}
		close(events)
	}()

	model := ui.NewProgressModel("recompiling nodes", names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	runner.Progress = previous
	if uiErr != nil {
		// the batch itself finished; a broken terminal only loses the view
		return outcome.report
	}
	return outcome.report
}
