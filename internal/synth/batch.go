package synth

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"texsvg/internal/diag"
	"texsvg/internal/pipeline"
	"texsvg/internal/svgnode"
)

// DefaultBatchLimit caps concurrent pipeline runs during a batch
// recompile. Each run spawns external processes, so the limit tracks
// process pressure rather than CPU count alone.
const DefaultBatchLimit = 4

// NodeReport is the per-node outcome of a batch recompile.
type NodeReport struct {
	NodeID  string
	Err     error
	Summary *diag.Summary
	Elapsed time.Duration
}

// BatchReport aggregates a whole batch. Order follows the input nodes.
type BatchReport struct {
	Reports []NodeReport
}

// Failed counts the nodes whose recompilation failed.
func (r BatchReport) Failed() int {
	n := 0
	for _, rep := range r.Reports {
		if rep.Err != nil {
			n++
		}
	}
	return n
}

// Err returns the first failure, for exit-code mapping.
func (r BatchReport) Err() error {
	for _, rep := range r.Reports {
		if rep.Err != nil {
			return rep.Err
		}
	}
	return nil
}

// RecompileAll re-runs the toolchain for every given node from its
// persisted metadata. Compilations run concurrently under limit; a
// failing node is reported and skipped while the rest proceed, and the
// host document is only ever touched from completed, current rounds.
func (s *Synthesizer) RecompileAll(ctx context.Context, host *svgnode.HostDocument, nodes []*svgnode.Node, limit int) BatchReport {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	type outcome struct {
		artifact pipeline.Artifact
		err      error
		summary  *diag.Summary
		elapsed  time.Duration
	}
	outcomes := make([]outcome, len(nodes))
	docs := make([]Request, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			start := time.Now()
			meta, err := node.Metadata()
			if err != nil {
				outcomes[i] = outcome{err: err, elapsed: time.Since(start)}
				return nil
			}
			docs[i] = Request{Doc: meta.Document(), Old: node}

			artifact, err := s.runner.Run(gctx, pipeline.Request{Doc: docs[i].Doc, Node: node.ID()})
			if err != nil {
				res := Result{}
				outcomes[i] = outcome{err: s.classify(docs[i].Doc.Engine, err, &res), summary: res.Summary, elapsed: time.Since(start)}
				return nil
			}
			outcomes[i] = outcome{artifact: artifact, elapsed: time.Since(start)}
			return nil
		})
	}
	// workers only record outcomes, so the only error is ctx cancellation
	_ = g.Wait()

	// host mutations happen here, sequentially and in input order
	report := BatchReport{Reports: make([]NodeReport, len(nodes))}
	for i, node := range nodes {
		rep := NodeReport{NodeID: node.ID(), Err: outcomes[i].err, Summary: outcomes[i].summary, Elapsed: outcomes[i].elapsed}
		if rep.Err == nil {
			if ctxErr := ctx.Err(); ctxErr != nil && outcomes[i].artifact.SVG == nil {
				rep.Err = ctxErr
			} else {
				s.mu.Lock()
				_, applyErr := s.apply(host, docs[i], outcomes[i].artifact)
				s.mu.Unlock()
				rep.Err = applyErr
			}
		}
		if rep.Err != nil {
			s.log.Warn("node recompilation failed", zap.String("node", rep.NodeID), zap.Error(rep.Err))
		}
		report.Reports[i] = rep
	}
	return report
}
