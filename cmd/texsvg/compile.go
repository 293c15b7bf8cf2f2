package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"texsvg/internal/document"
	"texsvg/internal/errs"
	"texsvg/internal/geometry"
	"texsvg/internal/observ"
	"texsvg/internal/pipeline"
	"texsvg/internal/settings"
	"texsvg/internal/svgnode"
	"texsvg/internal/synth"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [input.svg]",
	Short: "Compile source text into a re-editable SVG node",
	Long: `Compile renders TeX or typst source through the external toolchain and
places the result in an SVG document as a managed, re-editable node.

Without --node or --all a new node is created from --text or --text-file
and inserted at --at (default: document center). With --node or --all
the named managed nodes are recompiled from their embedded source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: compileExecution,
}

func init() {
	f := compileCmd.Flags()
	f.StringArray("node", nil, "id of a managed node to recompile (repeatable)")
	f.Bool("all", false, "recompile every managed node")
	f.String("text", "", "source text for a new node")
	f.String("text-file", "", "read source text from a file (- for stdin)")
	f.String("engine", "", "engine (pdflatex|xelatex|lualatex|typst)")
	f.String("preamble", "", "preamble file prepended to the source")
	f.Float64("scale", 0, "scale factor for the rendered node")
	f.String("anchor", "", `anchor kept fixed when re-editing, e.g. "top left"`)
	f.Bool("stroke-to-path", false, "convert strokes to colorable path fills")
	f.Bool("preview", false, "export a PNG preview next to the output")
	f.Bool("keep-scratch", false, "keep the scratch directory for debugging")
	f.StringP("output", "o", "", "output file (- for stdout; default: edit in place)")
	f.String("at", "", "insertion point x,y for a new node")
	f.String("ui", "auto", "batch progress display (auto|on|off)")
	f.Int("jobs", 0, "max concurrent recompilations with --all")
}

type compileParams struct {
	input        string
	nodeIDs      []string
	all          bool
	text         string
	textFile     string
	output       string
	at           string
	preview      bool
	keepScratch  bool
	ui           uiMode
	jobs         int
	quiet        bool
	timings      bool
	verbose      bool
	logFile      string
	doc          document.SourceDocument
	lastSettings settings.Settings
}

func compileExecution(cmd *cobra.Command, args []string) (err error) {
	params, cfg, err := readCompileParams(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(params.verbose, params.logFile)
	defer func() { _ = logger.Sync() }()

	cacheDir, err := settings.CacheDir()
	if err != nil {
		return err
	}
	cache := settings.LoadCache(cacheDir)
	defer func() {
		cache.PreviousExitCode = errs.ExitCode(err)
		cache.HasPreviousExit = true
		if saveErr := settings.SaveCache(cacheDir, cache); saveErr != nil {
			logger.Warn("failed to persist run cache")
		}
	}()

	if params.all || len(params.nodeIDs) > 0 {
		err = runBatch(cmd, cfg, &cache, logger, params)
	} else {
		err = runFresh(cmd, cfg, &cache, logger, params)
	}
	if err != nil {
		return err
	}

	// remember the session parameters for the next invocation
	configDir, dirErr := settings.ConfigDir()
	if dirErr == nil {
		if saveErr := params.lastSettings.Save(configDir); saveErr != nil {
			logger.Warn("failed to persist settings")
		}
	}
	return nil
}

// readCompileParams folds flags over the persisted settings into the
// effective compile parameters.
func readCompileParams(cmd *cobra.Command, args []string) (compileParams, settings.Settings, error) {
	var p compileParams
	f := cmd.Flags()

	configDir, err := settings.ConfigDir()
	if err != nil {
		return p, settings.Settings{}, err
	}
	cfg, err := settings.Load(configDir)
	if err != nil {
		return p, settings.Settings{}, err
	}

	if len(args) == 1 {
		p.input = args[0]
	}
	if p.nodeIDs, err = f.GetStringArray("node"); err != nil {
		return p, cfg, err
	}
	if p.all, err = f.GetBool("all"); err != nil {
		return p, cfg, err
	}
	if p.text, err = f.GetString("text"); err != nil {
		return p, cfg, err
	}
	if p.textFile, err = f.GetString("text-file"); err != nil {
		return p, cfg, err
	}
	if p.output, err = f.GetString("output"); err != nil {
		return p, cfg, err
	}
	if p.at, err = f.GetString("at"); err != nil {
		return p, cfg, err
	}
	if p.preview, err = f.GetBool("preview"); err != nil {
		return p, cfg, err
	}
	if p.keepScratch, err = f.GetBool("keep-scratch"); err != nil {
		return p, cfg, err
	}
	if p.jobs, err = f.GetInt("jobs"); err != nil {
		return p, cfg, err
	}
	if p.quiet, err = f.GetBool("quiet"); err != nil {
		return p, cfg, err
	}
	if p.timings, err = f.GetBool("timings"); err != nil {
		return p, cfg, err
	}
	if p.verbose, err = f.GetBool("verbose"); err != nil {
		return p, cfg, err
	}
	if p.logFile, err = f.GetString("log-file"); err != nil {
		return p, cfg, err
	}
	uiValue, err := f.GetString("ui")
	if err != nil {
		return p, cfg, err
	}
	if p.ui, err = readUIMode(uiValue); err != nil {
		return p, cfg, err
	}

	if p.all && len(p.nodeIDs) > 0 {
		return p, cfg, fmt.Errorf("--all and --node are mutually exclusive")
	}
	batch := p.all || len(p.nodeIDs) > 0
	if batch && p.input == "" {
		return p, cfg, fmt.Errorf("--node and --all require an input document")
	}
	if batch && (p.text != "" || p.textFile != "") {
		return p, cfg, fmt.Errorf("--text cannot be combined with --node or --all")
	}

	engineName, err := f.GetString("engine")
	if err != nil {
		return p, cfg, err
	}
	if engineName == "" {
		engineName = cfg.Engine
	}
	engine, err := document.ParseEngine(engineName)
	if err != nil {
		return p, cfg, err
	}

	scale, err := f.GetFloat64("scale")
	if err != nil {
		return p, cfg, err
	}
	if !f.Changed("scale") {
		scale = cfg.Scale
	}
	if scale <= 0 {
		return p, cfg, fmt.Errorf("scale must be positive, got %g", scale)
	}

	preamble, err := f.GetString("preamble")
	if err != nil {
		return p, cfg, err
	}
	if !f.Changed("preamble") {
		preamble = cfg.Preamble
	}

	strokeToPath, err := f.GetBool("stroke-to-path")
	if err != nil {
		return p, cfg, err
	}
	if !f.Changed("stroke-to-path") {
		strokeToPath = cfg.StrokeToPath
	}

	anchorValue, err := f.GetString("anchor")
	if err != nil {
		return p, cfg, err
	}

	p.doc = document.New(document.Defaults{
		Engine:       engine,
		Preamble:     preamble,
		Scale:        scale,
		StrokeToPath: strokeToPath,
	})
	p.doc.Anchor = document.ParseAnchor(anchorValue)

	p.lastSettings = cfg
	p.lastSettings.Engine = string(engine)
	p.lastSettings.Scale = scale
	p.lastSettings.Preamble = preamble
	p.lastSettings.StrokeToPath = strokeToPath
	return p, cfg, nil
}

// runFresh compiles a new node and inserts it into the host document.
func runFresh(cmd *cobra.Command, cfg settings.Settings, cache *settings.CachePayload, logger *zap.Logger, params compileParams) error {
	text, err := readSourceText(cmd.InOrStdin(), params)
	if err != nil {
		return err
	}
	doc := params.doc
	doc.Text = text

	_, s, err := newSynthesizer([]document.Engine{doc.Engine}, cfg, cache, logger, params)
	if err != nil {
		return err
	}

	var host *svgnode.HostDocument
	if params.input != "" {
		if host, err = svgnode.Load(params.input); err != nil {
			return err
		}
	} else {
		if params.output == "" {
			return fmt.Errorf("compiling without an input document requires --output")
		}
		host = svgnode.NewHostDocument(1, 1)
	}

	at := host.Center()
	if params.at != "" {
		if at, err = parsePoint(params.at); err != nil {
			return err
		}
	}

	res, err := s.Compile(cmd.Context(), host, synth.Request{Doc: doc, At: at, Preview: params.preview})
	if err != nil {
		printSummary(cmd.ErrOrStderr(), res.Summary)
		return err
	}

	if params.input == "" {
		// size the fresh document to the node it holds
		tr, trErr := res.Node.Transform()
		if trErr != nil {
			return trErr
		}
		host.SetViewBox(tr.ApplyBBox(res.Artifact.BBox))
	}

	if params.timings {
		printStageTimings(cmd.ErrOrStderr(), res.Artifact.Timings)
	}
	if err := writePreview(params, res.Artifact.PNG); err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), host, params); err != nil {
		return err
	}
	if !params.quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "inserted node %s\n", res.Node.ID())
	}
	return nil
}

// runBatch recompiles existing managed nodes from their embedded
// source. Failing nodes are reported and skipped; the document is
// saved with every successful replacement applied.
func runBatch(cmd *cobra.Command, cfg settings.Settings, cache *settings.CachePayload, logger *zap.Logger, params compileParams) error {
	host, err := svgnode.Load(params.input)
	if err != nil {
		return err
	}

	var nodes []*svgnode.Node
	if params.all {
		nodes = host.ManagedNodes()
		if len(nodes) == 0 {
			return fmt.Errorf("%s contains no managed nodes", params.input)
		}
	} else {
		for _, id := range params.nodeIDs {
			node, err := host.NodeByID(id)
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
	}

	runner, s, err := newSynthesizer(batchEngines(nodes), cfg, cache, logger, params)
	if err != nil {
		return err
	}

	var report synth.BatchReport
	if params.ui.live() && !params.quiet {
		report = runRecompileWithUI(cmd.Context(), runner, s, host, nodes, params.jobs)
	} else {
		report = s.RecompileAll(cmd.Context(), host, nodes, params.jobs)
	}

	for _, rep := range report.Reports {
		if rep.Err == nil {
			if !params.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: ok (%.1f ms)\n", rep.NodeID, float64(rep.Elapsed.Microseconds())/1000.0)
			}
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", rep.NodeID, rep.Err)
		printSummary(cmd.ErrOrStderr(), rep.Summary)
	}

	if err := writeOutput(cmd.OutOrStdout(), host, params); err != nil {
		return err
	}
	if failed := report.Failed(); failed > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d nodes failed\n", failed, len(report.Reports))
		return report.Err()
	}
	return nil
}

// newSynthesizer detects the toolchain for the engines this run needs
// and wraps it in a configured runner.
func newSynthesizer(engines []document.Engine, cfg settings.Settings, cache *settings.CachePayload, logger *zap.Logger, params compileParams) (*pipeline.Runner, *synth.Synthesizer, error) {
	toolchain, updated, err := pipeline.Detect(engines, cfg, *cache)
	*cache = updated
	if err != nil {
		return nil, nil, err
	}
	runner := &pipeline.Runner{
		Toolchain:   toolchain,
		Logger:      logger,
		KeepScratch: params.keepScratch,
	}
	return runner, synth.New(runner, logger), nil
}

// batchEngines collects the engines named by the nodes' metadata. A
// node whose metadata does not read is left for the batch run to
// report.
func batchEngines(nodes []*svgnode.Node) []document.Engine {
	seen := make(map[document.Engine]bool)
	for _, node := range nodes {
		meta, err := node.Metadata()
		if err != nil {
			continue
		}
		seen[meta.Engine] = true
	}
	engines := make([]document.Engine, 0, len(seen))
	for _, e := range document.Engines() {
		if seen[e] {
			engines = append(engines, e)
		}
	}
	return engines
}

// readSourceText resolves --text / --text-file into the source.
func readSourceText(stdin io.Reader, params compileParams) (string, error) {
	switch {
	case params.text != "" && params.textFile != "":
		return "", fmt.Errorf("--text and --text-file are mutually exclusive")
	case params.text != "":
		return params.text, nil
	case params.textFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case params.textFile != "":
		data, err := os.ReadFile(params.textFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", params.textFile, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("a new node needs --text or --text-file")
	}
}

// writeOutput saves the host document to the effective target: the
// --output path, stdout for "-", or the input file in place.
func writeOutput(stdout io.Writer, host *svgnode.HostDocument, params compileParams) error {
	target := params.output
	if target == "" {
		target = params.input
	}
	if target == "-" {
		return host.WriteTo(stdout)
	}
	return host.Save(target)
}

// writePreview drops the PNG preview next to the output document.
func writePreview(params compileParams, png []byte) error {
	if png == nil {
		return nil
	}
	target := params.output
	if target == "" {
		target = params.input
	}
	if target == "" || target == "-" {
		return fmt.Errorf("--preview needs a file output")
	}
	previewPath := strings.TrimSuffix(target, ".svg") + ".png"
	if err := os.WriteFile(previewPath, png, 0o644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}

func printStageTimings(out io.Writer, report observ.Report) {
	for _, stage := range report.Stages {
		fmt.Fprintf(out, "%-10s %.1f ms\n", stage.Stage, stage.DurationMS)
	}
	fmt.Fprintf(out, "%-10s %.1f ms\n", "total", report.TotalMS)
}

// parsePoint reads an "x,y" coordinate pair.
func parsePoint(s string) (geometry.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geometry.Point{}, fmt.Errorf("invalid point %q (expected x,y)", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if errX != nil || errY != nil {
		return geometry.Point{}, fmt.Errorf("invalid point %q (expected x,y)", s)
	}
	return geometry.Point{X: x, Y: y}, nil
}
