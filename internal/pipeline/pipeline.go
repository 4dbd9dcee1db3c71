// Package pipeline runs one report request end to end: validate the upload,
// prepare the table, build the prompt, stream the model output and execute
// any suggested visualizations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	"github.com/KaramelBytes/scoutdeck-cli/internal/analysis"
	"github.com/KaramelBytes/scoutdeck-cli/internal/audit"
	"github.com/KaramelBytes/scoutdeck-cli/internal/extract"
	"github.com/KaramelBytes/scoutdeck-cli/internal/report"
	"github.com/KaramelBytes/scoutdeck-cli/internal/sandbox"
	"github.com/KaramelBytes/scoutdeck-cli/internal/schema"
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
	"github.com/KaramelBytes/scoutdeck-cli/internal/validate"
)

// VizColumnsWarning is added when visuals are requested but coordinates are missing.
const VizColumnsWarning = "⚠️ Visualization may fail — your data may be missing key coordinate columns like 'x', 'y', 'end_x', or 'end_y'."

// Request describes one report run.
type Request struct {
	FileName      string
	Data          []byte
	ReportType    string
	Subject       string // "" picks the first option
	Visuals       bool
	Model         string
	Temperature   float64
	MaxFileSizeMB int
	// OnFragment receives generated text as it streams; may be nil.
	OnFragment func(string)
}

// Prepared is everything known before the model is called.
type Prepared struct {
	FileType     report.FileType
	Selection    report.Selection
	Summary      analysis.Summary
	Removed      []string
	Warnings     []string
	Table        *table.Table // sanitized and normalized
	SystemPrompt string
	UserPrompt   string
	Log          *audit.Log
	Filename     string
}

// Block is one extracted visualization snippet and its execution result.
type Block struct {
	Code   string
	Result sandbox.Result
}

// Outcome is the result of Run.
type Outcome struct {
	*Prepared
	Report string // full generated text
	Prose  string
	Blocks []Block
	// GenerationError is the failure fragment when generation failed.
	GenerationError string
}

// Subject returns the selected report subject.
func (o *Outcome) Subject() string { return o.Selection.Subject }

// Pipeline wires the report service and the snippet executor.
type Pipeline struct {
	Service  *ai.Service
	Executor *sandbox.Executor
	Aliases  []schema.Alias
	Logger   *zap.Logger
}

// New returns a pipeline using the default column aliases.
func New(svc *ai.Service, exec *sandbox.Executor, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{Service: svc, Executor: exec, Aliases: schema.DefaultAliases, Logger: logger}
}

// Prepare runs every step up to and including prompt construction. Failures
// are *validate.ValidationError or subject selection errors; nothing remote
// has been contacted when it returns.
func (p *Pipeline) Prepare(req Request) (*Prepared, error) {
	logger := p.logger()
	res := validate.File(req.FileName, req.Data, req.MaxFileSizeMB)
	if err := res.Err(); err != nil {
		return nil, err
	}
	clean, removed := table.Sanitize(res.Table, logger)

	log := audit.New(logger)
	normalized := schema.Normalize(clean, p.aliases(), log)

	out := &Prepared{
		Summary: analysis.Summarize(normalized),
		Removed: removed,
		Table:   normalized,
		Log:     log,
	}
	ok, msgs := validate.ReportColumns(normalized, req.ReportType)
	if !ok {
		return nil, &validate.ValidationError{Message: strings.Join(msgs, "; ")}
	}
	out.Warnings = append(out.Warnings, msgs...)

	out.FileType = report.DetectFileType(normalized)
	if out.FileType == report.Unknown {
		out.Warnings = append(out.Warnings, "Could not detect the file type; treating it as generic match data.")
	}
	logger.Info("file type detected", zap.String("file_type", string(out.FileType)), zap.Int("rows", normalized.Len()))

	sel, err := report.SelectSubject(normalized, req.ReportType, out.FileType, req.Subject)
	if err != nil {
		return nil, err
	}
	out.Selection = sel

	if req.Visuals {
		if ok, _ := validate.VisualizationColumns(normalized); !ok {
			out.Warnings = append(out.Warnings, VizColumnsWarning)
		}
	}

	rt := report.MustLookup(req.ReportType)
	out.SystemPrompt = rt.SystemPrompt
	out.UserPrompt = report.BuildPrompt(report.PromptInput{
		ReportType:     req.ReportType,
		SampleData:     table.ReprRecords(sel.Data.Records()),
		VisualsEnabled: req.Visuals,
		ColumnsInfo:    schema.ColumnInfo(normalized),
		FileType:       out.FileType,
	})
	out.Filename = report.DownloadFilename(req.ReportType, sel.Subject)
	logger.Debug("prompt built",
		zap.Int("system_chars", len(out.SystemPrompt)),
		zap.Int("user_chars", len(out.UserPrompt)),
		zap.Int("sample_rows", sel.Data.Len()))
	return out, nil
}

// Run prepares the request, streams the report and executes every suggested
// visualization. Each block runs on its own; one failure never affects the
// others. Generation failures are reported in Outcome.GenerationError.
func (p *Pipeline) Run(ctx context.Context, req Request) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger().Error("pipeline panic", zap.Any("panic", r))
			out, err = nil, fmt.Errorf("pipeline: unexpected failure: %v", r)
		}
	}()
	if p.Service == nil {
		return nil, errors.New("pipeline: no report service configured")
	}
	prep, err := p.Prepare(req)
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, prep, req), nil
}

// Complete streams the report for an already prepared request and executes
// its visualizations. req supplies the model settings and callbacks.
func (p *Pipeline) Complete(ctx context.Context, prep *Prepared, req Request) *Outcome {
	out := &Outcome{Prepared: prep}

	var b strings.Builder
	for frag := range p.Service.Stream(ctx, prep.SystemPrompt, prep.UserPrompt, req.Model, req.Temperature) {
		if ai.IsErrorFragment(frag) {
			out.GenerationError = frag
		}
		b.WriteString(frag)
		if req.OnFragment != nil {
			req.OnFragment(frag)
		}
	}
	out.Report = b.String()
	if out.GenerationError != "" {
		p.logger().Error("report generation failed", zap.String("error", out.GenerationError))
	}

	prose, _ := extract.Split(out.Report, extract.Marker)
	out.Prose = extract.CleanProse(prose)

	if !req.Visuals || p.Executor == nil {
		return out
	}
	for i, code := range extract.CodeBlocks(out.Report, extract.Marker) {
		if ctx.Err() != nil {
			break
		}
		res := p.Executor.Execute(ctx, code, prep.Table, prep.Log)
		if !res.OK {
			p.logger().Error("visualization failed", zap.Int("block", i+1), zap.String("message", res.Message))
		}
		out.Blocks = append(out.Blocks, Block{Code: code, Result: res})
	}
	return out
}

func (p *Pipeline) aliases() []schema.Alias {
	if p.Aliases == nil {
		return schema.DefaultAliases
	}
	return p.Aliases
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
